package classify

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// rulesFile is the on-disk shape of a classification rule table.
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads an ordered rule table from a YAML file. The file fully
// replaces the built-in table, so production rule changes need no code
// change.
func LoadRules(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: read rules %s", path)
	}

	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, eris.Wrap(err, "classify: parse rules")
	}

	rs, err := New(rf.Rules)
	if err != nil {
		return nil, err
	}

	zap.L().Info("loaded classification rules",
		zap.String("path", path),
		zap.Int("rules", len(rf.Rules)),
	)
	return rs, nil
}

// LoadOrDefault returns the rule table at path, or the built-in table
// when path is empty.
func LoadOrDefault(path string) (*Ruleset, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadRules(path)
}
