package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/plutoskio/BDD-grandir2.0/internal/match"
	"github.com/plutoskio/BDD-grandir2.0/internal/model"
	"github.com/plutoskio/BDD-grandir2.0/internal/requirement"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS dim_roles (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	requirement TEXT
);

CREATE TABLE IF NOT EXISTS dim_candidates (
	id            TEXT PRIMARY KEY,
	lat           REAL,
	lon           REAL,
	quality_score REAL,
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS candidate_diplomas (
	candidate_id TEXT NOT NULL REFERENCES dim_candidates(id) ON DELETE CASCADE,
	raw_label    TEXT NOT NULL,
	PRIMARY KEY (candidate_id, raw_label)
);

CREATE TABLE IF NOT EXISTS fact_postings (
	id         TEXT PRIMARY KEY,
	role_id    TEXT NOT NULL,
	nursery    TEXT NOT NULL DEFAULT '',
	lat        REAL,
	lon        REAL,
	urgency    TEXT NOT NULL DEFAULT 'unknown',
	status     TEXT NOT NULL DEFAULT 'open',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS fact_matches (
	result_id    TEXT NOT NULL,
	candidate_id TEXT NOT NULL,
	posting_id   TEXT NOT NULL,
	composite    REAL,
	qualified    INTEGER NOT NULL,
	distance_km  REAL,
	urgency      TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (result_id, candidate_id, posting_id)
);

CREATE INDEX IF NOT EXISTS idx_fact_postings_status ON fact_postings(status);
CREATE INDEX IF NOT EXISTS idx_fact_postings_role_id ON fact_postings(role_id);
CREATE INDEX IF NOT EXISTS idx_fact_matches_result_id ON fact_matches(result_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, f CandidateFilter) ([]model.Candidate, error) {
	query := `SELECT id, lat, lon, quality_score FROM dim_candidates WHERE 1=1`
	var args []any

	if len(f.IDs) > 0 {
		query += ` AND id IN (` + placeholders(len(f.IDs)) + `)`
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list candidates")
	}
	defer rows.Close()

	var out []model.Candidate
	index := map[string]int{}
	for rows.Next() {
		var c model.Candidate
		var lat, lon, quality sql.NullFloat64
		if err := rows.Scan(&c.ID, &lat, &lon, &quality); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		if lat.Valid && lon.Valid {
			c.Coordinate = &model.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
		}
		if quality.Valid {
			q := quality.Float64
			c.QualityScore = &q
		}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list candidates iterate")
	}
	if len(out) == 0 {
		return out, nil
	}

	if err := s.attachDiplomas(ctx, out, index); err != nil {
		return nil, err
	}
	return out, nil
}

// attachDiplomas fills RawDiplomas for the already-loaded candidates.
// Classification into categories is the engine's job, not the store's.
func (s *SQLiteStore) attachDiplomas(ctx context.Context, cands []model.Candidate, index map[string]int) error {
	ids := make([]any, 0, len(cands))
	for _, c := range cands {
		ids = append(ids, c.ID)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT candidate_id, raw_label FROM candidate_diplomas
		 WHERE candidate_id IN (`+placeholders(len(ids))+`)
		 ORDER BY candidate_id, raw_label`, ids...)
	if err != nil {
		return eris.Wrap(err, "sqlite: list diplomas")
	}
	defer rows.Close()

	for rows.Next() {
		var candidateID, label string
		if err := rows.Scan(&candidateID, &label); err != nil {
			return eris.Wrap(err, "sqlite: scan diploma")
		}
		if i, ok := index[candidateID]; ok {
			cands[i].RawDiplomas = append(cands[i].RawDiplomas, label)
		}
	}
	return eris.Wrap(rows.Err(), "sqlite: list diplomas iterate")
}

func (s *SQLiteStore) ListPostings(ctx context.Context, f PostingFilter) ([]model.Posting, error) {
	query := `SELECT id, role_id, nursery, lat, lon, urgency, status FROM fact_postings WHERE 1=1`
	var args []any

	if len(f.IDs) > 0 {
		query += ` AND id IN (` + placeholders(len(f.IDs)) + `)`
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	if f.OnlyOpen {
		query += ` AND status = ?`
		args = append(args, string(model.PostingOpen))
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list postings")
	}
	defer rows.Close()

	var out []model.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list postings iterate")
}

func (s *SQLiteStore) ListRequirements(ctx context.Context) (map[string]requirement.Formula, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, requirement FROM dim_roles`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list requirements")
	}
	defer rows.Close()

	out := make(map[string]requirement.Formula)
	for rows.Next() {
		var roleID string
		var raw sql.NullString
		if err := rows.Scan(&roleID, &raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan role")
		}
		var f requirement.Formula
		if raw.Valid {
			f, err = requirement.FromJSON([]byte(raw.String))
			if err != nil {
				return nil, eris.Wrapf(err, "sqlite: role %s", roleID)
			}
		}
		out[roleID] = f
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list requirements iterate")
}

func (s *SQLiteStore) UpsertCandidate(ctx context.Context, c model.Candidate) error {
	if c.ID == "" {
		return eris.New("sqlite: candidate id required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	var lat, lon, quality any
	if c.Coordinate != nil {
		lat, lon = c.Coordinate.Lat, c.Coordinate.Lon
	}
	if c.QualityScore != nil {
		quality = *c.QualityScore
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO dim_candidates (id, lat, lon, quality_score, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   lat = excluded.lat, lon = excluded.lon,
		   quality_score = excluded.quality_score, updated_at = excluded.updated_at`,
		c.ID, lat, lon, quality, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert candidate %s", c.ID)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM candidate_diplomas WHERE candidate_id = ?`, c.ID); err != nil {
		return eris.Wrapf(err, "sqlite: clear diplomas %s", c.ID)
	}
	for _, label := range c.RawDiplomas {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO candidate_diplomas (candidate_id, raw_label) VALUES (?, ?)`,
			c.ID, label); err != nil {
			return eris.Wrapf(err, "sqlite: insert diploma %s", c.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit candidate")
}

func (s *SQLiteStore) UpsertRole(ctx context.Context, roleID, title string, f requirement.Formula) error {
	if roleID == "" {
		return eris.New("sqlite: role id required")
	}
	raw, err := f.ToJSON()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dim_roles (id, title, requirement) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET title = excluded.title, requirement = excluded.requirement`,
		roleID, title, string(raw),
	)
	return eris.Wrapf(err, "sqlite: upsert role %s", roleID)
}

func (s *SQLiteStore) UpsertPosting(ctx context.Context, p model.Posting) error {
	if p.ID == "" {
		return eris.New("sqlite: posting id required")
	}
	var lat, lon any
	if p.Coordinate != nil {
		lat, lon = p.Coordinate.Lat, p.Coordinate.Lon
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fact_postings (id, role_id, nursery, lat, lon, urgency, status, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   role_id = excluded.role_id, nursery = excluded.nursery,
		   lat = excluded.lat, lon = excluded.lon,
		   urgency = excluded.urgency, status = excluded.status,
		   updated_at = excluded.updated_at`,
		p.ID, p.RoleID, p.Nursery, lat, lon, string(p.Urgency), string(p.Status), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert posting %s", p.ID)
}

func (s *SQLiteStore) SaveMatches(ctx context.Context, resultID string, matches []match.Match) error {
	if resultID == "" {
		return eris.New("sqlite: result id required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fact_matches
		   (result_id, candidate_id, posting_id, composite, qualified, distance_km, urgency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare matches")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, m := range matches {
		var composite, distance any
		if m.Score.Composite != nil {
			composite = *m.Score.Composite
		}
		if m.DistanceKM != nil {
			distance = *m.DistanceKM
		}
		if _, err := stmt.ExecContext(ctx,
			resultID, m.CandidateID, m.PostingID,
			composite, boolToInt(m.Qualified), distance, string(m.Urgency), now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert match %s/%s", m.CandidateID, m.PostingID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit matches")
}

// helpers

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, 2*n)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPosting(row scannable) (*model.Posting, error) {
	var p model.Posting
	var lat, lon sql.NullFloat64
	var urgency, status string
	if err := row.Scan(&p.ID, &p.RoleID, &p.Nursery, &lat, &lon, &urgency, &status); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan posting")
	}
	if lat.Valid && lon.Valid {
		p.Coordinate = &model.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
	}
	p.Urgency = model.ParseUrgency(urgency)
	p.Status = model.PostingStatus(status)
	return &p, nil
}
