package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/plutoskio/BDD-grandir2.0/internal/db"
	"github.com/plutoskio/BDD-grandir2.0/internal/match"
	"github.com/plutoskio/BDD-grandir2.0/internal/model"
	"github.com/plutoskio/BDD-grandir2.0/internal/requirement"
)

// wgs84 is the SRID for geographic coordinates in decimal degrees.
const wgs84 = 4326

// PostgresStore implements Store using pgxpool. Coordinates persist as
// PostGIS geometry(Point, 4326) columns encoded with EWKB.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations.
var preparedStatements = map[string]string{
	"upsert_candidate": `INSERT INTO dim_candidates (id, location, quality_score, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   location = EXCLUDED.location, quality_score = EXCLUDED.quality_score,
		   updated_at = EXCLUDED.updated_at`,
	"upsert_posting": `INSERT INTO fact_postings (id, role_id, nursery, location, urgency, status, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   role_id = EXCLUDED.role_id, nursery = EXCLUDED.nursery,
		   location = EXCLUDED.location, urgency = EXCLUDED.urgency,
		   status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
	"insert_diploma": `INSERT INTO candidate_diplomas (candidate_id, raw_label)
		 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS dim_roles (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	requirement JSONB
);

CREATE TABLE IF NOT EXISTS dim_candidates (
	id            TEXT PRIMARY KEY,
	location      geometry(Point, 4326),
	quality_score DOUBLE PRECISION,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
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
	location   geometry(Point, 4326),
	urgency    TEXT NOT NULL DEFAULT 'unknown',
	status     TEXT NOT NULL DEFAULT 'open',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS fact_matches (
	result_id    TEXT NOT NULL,
	candidate_id TEXT NOT NULL,
	posting_id   TEXT NOT NULL,
	composite    DOUBLE PRECISION,
	qualified    BOOLEAN NOT NULL,
	distance_km  DOUBLE PRECISION,
	urgency      TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (result_id, candidate_id, posting_id)
);

CREATE INDEX IF NOT EXISTS idx_fact_postings_status ON fact_postings(status);
CREATE INDEX IF NOT EXISTS idx_fact_postings_role_id ON fact_postings(role_id);
CREATE INDEX IF NOT EXISTS idx_fact_postings_location ON fact_postings USING GIST(location);
CREATE INDEX IF NOT EXISTS idx_dim_candidates_location ON dim_candidates USING GIST(location);
CREATE INDEX IF NOT EXISTS idx_fact_matches_result_id ON fact_matches(result_id);
`

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListCandidates(ctx context.Context, f CandidateFilter) ([]model.Candidate, error) {
	query := `SELECT id, ST_AsEWKB(location), quality_score FROM dim_candidates WHERE true`
	args := []any{}
	argIdx := 1

	if len(f.IDs) > 0 {
		query += fmt.Sprintf(` AND id = ANY($%d)`, argIdx)
		args = append(args, f.IDs)
		argIdx++
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list candidates")
	}
	defer rows.Close()

	var out []model.Candidate
	index := map[string]int{}
	for rows.Next() {
		var c model.Candidate
		var loc []byte
		var quality *float64
		if err := rows.Scan(&c.ID, &loc, &quality); err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		c.Coordinate, err = decodePoint(loc)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: candidate %s", c.ID)
		}
		c.QualityScore = quality
		index[c.ID] = len(out)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list candidates iterate")
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(out))
	for _, c := range out {
		ids = append(ids, c.ID)
	}
	drows, err := s.pool.Query(ctx,
		`SELECT candidate_id, raw_label FROM candidate_diplomas
		 WHERE candidate_id = ANY($1) ORDER BY candidate_id, raw_label`, ids)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list diplomas")
	}
	defer drows.Close()

	for drows.Next() {
		var candidateID, label string
		if err := drows.Scan(&candidateID, &label); err != nil {
			return nil, eris.Wrap(err, "postgres: scan diploma")
		}
		if i, ok := index[candidateID]; ok {
			out[i].RawDiplomas = append(out[i].RawDiplomas, label)
		}
	}
	return out, eris.Wrap(drows.Err(), "postgres: list diplomas iterate")
}

func (s *PostgresStore) ListPostings(ctx context.Context, f PostingFilter) ([]model.Posting, error) {
	query := `SELECT id, role_id, nursery, ST_AsEWKB(location), urgency, status FROM fact_postings WHERE true`
	args := []any{}
	argIdx := 1

	if len(f.IDs) > 0 {
		query += fmt.Sprintf(` AND id = ANY($%d)`, argIdx)
		args = append(args, f.IDs)
		argIdx++
	}
	if f.OnlyOpen {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(model.PostingOpen))
		argIdx++
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list postings")
	}
	defer rows.Close()

	var out []model.Posting
	for rows.Next() {
		var p model.Posting
		var loc []byte
		var urgency, status string
		if err := rows.Scan(&p.ID, &p.RoleID, &p.Nursery, &loc, &urgency, &status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan posting")
		}
		p.Coordinate, err = decodePoint(loc)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: posting %s", p.ID)
		}
		p.Urgency = model.ParseUrgency(urgency)
		p.Status = model.PostingStatus(status)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list postings iterate")
}

func (s *PostgresStore) ListRequirements(ctx context.Context) (map[string]requirement.Formula, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, requirement FROM dim_roles`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list requirements")
	}
	defer rows.Close()

	out := make(map[string]requirement.Formula)
	for rows.Next() {
		var roleID string
		var raw []byte
		if err := rows.Scan(&roleID, &raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan role")
		}
		f, err := requirement.FromJSON(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: role %s", roleID)
		}
		out[roleID] = f
	}
	return out, eris.Wrap(rows.Err(), "postgres: list requirements iterate")
}

func (s *PostgresStore) UpsertCandidate(ctx context.Context, c model.Candidate) error {
	if c.ID == "" {
		return eris.New("postgres: candidate id required")
	}
	loc, err := encodePoint(c.Coordinate)
	if err != nil {
		return eris.Wrapf(err, "postgres: candidate %s", c.ID)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO dim_candidates (id, location, quality_score, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   location = EXCLUDED.location, quality_score = EXCLUDED.quality_score,
		   updated_at = EXCLUDED.updated_at`,
		c.ID, loc, c.QualityScore, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert candidate %s", c.ID)
	}

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM candidate_diplomas WHERE candidate_id = $1`, c.ID); err != nil {
		return eris.Wrapf(err, "postgres: clear diplomas %s", c.ID)
	}
	for _, label := range c.RawDiplomas {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO candidate_diplomas (candidate_id, raw_label)
			 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			c.ID, label); err != nil {
			return eris.Wrapf(err, "postgres: insert diploma %s", c.ID)
		}
	}
	return nil
}

func (s *PostgresStore) UpsertRole(ctx context.Context, roleID, title string, f requirement.Formula) error {
	if roleID == "" {
		return eris.New("postgres: role id required")
	}
	raw, err := f.ToJSON()
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO dim_roles (id, title, requirement) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, requirement = EXCLUDED.requirement`,
		roleID, title, raw,
	)
	return eris.Wrapf(err, "postgres: upsert role %s", roleID)
}

func (s *PostgresStore) UpsertPosting(ctx context.Context, p model.Posting) error {
	if p.ID == "" {
		return eris.New("postgres: posting id required")
	}
	loc, err := encodePoint(p.Coordinate)
	if err != nil {
		return eris.Wrapf(err, "postgres: posting %s", p.ID)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO fact_postings (id, role_id, nursery, location, urgency, status, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   role_id = EXCLUDED.role_id, nursery = EXCLUDED.nursery,
		   location = EXCLUDED.location, urgency = EXCLUDED.urgency,
		   status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		p.ID, p.RoleID, p.Nursery, loc, string(p.Urgency), string(p.Status), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert posting %s", p.ID)
}

// SaveMatches persists a ranking snapshot with COPY. Snapshots commonly
// run to tens of thousands of rows, so row-at-a-time inserts are out.
func (s *PostgresStore) SaveMatches(ctx context.Context, resultID string, matches []match.Match) error {
	if resultID == "" {
		return eris.New("postgres: result id required")
	}
	now := time.Now().UTC()
	rows := make([][]any, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []any{
			resultID, m.CandidateID, m.PostingID,
			m.Score.Composite, m.Qualified, m.DistanceKM, string(m.Urgency), now,
		})
	}
	_, err := db.CopyFrom(ctx, s.pool, "fact_matches",
		[]string{"result_id", "candidate_id", "posting_id", "composite", "qualified", "distance_km", "urgency", "created_at"},
		rows)
	return eris.Wrap(err, "postgres: save matches")
}

// geometry codecs

func encodePoint(c *model.Coordinate) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	// EWKB stores X=lon, Y=lat.
	pt := geom.NewPointFlat(geom.XY, []float64{c.Lon, c.Lat}).SetSRID(wgs84)
	data, err := ewkb.Marshal(pt, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "encode point")
	}
	return data, nil
}

func decodePoint(data []byte) (*model.Coordinate, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "decode point")
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return nil, eris.Errorf("decode point: unexpected geometry %T", g)
	}
	return &model.Coordinate{Lat: pt.Y(), Lon: pt.X()}, nil
}
