// Package store persists sampler runs and per-frame, per-particle outcomes
// in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Run describes one invocation of the sampler over a scenario.
type Run struct {
	ID           uuid.UUID
	ParamsPath   string
	ScenarioPath string
	Particles    int
	Seed         int64
	CreatedAt    time.Time
}

// Outcome is the stored result of one particle on one frame. Err is set
// instead of the weight breakdown when the frame failed for the particle.
type Outcome struct {
	RunID        uuid.UUID
	FrameID      uint64
	Particle     int
	ParticleID   uuid.UUID
	Groups       int
	Associations []string
	Kill         []int

	Likelihood float64
	AssocPrior float64
	DeathPrior float64
	Exact      float64
	Proposal   float64
	Multiplier float64
	// Weight is the particle's running weight after this frame.
	Weight float64

	Err string
}

// Open opens (creating if needed) the database at path and applies all
// pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

// migrateUp runs all pending migrations. The migrate instance is not
// closed because that would close the shared *sql.DB.
func (s *Store) migrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version and dirty state.
func (s *Store) SchemaVersion() (version uint, dirty bool, err error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// CreateRun stores r and returns its id, generating one if r.ID is zero.
func (s *Store) CreateRun(ctx context.Context, r Run) (uuid.UUID, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, params_path, scenario_path, particles, seed) VALUES (?, ?, ?, ?, ?)`,
		r.ID.String(), r.ParamsPath, r.ScenarioPath, r.Particles, r.Seed)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return r.ID, nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, params_path, scenario_path, particles, seed, created_at FROM runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var id string
		if err := rows.Scan(&id, &r.ParamsPath, &r.ScenarioPath, &r.Particles, &r.Seed, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("bad run id %q: %w", id, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordOutcome stores one particle's result for one frame.
func (s *Store) RecordOutcome(ctx context.Context, o Outcome) error {
	assoc, err := json.Marshal(nonNil(o.Associations))
	if err != nil {
		return fmt.Errorf("failed to encode associations: %w", err)
	}
	kill, err := json.Marshal(nonNil(o.Kill))
	if err != nil {
		return fmt.Errorf("failed to encode kill list: %w", err)
	}
	var errText sql.NullString
	if o.Err != "" {
		errText = sql.NullString{String: o.Err, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outcomes (
			run_id, frame_id, particle_index, particle_id, group_count, associations, kill,
			likelihood, assoc_prior, death_prior, exact, proposal, multiplier, weight, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID.String(), int64(o.FrameID), o.Particle, o.ParticleID.String(), o.Groups, string(assoc), string(kill),
		o.Likelihood, o.AssocPrior, o.DeathPrior, o.Exact, o.Proposal, o.Multiplier, o.Weight, errText)
	if err != nil {
		return fmt.Errorf("failed to insert outcome for frame %d particle %d: %w", o.FrameID, o.Particle, err)
	}
	return nil
}

// Outcomes returns every outcome of a run ordered by frame then particle.
func (s *Store) Outcomes(ctx context.Context, runID uuid.UUID) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT frame_id, particle_index, particle_id, group_count, associations, kill,
		       likelihood, assoc_prior, death_prior, exact, proposal, multiplier, weight, error
		FROM outcomes WHERE run_id = ? ORDER BY frame_id, particle_index`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		o := Outcome{RunID: runID}
		var frameID int64
		var pid, assoc, kill string
		var errText sql.NullString
		if err := rows.Scan(&frameID, &o.Particle, &pid, &o.Groups, &assoc, &kill,
			&o.Likelihood, &o.AssocPrior, &o.DeathPrior, &o.Exact, &o.Proposal, &o.Multiplier, &o.Weight, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.FrameID = uint64(frameID)
		o.Err = errText.String
		if o.ParticleID, err = uuid.Parse(pid); err != nil {
			return nil, fmt.Errorf("bad particle id %q: %w", pid, err)
		}
		if err := json.Unmarshal([]byte(assoc), &o.Associations); err != nil {
			return nil, fmt.Errorf("failed to decode associations: %w", err)
		}
		if err := json.Unmarshal([]byte(kill), &o.Kill); err != nil {
			return nil, fmt.Errorf("failed to decode kill list: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
