package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a journal to version. Statements must be idempotent:
// a journal written before user_version tracking may already hold them.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order on Open; user_version records the last applied.
var migrations = []migration{
	{
		version: 1,
		name:    "per-action replay index",
		stmt: `CREATE INDEX IF NOT EXISTS idx_phase_events_plan_action
			ON phase_events(plan_id, action_id, seq)`,
	},
	{
		version: 2,
		name:    "plan status index",
		stmt: `CREATE INDEX IF NOT EXISTS idx_plans_status
			ON plans(status, first_seq)`,
	},
}

// currentSchemaVersion is the version a freshly opened journal reports.
var currentSchemaVersion = migrations[len(migrations)-1].version

// pragmas configure every connection. WAL lets trace read a journal that a
// run is still writing.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// DefaultReplayCacheSize bounds how many finished plans ReplayPlan keeps
// folded in memory.
const DefaultReplayCacheSize = 128

// Store is the SQLite plan journal.
type Store struct {
	db *sql.DB

	// replays holds folded finished plans, keyed by plan ID. Writes for a
	// plan evict it.
	replays *lru.Cache[string, PlanState]
}

// Option configures Open.
type Option func(*options)

type options struct {
	replayCacheSize int
}

// WithReplayCacheSize sets how many finished plans ReplayPlan caches.
// Zero or less disables the cache.
func WithReplayCacheSize(n int) Option {
	return func(o *options) { o.replayCacheSize = n }
}

// Open creates or opens the journal at path and brings its schema up to
// date. ":memory:" gives a journal that lives as long as the Store.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{replayCacheSize: DefaultReplayCacheSize}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite has a single writer, and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if o.replayCacheSize > 0 {
		s.replays, err = lru.New[string, PlanState](o.replayCacheSize)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create replay cache: %w", err)
		}
	}
	return s, nil
}

// Close releases the database. Closing twice is harmless.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func configure(db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply pragmas: %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := migrate(db); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// migrate applies every migration newer than the journal's user_version.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("journal schema version %d is newer than supported %d", version, currentSchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			return fmt.Errorf("set user_version %d: %w", m.version, err)
		}
	}
	return nil
}
