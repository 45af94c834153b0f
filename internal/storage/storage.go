package storage

import (
	"database/sql"
	"embed"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Store struct {
	db    *sql.DB
	clock Clock
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent and
	// serializes writers, which sqlite wants anyway.
	db.SetMaxOpenConns(1)
	return &Store{db: db, clock: realClock{}}, nil
}

func (s *Store) WithClock(clock Clock) {
	s.clock = clock
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(s.db, "migrations")
}

// Day formats t as the UTC calendar date used as the daily aggregate key.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
