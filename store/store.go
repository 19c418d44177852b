// Package store persists the session cookie, puzzle inputs and sent
// solutions in two SQLite databases: a main database in the data directory
// (things the user would be upset to lose) and a cache database in the cache
// directory (things that can always be fetched again).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/isdmx/aocd/config"
	"github.com/isdmx/aocd/lazy"
)

// ErrNotFound is returned when a lookup has no stored row.
var ErrNotFound = errors.New("not found")

const dirPermission = 0o700

// SentSolution is a previously submitted answer.
type SentSolution struct {
	Solution string
	Correct  bool
}

// Store is the SQLite backed data store. Databases are opened on first use.
type Store struct {
	logger    *zap.Logger
	mainPath  string
	cachePath string

	mainDB  *lazy.Value[*sql.DB]
	cacheDB *lazy.Value[*sql.DB]
}

// New creates a Store using the paths from cfg.
func New(cfg *config.Config, logger *zap.Logger) *Store {
	return NewWithPaths(cfg.MainDBPath(), cfg.CacheDBPath(), logger)
}

// NewWithPaths creates a Store for explicit database files.
func NewWithPaths(mainPath, cachePath string, logger *zap.Logger) *Store {
	s := &Store{
		logger:    logger,
		mainPath:  mainPath,
		cachePath: cachePath,
	}
	s.mainDB = lazy.NewValue(func(ctx context.Context) (*sql.DB, error) {
		return openDB(ctx, s.mainPath, mainSchema)
	})
	s.cacheDB = lazy.NewValue(func(ctx context.Context) (*sql.DB, error) {
		return openDB(ctx, s.cachePath, cacheSchema)
	})
	return s
}

var mainSchema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		session TEXT NOT NULL
	)`,
}

var cacheSchema = []string{
	`CREATE TABLE IF NOT EXISTS inputs (
		year INTEGER NOT NULL,
		day INTEGER NOT NULL,
		input TEXT,
		PRIMARY KEY (year, day)
	)`,
	`CREATE TABLE IF NOT EXISTS sent_solutions (
		year INTEGER NOT NULL,
		day INTEGER NOT NULL,
		part INTEGER NOT NULL,
		solution TEXT NOT NULL,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		correct INTEGER NOT NULL,
		PRIMARY KEY (year, day, part, solution)
	)`,
}

func openDB(ctx context.Context, path string, schema []string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPermission); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// SQLite serializes writers anyway; one connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize database %s: %w", path, err)
		}
	}
	return db, nil
}

// Session returns the most recently stored session cookie.
func (s *Store) Session(ctx context.Context) (string, error) {
	db, err := s.mainDB.Get(ctx)
	if err != nil {
		return "", err
	}

	var session string
	err = db.QueryRowContext(ctx, "SELECT session FROM sessions ORDER BY id DESC LIMIT 1").Scan(&session)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session: %w", err)
	}
	return session, nil
}

// SetSession replaces the stored session cookie.
func (s *Store) SetSession(ctx context.Context, session string) error {
	db, err := s.mainDB.Get(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO sessions (session) VALUES (?)", session); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return tx.Commit()
}

// Input returns a cached puzzle input.
func (s *Store) Input(ctx context.Context, year, day int) (string, error) {
	db, err := s.cacheDB.Get(ctx)
	if err != nil {
		return "", err
	}

	var input string
	err = db.QueryRowContext(ctx, "SELECT input FROM inputs WHERE year = ? AND day = ?", year, day).Scan(&input)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cached input: %w", err)
	}
	return input, nil
}

// SetInput caches a puzzle input.
func (s *Store) SetInput(ctx context.Context, year, day int, input string) error {
	db, err := s.cacheDB.Get(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		"INSERT OR REPLACE INTO inputs (year, day, input) VALUES (?, ?, ?)",
		year, day, input)
	if err != nil {
		return fmt.Errorf("failed to cache input: %w", err)
	}
	return nil
}

// DeleteInput removes a cached puzzle input.
func (s *Store) DeleteInput(ctx context.Context, year, day int) error {
	db, err := s.cacheDB.Get(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM inputs WHERE year = ? AND day = ?", year, day); err != nil {
		return fmt.Errorf("failed to delete cached input: %w", err)
	}
	return nil
}

// SentSolution finds the row relevant to submitting solution: the row for
// that exact solution if one exists, otherwise a row already known to be
// correct. ErrNotFound means neither exists.
func (s *Store) SentSolution(ctx context.Context, year, day, part int, solution string) (SentSolution, error) {
	db, err := s.cacheDB.Get(ctx)
	if err != nil {
		return SentSolution{}, err
	}

	var (
		sent    SentSolution
		correct int
	)
	err = db.QueryRowContext(ctx,
		`SELECT solution, correct FROM sent_solutions
		WHERE year = ? AND day = ? AND part = ? AND (solution = ? OR correct)
		ORDER BY solution = ? DESC
		LIMIT 1`,
		year, day, part, solution, solution).Scan(&sent.Solution, &correct)
	if errors.Is(err, sql.ErrNoRows) {
		return SentSolution{}, ErrNotFound
	}
	if err != nil {
		return SentSolution{}, fmt.Errorf("failed to read sent solution: %w", err)
	}
	sent.Correct = correct != 0
	return sent, nil
}

// SetSentSolution records the outcome of a submission.
func (s *Store) SetSentSolution(ctx context.Context, year, day, part int, solution string, correct bool) error {
	db, err := s.cacheDB.Get(ctx)
	if err != nil {
		return err
	}

	correctInt := 0
	if correct {
		correctInt = 1
	}
	_, err = db.ExecContext(ctx,
		"INSERT OR REPLACE INTO sent_solutions (year, day, part, solution, correct) VALUES (?, ?, ?, ?, ?)",
		year, day, part, solution, correctInt)
	if err != nil {
		return fmt.Errorf("failed to record sent solution: %w", err)
	}
	return nil
}

// ClearData closes both databases and deletes their files.
func (s *Store) ClearData(ctx context.Context) error {
	if err := s.Close(); err != nil {
		return err
	}

	g, _ := errgroup.WithContext(ctx)
	for _, path := range []string{s.mainPath, s.cachePath} {
		g.Go(func() error {
			for _, p := range []string{path, path + "-wal", path + "-shm"} {
				if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("failed to remove %s: %w", p, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info("cleared stored data",
		zap.String("main_db", s.mainPath),
		zap.String("cache_db", s.cachePath))
	return nil
}

// Close closes any opened database. The store reopens them on next use.
func (s *Store) Close() error {
	var errs []error
	for _, v := range []*lazy.Value[*sql.DB]{s.mainDB, s.cacheDB} {
		db, ok := v.Peek()
		if !ok {
			continue
		}
		v.Reset()
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
