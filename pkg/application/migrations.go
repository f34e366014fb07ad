package application

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	"github.com/sirupsen/logrus"
)

// MigrationStatus is one migration's state within a module.
type MigrationStatus struct {
	Module  string
	Version int64
	Source  string
	Applied bool
}

// MigrationManager applies per-module goose migrations. Each module keeps
// its own version table so modules can evolve independently.
type MigrationManager interface {
	Register(name string, fsys fs.FS)
	Up(ctx context.Context, db *sql.DB) error
	Down(ctx context.Context, db *sql.DB) error
	Status(ctx context.Context, db *sql.DB) ([]MigrationStatus, error)
}

type migrationSet struct {
	name string
	fsys fs.FS
}

type migrationManager struct {
	logger *logrus.Logger
	sets   []migrationSet
}

func NewMigrationManager(logger *logrus.Logger) MigrationManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &migrationManager{logger: logger}
}

func (m *migrationManager) Register(name string, fsys fs.FS) {
	m.sets = append(m.sets, migrationSet{name: name, fsys: fsys})
}

func versionTable(module string) string {
	return "goose_" + module + "_version"
}

func (m *migrationManager) provider(db *sql.DB, set migrationSet) (*goose.Provider, error) {
	store, err := database.NewStore(database.DialectPostgres, versionTable(set.name))
	if err != nil {
		return nil, err
	}
	return goose.NewProvider("", db, set.fsys, goose.WithStore(store))
}

func (m *migrationManager) Up(ctx context.Context, db *sql.DB) error {
	for _, set := range m.sets {
		p, err := m.provider(db, set)
		if err != nil {
			return fmt.Errorf("migrations %s: %w", set.name, err)
		}
		results, err := p.Up(ctx)
		if err != nil {
			return fmt.Errorf("migrations %s up: %w", set.name, err)
		}
		for _, r := range results {
			m.logger.WithFields(logrus.Fields{
				"module":   set.name,
				"version":  r.Source.Version,
				"duration": r.Duration,
			}).Info("migration applied")
		}
	}
	return nil
}

// Down rolls back the most recent migration of the last registered module.
func (m *migrationManager) Down(ctx context.Context, db *sql.DB) error {
	if len(m.sets) == 0 {
		return nil
	}
	set := m.sets[len(m.sets)-1]
	p, err := m.provider(db, set)
	if err != nil {
		return fmt.Errorf("migrations %s: %w", set.name, err)
	}
	r, err := p.Down(ctx)
	if err != nil {
		return fmt.Errorf("migrations %s down: %w", set.name, err)
	}
	m.logger.WithFields(logrus.Fields{
		"module":  set.name,
		"version": r.Source.Version,
	}).Info("migration rolled back")
	return nil
}

func (m *migrationManager) Status(ctx context.Context, db *sql.DB) ([]MigrationStatus, error) {
	var out []MigrationStatus
	for _, set := range m.sets {
		p, err := m.provider(db, set)
		if err != nil {
			return nil, fmt.Errorf("migrations %s: %w", set.name, err)
		}
		statuses, err := p.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrations %s status: %w", set.name, err)
		}
		for _, s := range statuses {
			out = append(out, MigrationStatus{
				Module:  set.name,
				Version: s.Source.Version,
				Source:  s.Source.Path,
				Applied: s.State == goose.StateApplied,
			})
		}
	}
	return out, nil
}
