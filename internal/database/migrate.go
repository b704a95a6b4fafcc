package database

import (
	"embed"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"

	"agora/internal/middleware"
)

// Migration is one versioned pair of SQL scripts.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

//go:embed migrations/*.sql
var migrationFS embed.FS

var migrations []Migration

func init() {
	loaded, err := LoadMigrations(migrationFS, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations are broken: %v", err))
	}
	migrations = loaded
}

// LoadMigrations reads NNNNNN_name.up.sql files and their .down.sql partners from dir.
func LoadMigrations(fsys embed.FS, dir string) ([]Migration, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var out []Migration
	for _, entry := range entries {
		name := entry.Name()
		base, ok := strings.CutSuffix(name, ".up.sql")
		if entry.IsDir() || !ok {
			continue
		}
		rawVersion, label, ok := strings.Cut(base, "_")
		version, err := strconv.Atoi(rawVersion)
		if !ok || err != nil {
			middleware.Logger.Warn("skipping migration with invalid name", "file", name)
			continue
		}

		up, err := fsys.ReadFile(path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read up migration %s: %w", name, err)
		}
		down, err := fsys.ReadFile(path.Join(dir, base+".down.sql"))
		if err != nil {
			return nil, fmt.Errorf("failed to read down migration for %s: %w", name, err)
		}

		out = append(out, Migration{
			Version:    version,
			Name:       label,
			UpScript:   string(up),
			DownScript: string(down),
		})
	}

	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	return out, nil
}

// GetMigrations returns the embedded migrations in version order.
func GetMigrations() []Migration {
	return migrations
}

func GetMigrationByVersion(version int) *Migration {
	for i := range migrations {
		if migrations[i].Version == version {
			return &migrations[i]
		}
	}
	return nil
}

func (m *Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}
