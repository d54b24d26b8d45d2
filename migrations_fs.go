package relay

import (
	"embed"
	"io/fs"
)

// migrationsFS contains the full relay SQL migration tree, including
// dialect alternatives under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the full embedded migration tree.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}

// GetCoreMigrationsFS returns the relay schema migration tree. Postgres
// files sit at the root; the sqlite/ subtree carries the same revisions
// in sqlite dialect.
func GetCoreMigrationsFS() fs.FS {
	return migrationsFS
}
