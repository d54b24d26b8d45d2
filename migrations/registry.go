package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	relay "github.com/MuhammadAslam635/referable-dev-sub000"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// dialectTrees maps each supported dialect to its subtree inside the
// migration root. Postgres files sit at the root; SQLite variants live
// in a subdirectory because the two schemas diverge on column types.
var dialectTrees = []struct {
	dialect string
	subpath string
}{
	{dialect: DialectPostgres, subpath: "."},
	{dialect: DialectSQLite, subpath: "sqlite"},
}

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithDialectSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if normalized := normalizeTargets(targets); len(normalized) > 0 {
			r.ValidationTargets = normalized
		}
	}
}

func WithFilesystems(filesystems ...FilesystemSpec) Option {
	return func(r *Registration) {
		kept := make([]FilesystemSpec, 0, len(filesystems))
		for _, spec := range filesystems {
			dialect := strings.ToLower(strings.TrimSpace(spec.Dialect))
			if dialect == "" || spec.FS == nil {
				continue
			}
			spec.Dialect = dialect
			kept = append(kept, spec)
		}
		if len(kept) > 0 {
			r.Filesystems = kept
		}
	}
}

// Filesystems resolves the per-dialect migration trees from the embedded
// relay schema, or from an explicit override filesystem when provided.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	root := relay.GetCoreMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}

	base, basePath, err := schemaRoot(root)
	if err != nil {
		return nil, err
	}

	specs := make([]FilesystemSpec, 0, len(dialectTrees))
	for _, tree := range dialectTrees {
		spec := FilesystemSpec{Dialect: tree.dialect, Path: basePath, FS: base}
		if tree.subpath != "." {
			sub, subErr := fs.Sub(base, tree.subpath)
			if subErr != nil {
				return nil, fmt.Errorf("migrations: resolve %s filesystem: %w", tree.dialect, subErr)
			}
			spec.FS = sub
			spec.Path = joinFSPath(basePath, tree.subpath)
		}
		if err := checkHasMigrations(spec); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       "sms-relay",
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}

	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if err := reg.validate(); err != nil {
		return reg, err
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	wanted := make(map[string]struct{}, len(reg.ValidationTargets))
	for _, target := range normalizeTargets(reg.ValidationTargets) {
		wanted[target] = struct{}{}
	}
	for _, spec := range reg.Filesystems {
		if _, ok := wanted[spec.Dialect]; !ok {
			continue
		}
		if spec.FS == nil {
			return reg, fmt.Errorf("migrations: filesystem for %s is nil", spec.Dialect)
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", spec.Dialect, spec.Path, err)
		}
	}
	return reg, nil
}

func (r Registration) validate() error {
	if strings.TrimSpace(r.SourceLabel) == "" {
		return fmt.Errorf("migrations: source label is required")
	}
	if len(r.ValidationTargets) == 0 {
		return fmt.Errorf("migrations: validation targets are required")
	}
	if len(r.Filesystems) == 0 {
		return fmt.Errorf("migrations: filesystems are required")
	}
	return nil
}

// schemaRoot accepts either the module root (migrations nested under
// data/sql) or a filesystem already pointed at the migration files.
func schemaRoot(root fs.FS) (fs.FS, string, error) {
	const nested = "data/sql/migrations"
	if sub, err := fs.Sub(root, nested); err == nil {
		if _, statErr := fs.Stat(sub, "."); statErr == nil {
			if matches, globErr := fs.Glob(sub, "*.sql"); globErr == nil && len(matches) > 0 {
				return sub, nested, nil
			}
		}
	}

	entries, err := fs.ReadDir(root, ".")
	if err != nil {
		return nil, "", fmt.Errorf("migrations: inspect migration root: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			return root, ".", nil
		}
	}
	return nil, "", fmt.Errorf("migrations: no migration files under %s or the filesystem root", nested)
}

func checkHasMigrations(spec FilesystemSpec) error {
	matches, err := fs.Glob(spec.FS, "*.up.sql")
	if err != nil {
		return fmt.Errorf("migrations: glob %s %s: %w", spec.Dialect, spec.Path, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("migrations: %s filesystem %q has no *.up.sql files", spec.Dialect, spec.Path)
	}
	return nil
}

func normalizeTargets(targets []string) []string {
	seen := make(map[string]struct{}, len(targets))
	out := make([]string, 0, len(targets))
	for _, target := range targets {
		normalized := strings.ToLower(strings.TrimSpace(target))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func joinFSPath(base string, suffix string) string {
	if base == "." {
		return suffix
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(suffix, "/")
}
