package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	relay "github.com/MuhammadAslam635/referable-dev-sub000"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
}

func TestRelayMigrationPairs_ExistForBothDialects(t *testing.T) {
	root := relay.GetCoreMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_relay_core_schema.up.sql",
		"data/sql/migrations/00001_relay_core_schema.down.sql",
		"data/sql/migrations/00002_relay_delivery_and_rate_limit_ledgers.up.sql",
		"data/sql/migrations/00002_relay_delivery_and_rate_limit_ledgers.down.sql",
		"data/sql/migrations/sqlite/00001_relay_core_schema.up.sql",
		"data/sql/migrations/sqlite/00001_relay_core_schema.down.sql",
		"data/sql/migrations/sqlite/00002_relay_delivery_and_rate_limit_ledgers.up.sql",
		"data/sql/migrations/sqlite/00002_relay_delivery_and_rate_limit_ledgers.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteCoreSchemaMigration_EnforcesDirectoryAndMessageUniqueness(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-relay-core-schema?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	root := relay.GetCoreMigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	if err := execSQLMigration(context.Background(), db, sqliteMigrations, "00001_relay_core_schema.up.sql"); err != nil {
		t.Fatalf("apply core schema migration: %v", err)
	}

	insertBusiness := `
		INSERT INTO relay_businesses (
			id,
			name,
			transport_number,
			forwarding_number,
			forwarding_enabled,
			metadata,
			created_at,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(
		context.Background(),
		insertBusiness,
		"biz_1", "Bloom Floral", "+15550001000", "+15550002000", 1, "{}",
		"2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z",
	); err != nil {
		t.Fatalf("insert business: %v", err)
	}

	if _, err := db.ExecContext(
		context.Background(),
		insertBusiness,
		"biz_2", "Second Shop", "+15550001000", "", 0, "{}",
		"2026-01-02T00:00:00Z", "2026-01-02T00:00:00Z",
	); err == nil {
		t.Fatalf("expected transport number uniqueness violation")
	}

	if _, err := db.ExecContext(
		context.Background(),
		`UPDATE relay_businesses SET deleted_at = ? WHERE id = ?`,
		"2026-01-03T00:00:00Z", "biz_1",
	); err != nil {
		t.Fatalf("soft delete business: %v", err)
	}
	if _, err := db.ExecContext(
		context.Background(),
		insertBusiness,
		"biz_2", "Second Shop", "+15550001000", "", 0, "{}",
		"2026-01-04T00:00:00Z", "2026-01-04T00:00:00Z",
	); err != nil {
		t.Fatalf("expected transport number to free up after soft delete: %v", err)
	}

	insertMessage := `
		INSERT INTO relay_messages (
			id,
			business_id,
			client_id,
			direction,
			from_number,
			to_number,
			body,
			provider_message_id,
			status,
			metadata,
			created_at,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(
		context.Background(),
		insertMessage,
		"msg_1", "biz_2", nil, "inbound", "+15550003000", "+15550001000",
		"hello", "SM100", "received", "{}",
		"2026-01-05T00:00:00Z", "2026-01-05T00:00:00Z",
	); err != nil {
		t.Fatalf("insert message: %v", err)
	}
	if _, err := db.ExecContext(
		context.Background(),
		insertMessage,
		"msg_2", "biz_2", nil, "inbound", "+15550003000", "+15550001000",
		"hello again", "SM100", "received", "{}",
		"2026-01-05T00:01:00Z", "2026-01-05T00:01:00Z",
	); err == nil {
		t.Fatalf("expected provider message id uniqueness violation")
	}

	// Messages without a provider id stay outside the unique index.
	for _, id := range []string{"msg_3", "msg_4"} {
		if _, err := db.ExecContext(
			context.Background(),
			insertMessage,
			id, "biz_2", nil, "outbound", "+15550001000", "+15550003000",
			"reply", "", "sent", "{}",
			"2026-01-06T00:00:00Z", "2026-01-06T00:00:00Z",
		); err != nil {
			t.Fatalf("insert message %s without provider id: %v", id, err)
		}
	}
}

func TestSQLiteLedgerMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-relay-ledgers?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	root := relay.GetCoreMigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	baseUps := []string{
		"00001_relay_core_schema.up.sql",
		"00002_relay_delivery_and_rate_limit_ledgers.up.sql",
	}
	for _, migration := range baseUps {
		if err := execSQLMigration(context.Background(), db, sqliteMigrations, migration); err != nil {
			t.Fatalf("apply base migration %s: %v", migration, err)
		}
	}

	insertDelivery := `
		INSERT INTO relay_webhook_deliveries (
			id,
			claim_id,
			provider_id,
			delivery_id,
			status,
			attempts,
			last_error,
			created_at,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(
		context.Background(),
		insertDelivery,
		"del_1", "claim_1", "twilio", "SM200", "processing", 1, "",
		"2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z",
	); err != nil {
		t.Fatalf("insert delivery: %v", err)
	}
	if _, err := db.ExecContext(
		context.Background(),
		insertDelivery,
		"del_2", "claim_2", "twilio", "SM200", "processing", 1, "",
		"2026-01-01T00:01:00Z", "2026-01-01T00:01:00Z",
	); err == nil {
		t.Fatalf("expected (provider_id, delivery_id) uniqueness violation")
	}

	if err := execSQLMigration(
		context.Background(),
		db,
		sqliteMigrations,
		"00002_relay_delivery_and_rate_limit_ledgers.down.sql",
	); err != nil {
		t.Fatalf("apply ledger migration down: %v", err)
	}

	for _, tableName := range []string{"relay_webhook_deliveries", "relay_rate_limit_state"} {
		var count int
		if err := db.QueryRowContext(
			context.Background(),
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
			tableName,
		).Scan(&count); err != nil {
			t.Fatalf("query sqlite_master for %s: %v", tableName, err)
		}
		if count != 0 {
			t.Fatalf("expected table %s to be dropped after down migration", tableName)
		}
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
