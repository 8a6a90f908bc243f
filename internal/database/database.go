// Package database provides database connection and migration functionality.
package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"feedbackapp/internal/config"
	"feedbackapp/internal/observability"
	contextutils "feedbackapp/internal/utils"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // golang-migrate postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // golang-migrate file source

	"go.nhat.io/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Manager handles connection setup and schema management.
type Manager struct {
	logger *observability.Logger
}

// The instrumented driver may only be registered once per process.
var (
	otelDriverName string
	otelDriverOnce sync.Once
	otelDriverErr  error
)

// NewManager creates a new database manager with the provided logger.
func NewManager(logger *observability.Logger) *Manager {
	return &Manager{logger: logger}
}

// DefaultDatabaseConfig returns the default pool configuration. When
// TEST_DATABASE_URL is set it becomes the connection URL, so tests pick up
// their database without touching the config file.
func DefaultDatabaseConfig() config.DatabaseConfig {
	cfg := config.DatabaseConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: config.DatabaseConnMaxLifetime,
	}
	if testURL := os.Getenv("TEST_DATABASE_URL"); testURL != "" {
		cfg.URL = testURL
	}
	return cfg
}

// InitDB opens a connection with default pool settings and runs migrations.
func (dm *Manager) InitDB(databaseURL string) (result0 *sql.DB, err error) {
	_, span := observability.TraceDatabaseFunction(context.Background(), "init_db",
		attribute.String("db.name", extractDatabaseName(databaseURL)),
	)
	defer observability.FinishSpan(span, &err)

	cfg := DefaultDatabaseConfig()
	cfg.URL = databaseURL
	return dm.InitDBWithConfig(cfg)
}

// InitDBWithConfig opens a connection with the given pool settings and runs
// migrations.
func (dm *Manager) InitDBWithConfig(cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	_, span := observability.TraceDatabaseFunction(context.Background(), "init_db_with_config",
		attribute.String("db.name", extractDatabaseName(cfg.URL)),
		attribute.Int("db.max_open_conns", cfg.MaxOpenConns),
		attribute.Int("db.max_idle_conns", cfg.MaxIdleConns),
	)
	defer observability.FinishSpan(span, &err)

	db, err := dm.InitDBWithoutMigrations(cfg)
	if err != nil {
		return nil, err
	}
	if err := dm.RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// InitDBWithoutMigrations opens and pings a connection through the
// otelsql-instrumented driver without touching the schema. The worker and the
// CLI tools use this; the server owns migrations.
func (dm *Manager) InitDBWithoutMigrations(cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(context.Background(), "init_db_without_migrations",
		attribute.String("db.name", extractDatabaseName(cfg.URL)),
	)
	defer observability.FinishSpan(span, &err)

	otelDriverOnce.Do(func() {
		otelDriverName, otelDriverErr = otelsql.Register("postgres",
			otelsql.WithDatabaseName(extractDatabaseName(cfg.URL)),
			otelsql.TraceQueryWithArgs(),
			otelsql.WithSystem(semconv.DBSystemPostgreSQL),
			otelsql.TraceRowsAffected(),
		)
	})
	if otelDriverErr != nil {
		return nil, contextutils.WrapError(otelDriverErr, "failed to register otelsql driver")
	}

	db, err := sql.Open(otelDriverName, cfg.URL)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to open database connection")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database connection after ping failure", closeErr)
		}
		return nil, contextutils.WrapError(err, "failed to ping database")
	}

	dm.logger.Info(ctx, "Database connection established", map[string]interface{}{
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime,
	})
	return db, nil
}

// extractDatabaseName pulls the database name out of a postgres connection
// string, for tracing attributes only.
func extractDatabaseName(databaseURL string) string {
	trimmed := databaseURL
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 && idx < len(trimmed)-1 {
		return trimmed[idx+1:]
	}
	return "feedback_db"
}

// RunMigrations applies the base schema.sql and then any pending
// golang-migrate migrations. Both steps are idempotent so the call is safe on
// every boot.
func (dm *Manager) RunMigrations(db *sql.DB) (err error) {
	ctx, span := observability.TraceDatabaseFunction(context.Background(), "run_migrations")
	defer observability.FinishSpan(span, &err)

	if err := dm.runBaseSchema(ctx, db); err != nil {
		return contextutils.WrapError(err, "failed to apply base schema")
	}
	if err := dm.runGolangMigrate(ctx); err != nil {
		return contextutils.WrapError(err, "failed to run golang-migrate migrations")
	}

	dm.logger.Info(ctx, "Database migrations completed")
	return nil
}

// runBaseSchema executes schema.sql statement by statement. Tables are created
// before indexes, and "already exists" failures are tolerated so re-running
// against a populated database is a no-op.
func (dm *Manager) runBaseSchema(ctx context.Context, db *sql.DB) (err error) {
	schemaPath, err := findUpward("schema.sql")
	if err != nil {
		return err
	}

	_, span := observability.TraceDatabaseFunction(ctx, "run_base_schema",
		attribute.String("schema.path", schemaPath),
	)
	defer observability.FinishSpan(span, &err)

	schemaSQL, err := os.ReadFile(schemaPath)
	if err != nil {
		return contextutils.WrapError(err, "failed to read schema file")
	}

	statements := splitSQLStatements(string(schemaSQL))
	span.SetAttributes(attribute.Int("schema.statements", len(statements)))

	var indexes []string
	for _, statement := range statements {
		if strings.HasPrefix(strings.ToUpper(statement), "CREATE INDEX") {
			indexes = append(indexes, statement)
			continue
		}
		if _, execErr := db.Exec(statement); execErr != nil && !isAlreadyExistsError(execErr) {
			return contextutils.WrapErrorf(execErr, "failed to execute schema statement: %s", statement)
		}
	}
	for _, statement := range indexes {
		if _, execErr := db.Exec(statement); execErr != nil && !isAlreadyExistsError(execErr) {
			return contextutils.WrapErrorf(execErr, "failed to execute index statement: %s", statement)
		}
	}
	return nil
}

// runGolangMigrate applies versioned migrations from the migrations directory.
// The migration tool dials the database itself, so it needs the URL from the
// environment rather than an open *sql.DB.
func (dm *Manager) runGolangMigrate(ctx context.Context) (err error) {
	migrationsPath, err := dm.GetMigrationsPath()
	if err != nil {
		return err
	}

	_, span := observability.TraceDatabaseFunction(ctx, "run_golang_migrate",
		attribute.String("migration.path", migrationsPath),
	)
	defer observability.FinishSpan(span, &err)

	entries, err := os.ReadDir(migrationsPath)
	if err != nil {
		return contextutils.WrapError(err, "failed to read migrations directory")
	}
	var migrationFiles int
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".up.sql") {
			migrationFiles++
		}
	}
	span.SetAttributes(attribute.Int("migration.files", migrationFiles))
	if migrationFiles == 0 {
		dm.logger.Info(ctx, "No migration files found, skipping golang-migrate", map[string]interface{}{
			"path": migrationsPath,
		})
		return nil
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("TEST_DATABASE_URL")
	}
	if dbURL == "" {
		return errors.New("DATABASE_URL or TEST_DATABASE_URL must be set for migrations")
	}

	m, err := migrate.New("file://"+filepath.ToSlash(migrationsPath), dbURL)
	if err != nil {
		return contextutils.WrapError(err, "failed to initialize golang-migrate")
	}
	defer func() {
		if _, closeErr := m.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Error closing migration source", closeErr)
		}
	}()

	switch upErr := m.Up(); upErr {
	case nil:
		dm.logger.Info(ctx, "golang-migrate migrations applied")
	case migrate.ErrNoChange:
		dm.logger.Info(ctx, "No new golang-migrate migrations to apply")
	default:
		return contextutils.WrapError(upErr, "golang-migrate up failed")
	}
	return nil
}

// GetMigrationsPath locates the migrations directory relative to wherever the
// binary was started from.
func (dm *Manager) GetMigrationsPath() (string, error) {
	return findUpward("migrations")
}

// findUpward walks from the working directory toward the filesystem root
// looking for name. Binaries run from cmd/ subdirectories and tests run from
// package directories, so the repo root is some number of levels up.
func findUpward(name string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, name)
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", contextutils.ErrorWithContextf("%s not found in any parent directory", name)
		}
		dir = parent
	}
}

// splitSQLStatements strips comments from a SQL file and splits it on
// semicolons. Good enough for the DDL in schema.sql; it does not handle
// semicolons inside string literals.
func splitSQLStatements(sqlText string) []string {
	var cleaned []string
	inBlockComment := false
	for _, line := range strings.Split(sqlText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/*") {
			inBlockComment = true
		}
		if inBlockComment {
			if strings.HasSuffix(line, "*/") {
				inBlockComment = false
			}
			continue
		}
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
			if line == "" {
				continue
			}
		}
		cleaned = append(cleaned, line)
	}

	var statements []string
	for _, stmt := range strings.Split(strings.Join(cleaned, " "), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

func isAlreadyExistsError(err error) bool {
	return strings.Contains(err.Error(), "already exists")
}
