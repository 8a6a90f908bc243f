// Package main provides a utility to set up the test database with initial data.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"

	"feedbackapp/internal/config"
	"feedbackapp/internal/database"
	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"
	contextutils "feedbackapp/internal/utils"

	"gopkg.in/yaml.v3"
)

// TestUser represents an operator account in the test data file
type TestUser struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	IsActive *bool  `yaml:"is_active"`
}

// TestUsers represents a collection of test operator accounts
type TestUsers struct {
	Users []TestUser `yaml:"users"`
}

// TestSubmission represents a feedback submission in the test data file
type TestSubmission struct {
	Category   string   `yaml:"category"`
	Message    string   `yaml:"message"`
	Status     string   `yaml:"status"`
	Language   string   `yaml:"language"`
	Summary    string   `yaml:"summary"`
	Tags       []string `yaml:"tags"`
	Note       string   `yaml:"note"`
	Unenriched bool     `yaml:"unenriched"`
}

// TestSubmissions represents a collection of test submissions
type TestSubmissions struct {
	Submissions []TestSubmission `yaml:"submissions"`
}

func resetTestDatabase(databaseURL, testDB string, logger *observability.Logger) error {
	ctx := context.Background()

	// Connect to the admin database to drop and recreate the test database
	adminConnStr := strings.Replace(databaseURL, "/"+testDB+"?", "/postgres?", 1)
	if !strings.Contains(adminConnStr, "/postgres?") {
		adminConnStr = strings.Replace(databaseURL, "/"+testDB, "/postgres", 1)
	}

	adminDB, err := sql.Open("postgres", adminConnStr)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseConnection, "failed to connect to postgres database for drop/create: %v", err)
	}
	defer func() {
		if err := adminDB.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close adminDB", map[string]interface{}{"error": err.Error()})
		}
	}()

	logger.Info(ctx, "Terminating connections to test DB", map[string]interface{}{"database": testDB})
	_, err = adminDB.Exec(fmt.Sprintf(`
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = '%s' AND pid <> pg_backend_pid();
	`, testDB))
	if err != nil {
		logger.Warn(ctx, "Warning: failed to terminate connections", map[string]interface{}{"error": err.Error()})
	}

	logger.Info(ctx, "Dropping test database", map[string]interface{}{"database": testDB})
	if _, err = adminDB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE);", testDB)); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to drop test database: %v", err)
	}

	logger.Info(ctx, "Creating test database", map[string]interface{}{"database": testDB})
	if _, err = adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s;", testDB)); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to create test database: %v", err)
	}

	logger.Info(ctx, "Test database reset complete")
	return nil
}

func main() {
	usersFile := flag.String("users", "cmd/setup-test-db/testdata/users.yaml", "Path to the operator accounts fixture")
	submissionsFile := flag.String("submissions", "cmd/setup-test-db/testdata/submissions.yaml", "Path to the submissions fixture")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "setup-test-db")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	testDB := extractDatabaseName(cfg.Database.URL)
	if testDB == "" {
		logger.Error(ctx, "Could not determine database name", nil, map[string]interface{}{"db_url": cfg.Database.URL})
		os.Exit(1)
	}

	if err := resetTestDatabase(cfg.Database.URL, testDB, logger); err != nil {
		logger.Error(ctx, "Failed to reset test database", err, nil)
		os.Exit(1)
	}

	dbManager := database.NewManager(logger)
	db, err := dbManager.InitDBWithConfig(cfg.Database)
	if err != nil {
		logger.Error(ctx, "Failed to initialize test database", err, nil)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database", map[string]interface{}{"error": err.Error()})
		}
	}()

	userService := services.NewUserService(db, logger)
	submissionService := services.NewSubmissionService(db, logger)

	if err := createTestUsers(ctx, *usersFile, userService); err != nil {
		logger.Error(ctx, "Failed to create test users", err, map[string]interface{}{"file": *usersFile})
		os.Exit(1)
	}

	if err := createTestSubmissions(ctx, *submissionsFile, submissionService); err != nil {
		logger.Error(ctx, "Failed to create test submissions", err, map[string]interface{}{"file": *submissionsFile})
		os.Exit(1)
	}

	logger.Info(ctx, "Test database setup complete", map[string]interface{}{"database": testDB})
	fmt.Println("Test database setup complete")
}

// extractDatabaseName pulls the database name out of a postgres URL
func extractDatabaseName(databaseURL string) string {
	trimmed := databaseURL
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return ""
}

// createTestUsers loads the fixture file and creates operator accounts
func createTestUsers(ctx context.Context, filePath string, userService *services.UserService) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to read users file %s", filePath)
	}

	var testUsers TestUsers
	if err := yaml.Unmarshal(data, &testUsers); err != nil {
		return contextutils.WrapError(err, "failed to parse users file")
	}

	for _, tu := range testUsers.Users {
		user, err := userService.CreateUser(ctx, tu.Email, tu.Name, tu.Password, tu.Role)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to create user %s", tu.Email)
		}
		if tu.IsActive != nil && !*tu.IsActive {
			if err := userService.SetUserActive(ctx, user.ID, false); err != nil {
				return contextutils.WrapErrorf(err, "failed to deactivate user %s", tu.Email)
			}
		}
	}
	return nil
}

// createTestSubmissions loads the fixture file and creates submissions,
// driving each one through the same enrichment transitions the worker uses.
func createTestSubmissions(ctx context.Context, filePath string, submissionService *services.SubmissionService) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to read submissions file %s", filePath)
	}

	var testSubs TestSubmissions
	if err := yaml.Unmarshal(data, &testSubs); err != nil {
		return contextutils.WrapError(err, "failed to parse submissions file")
	}

	for i, ts := range testSubs.Submissions {
		sub := &models.Submission{
			Category: ts.Category,
			Message:  ts.Message,
			IPHash:   fmt.Sprintf("fixture-%02d", i),
		}
		created, err := submissionService.CreateSubmission(ctx, sub)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to create submission %d", i)
		}

		if !ts.Unenriched {
			claimed, err := submissionService.ClaimEnrichment(ctx, created.ID)
			if err != nil || !claimed {
				return contextutils.WrapErrorf(err, "failed to claim enrichment for submission %d", created.ID)
			}
			result := services.FallbackEnrich(ts.Message)
			if ts.Language != "" {
				result.DetectedLanguage = ts.Language
			}
			if ts.Summary != "" {
				result.Summary = ts.Summary
			}
			if len(ts.Tags) > 0 {
				result.Tags = ts.Tags
			}
			if err := submissionService.CompleteEnrichment(ctx, created.ID, result); err != nil {
				return contextutils.WrapErrorf(err, "failed to complete enrichment for submission %d", created.ID)
			}
		}

		if ts.Status != "" && ts.Status != models.StatusNew {
			if err := submissionService.UpdateStatus(ctx, created.ID, ts.Status); err != nil {
				return contextutils.WrapErrorf(err, "failed to set status for submission %d", created.ID)
			}
		}

		if ts.Note != "" {
			if err := submissionService.UpdateNote(ctx, created.ID, ts.Note); err != nil {
				return contextutils.WrapErrorf(err, "failed to set note for submission %d", created.ID)
			}
		}
	}
	return nil
}
