package services

import (
	"context"
	"time"

	"feedbackapp/internal/models"
)

// SubmissionServiceInterface defines submission storage and triage operations.
type SubmissionServiceInterface interface {
	CreateSubmission(ctx context.Context, sub *models.Submission) (*models.Submission, error)
	GetSubmissionByID(ctx context.Context, id int) (*models.Submission, error)
	GetSubmissionForReview(ctx context.Context, id int) (*models.Submission, error)
	GetSubmissionsPaginated(ctx context.Context, page, pageSize int, filters SubmissionFilters) ([]models.Submission, int, error)
	GetInboxStats(ctx context.Context) (*models.InboxStats, error)
	UpdateStatus(ctx context.Context, id int, status string) error
	BulkUpdateStatus(ctx context.Context, ids []int, status string) (int, error)
	UpdateNote(ctx context.Context, id int, note string) error
	SoftDelete(ctx context.Context, id int) error
	GetAnalytics(ctx context.Context) (*models.AnalyticsSummary, error)
	GetAllForExport(ctx context.Context) ([]models.Submission, error)
	ClaimEnrichment(ctx context.Context, id int) (bool, error)
	CompleteEnrichment(ctx context.Context, id int, res *models.EnrichmentResult) error
	FailEnrichment(ctx context.Context, id int) error
	PendingEnrichmentIDs(ctx context.Context, minAge time.Duration, limit int) ([]int, error)
}

// RateLimitServiceInterface defines fingerprinting and sliding window checks.
type RateLimitServiceInterface interface {
	Fingerprint(ip string) string
	IsAllowed(ctx context.Context, ipHash string) (bool, error)
	Sweep(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*models.RateLimitStats, error)
}

// UserServiceInterface defines operator account operations.
type UserServiceInterface interface {
	AuthenticateUser(ctx context.Context, email, password string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, email, name, password, role string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetUserActive(ctx context.Context, id int, active bool) error
	UpdateUserPassword(ctx context.Context, id int, password string) error
	DeleteUser(ctx context.Context, id int) error
	EnsureDefaultUsers(ctx context.Context, domain string) error
}

// Compile-time interface checks.
var (
	_ SubmissionServiceInterface = (*SubmissionService)(nil)
	_ RateLimitServiceInterface  = (*RateLimitService)(nil)
	_ UserServiceInterface       = (*UserService)(nil)
	_ EnrichmentServiceInterface = (*EnrichmentService)(nil)
)
