package handlers

import (
	"context"
	"time"

	"feedbackapp/internal/config"
	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"
	contextutils "feedbackapp/internal/utils"
)

// fakeSubmissionService implements services.SubmissionServiceInterface with
// overridable function fields. Unset fields return zero values.
type fakeSubmissionService struct {
	createFn    func(ctx context.Context, sub *models.Submission) (*models.Submission, error)
	getFn       func(ctx context.Context, id int) (*models.Submission, error)
	reviewFn    func(ctx context.Context, id int) (*models.Submission, error)
	listFn      func(ctx context.Context, page, pageSize int, filters services.SubmissionFilters) ([]models.Submission, int, error)
	statsFn     func(ctx context.Context) (*models.InboxStats, error)
	updateFn    func(ctx context.Context, id int, status string) error
	bulkFn      func(ctx context.Context, ids []int, status string) (int, error)
	noteFn      func(ctx context.Context, id int, note string) error
	deleteFn    func(ctx context.Context, id int) error
	analyticsFn func(ctx context.Context) (*models.AnalyticsSummary, error)
	exportFn    func(ctx context.Context) ([]models.Submission, error)
	bulkCalls   int
	createCalls int
}

func (f *fakeSubmissionService) CreateSubmission(ctx context.Context, sub *models.Submission) (*models.Submission, error) {
	f.createCalls++
	if f.createFn != nil {
		return f.createFn(ctx, sub)
	}
	created := *sub
	created.ID = 1
	created.ReferenceCode = "FBK-001-01"
	created.Status = models.StatusNew
	created.EnrichmentStatus = models.EnrichmentPending
	return &created, nil
}

func (f *fakeSubmissionService) GetSubmissionByID(ctx context.Context, id int) (*models.Submission, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return nil, contextutils.ErrSubmissionNotFound
}

func (f *fakeSubmissionService) GetSubmissionForReview(ctx context.Context, id int) (*models.Submission, error) {
	if f.reviewFn != nil {
		return f.reviewFn(ctx, id)
	}
	return nil, contextutils.ErrSubmissionNotFound
}

func (f *fakeSubmissionService) GetSubmissionsPaginated(ctx context.Context, page, pageSize int, filters services.SubmissionFilters) ([]models.Submission, int, error) {
	if f.listFn != nil {
		return f.listFn(ctx, page, pageSize, filters)
	}
	return nil, 0, nil
}

func (f *fakeSubmissionService) GetInboxStats(ctx context.Context) (*models.InboxStats, error) {
	if f.statsFn != nil {
		return f.statsFn(ctx)
	}
	return &models.InboxStats{}, nil
}

func (f *fakeSubmissionService) UpdateStatus(ctx context.Context, id int, status string) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, status)
	}
	return nil
}

func (f *fakeSubmissionService) BulkUpdateStatus(ctx context.Context, ids []int, status string) (int, error) {
	f.bulkCalls++
	if f.bulkFn != nil {
		return f.bulkFn(ctx, ids, status)
	}
	return len(ids), nil
}

func (f *fakeSubmissionService) UpdateNote(ctx context.Context, id int, note string) error {
	if f.noteFn != nil {
		return f.noteFn(ctx, id, note)
	}
	return nil
}

func (f *fakeSubmissionService) SoftDelete(ctx context.Context, id int) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func (f *fakeSubmissionService) GetAnalytics(ctx context.Context) (*models.AnalyticsSummary, error) {
	if f.analyticsFn != nil {
		return f.analyticsFn(ctx)
	}
	return &models.AnalyticsSummary{}, nil
}

func (f *fakeSubmissionService) GetAllForExport(ctx context.Context) ([]models.Submission, error) {
	if f.exportFn != nil {
		return f.exportFn(ctx)
	}
	return nil, nil
}

func (f *fakeSubmissionService) ClaimEnrichment(ctx context.Context, id int) (bool, error) {
	return false, nil
}

func (f *fakeSubmissionService) CompleteEnrichment(ctx context.Context, id int, res *models.EnrichmentResult) error {
	return nil
}

func (f *fakeSubmissionService) FailEnrichment(ctx context.Context, id int) error {
	return nil
}

func (f *fakeSubmissionService) PendingEnrichmentIDs(ctx context.Context, minAge time.Duration, limit int) ([]int, error) {
	return nil, nil
}

// fakeRateLimitService implements services.RateLimitServiceInterface. By
// default every request is allowed.
type fakeRateLimitService struct {
	allowed bool
	err     error
}

func (f *fakeRateLimitService) Fingerprint(ip string) string {
	return "testhash-" + ip
}

func (f *fakeRateLimitService) IsAllowed(ctx context.Context, ipHash string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.allowed, nil
}

func (f *fakeRateLimitService) Sweep(ctx context.Context) (int, error) {
	return 0, nil
}

func (f *fakeRateLimitService) Stats(ctx context.Context) (*models.RateLimitStats, error) {
	return &models.RateLimitStats{}, nil
}

// fakeUserService implements services.UserServiceInterface.
type fakeUserService struct {
	authenticateFn func(ctx context.Context, email, password string) (*models.User, error)
	getByIDFn      func(ctx context.Context, id int) (*models.User, error)
	createFn       func(ctx context.Context, email, name, password, role string) (*models.User, error)
	listFn         func(ctx context.Context) ([]models.User, error)
	setActiveFn    func(ctx context.Context, id int, active bool) error
	deleteFn       func(ctx context.Context, id int) error
	setActiveCalls int
	deleteCalls    int
}

func (f *fakeUserService) AuthenticateUser(ctx context.Context, email, password string) (*models.User, error) {
	if f.authenticateFn != nil {
		return f.authenticateFn(ctx, email, password)
	}
	return nil, contextutils.ErrInvalidCredentials
}

func (f *fakeUserService) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, contextutils.ErrRecordNotFound
}

func (f *fakeUserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, contextutils.ErrRecordNotFound
}

func (f *fakeUserService) CreateUser(ctx context.Context, email, name, password, role string) (*models.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, email, name, password, role)
	}
	return &models.User{ID: 2, Email: email, Name: name, Role: role, IsActive: true}, nil
}

func (f *fakeUserService) ListUsers(ctx context.Context) ([]models.User, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func (f *fakeUserService) SetUserActive(ctx context.Context, id int, active bool) error {
	f.setActiveCalls++
	if f.setActiveFn != nil {
		return f.setActiveFn(ctx, id, active)
	}
	return nil
}

func (f *fakeUserService) UpdateUserPassword(ctx context.Context, id int, password string) error {
	return nil
}

func (f *fakeUserService) DeleteUser(ctx context.Context, id int) error {
	f.deleteCalls++
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func (f *fakeUserService) EnsureDefaultUsers(ctx context.Context, domain string) error {
	return nil
}

// fakeEnqueuer records enqueued submission IDs.
type fakeEnqueuer struct {
	ids    []int
	reject bool
}

func (f *fakeEnqueuer) Enqueue(id int) bool {
	if f.reject {
		return false
	}
	f.ids = append(f.ids, id)
	return true
}

func newTestLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}
