package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	"feedbackapp/internal/config"
	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	contextutils "feedbackapp/internal/utils"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// submissionSelectFields is the canonical column list for scanning submissions.
const submissionSelectFields = `id, reference_code, category, message, photo_path, ip_hash, user_agent, status, enrichment_status, detected_language, translation_en, translation_ru, summary, tags, private_note, is_deleted, created_at, updated_at`

// maxReferenceCodeAttempts bounds the collision-regeneration loop on insert.
const maxReferenceCodeAttempts = 5

// SubmissionFilters narrows admin listing queries.
type SubmissionFilters struct {
	Status   string
	Category string
	Tag      string
	Search   string
}

// SubmissionService manages feedback submissions.
type SubmissionService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewSubmissionService creates a new SubmissionService instance.
func NewSubmissionService(db *sql.DB, logger *observability.Logger) *SubmissionService {
	if db == nil {
		panic("NewSubmissionService: db is nil")
	}
	if logger == nil {
		panic("NewSubmissionService: logger is nil")
	}
	return &SubmissionService{db: db, logger: logger}
}

// GenerateReferenceCode produces a public tracking code of the form FBK-NNN-NN.
func GenerateReferenceCode() string {
	n3, _ := rand.Int(rand.Reader, big.NewInt(1000))
	n2, _ := rand.Int(rand.Reader, big.NewInt(100))
	return fmt.Sprintf("%s-%03d-%02d", config.ReferenceCodePrefix, n3.Int64(), n2.Int64())
}

// CreateSubmission inserts a new submission and records the accompanying
// rate-limit event in the same transaction, so an accepted submission always
// counts against the submitter's window and a failed insert never does.
// Reference code collisions are retried with a fresh code.
func (s *SubmissionService) CreateSubmission(ctx context.Context, sub *models.Submission) (result0 *models.Submission, err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "create_submission",
		observability.AttributeCategory(sub.Category),
	)
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.logger.Error(ctx, "Failed to roll back submission transaction", rbErr)
			}
		}
	}()

	now := time.Now()
	insert := `INSERT INTO submissions (reference_code, category, message, photo_path, ip_hash, user_agent, status, enrichment_status, created_at, updated_at)
              VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at, updated_at`

	var inserted bool
	for attempt := 0; attempt < maxReferenceCodeAttempts; attempt++ {
		code := GenerateReferenceCode()
		scanErr := tx.QueryRowContext(ctx, insert,
			code, sub.Category, sub.Message, sub.PhotoPath, sub.IPHash, sub.UserAgent,
			models.StatusNew, models.EnrichmentPending, now, now).
			Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
		if scanErr == nil {
			sub.ReferenceCode = code
			inserted = true
			break
		}
		if pqErr, ok := scanErr.(*pq.Error); ok && pqErr.Code == "23505" {
			continue
		}
		err = contextutils.WrapError(scanErr, "failed to insert submission")
		return nil, err
	}
	if !inserted {
		err = contextutils.ErrorWithContextf("exhausted reference code attempts")
		return nil, err
	}

	if _, execErr := tx.ExecContext(ctx,
		`INSERT INTO rate_limit_events (ip_hash, submitted_at) VALUES ($1, $2)`,
		sub.IPHash, now); execErr != nil {
		err = contextutils.WrapError(execErr, "failed to record rate limit event")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapError(err, "failed to commit submission")
	}

	sub.Status = models.StatusNew
	sub.EnrichmentStatus = models.EnrichmentPending

	s.logger.Info(ctx, "Submission created", map[string]interface{}{
		"submission_id":  sub.ID,
		"reference_code": sub.ReferenceCode,
		"category":       sub.Category,
	})
	return sub, nil
}

func scanSubmission(row interface {
	Scan(dest ...interface{}) error
}) (*models.Submission, error) {
	var sub models.Submission
	err := row.Scan(&sub.ID, &sub.ReferenceCode, &sub.Category, &sub.Message, &sub.PhotoPath,
		&sub.IPHash, &sub.UserAgent, &sub.Status, &sub.EnrichmentStatus, &sub.DetectedLanguage,
		&sub.TranslationEN, &sub.TranslationRU, &sub.Summary, &sub.Tags, &sub.PrivateNote,
		&sub.IsDeleted, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubmissionByID fetches a single non-deleted submission.
func (s *SubmissionService) GetSubmissionByID(ctx context.Context, id int) (result0 *models.Submission, err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "get_submission_by_id",
		observability.AttributeSubmissionID(id),
	)
	defer observability.FinishSpan(span, &err)

	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id=$1 AND is_deleted=FALSE`, submissionSelectFields)
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, contextutils.ErrSubmissionNotFound
		}
		return nil, contextutils.WrapError(err, "failed to scan submission")
	}
	return sub, nil
}

// GetSubmissionForReview fetches a submission for the detail view and, when it
// is still in the new status, transitions it to read.
func (s *SubmissionService) GetSubmissionForReview(ctx context.Context, id int) (result0 *models.Submission, err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "get_submission_for_review",
		observability.AttributeSubmissionID(id),
	)
	defer observability.FinishSpan(span, &err)

	sub, err := s.GetSubmissionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.Status == models.StatusNew {
		if _, execErr := s.db.ExecContext(ctx,
			`UPDATE submissions SET status=$1, updated_at=$2 WHERE id=$3 AND status=$4`,
			models.StatusRead, time.Now(), id, models.StatusNew); execErr != nil {
			return nil, contextutils.WrapError(execErr, "failed to mark submission read")
		}
		sub.Status = models.StatusRead
	}
	return sub, nil
}

// GetSubmissionsPaginated returns submissions matching the filters, newest first.
func (s *SubmissionService) GetSubmissionsPaginated(ctx context.Context, page, pageSize int, filters SubmissionFilters) (result0 []models.Submission, result1 int, err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "get_submissions_paginated",
		observability.AttributePage(page),
		observability.AttributePageSize(pageSize),
		observability.AttributeStatusFilter(filters.Status),
	)
	defer observability.FinishSpan(span, &err)

	conditions := []string{"is_deleted=FALSE"}
	var args []interface{}
	idx := 1
	if filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status=$%d", idx))
		args = append(args, filters.Status)
		idx++
	}
	if filters.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category=$%d", idx))
		args = append(args, filters.Category)
		idx++
	}
	if filters.Tag != "" {
		// tags are stored comma-joined; match the tag anywhere in the list
		conditions = append(conditions, fmt.Sprintf("tags ILIKE $%d", idx))
		args = append(args, "%"+filters.Tag+"%")
		idx++
	}
	if filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(message ILIKE $%d OR reference_code ILIKE $%d OR summary ILIKE $%d OR translation_en ILIKE $%d OR translation_ru ILIKE $%d OR tags ILIKE $%d)",
			idx, idx, idx, idx, idx, idx))
		args = append(args, "%"+filters.Search+"%")
		idx++
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM submissions %s", where)
	var total int
	if err = s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, contextutils.WrapError(err, "failed to count submissions")
	}

	offset := (page - 1) * pageSize
	args = append(args, pageSize, offset)
	query := fmt.Sprintf("SELECT %s FROM submissions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		submissionSelectFields, where, idx, idx+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, contextutils.WrapError(err, "failed to query submissions")
	}
	defer func() {
		_ = rows.Close()
	}()

	list := []models.Submission{}
	for rows.Next() {
		sub, scanErr := scanSubmission(rows)
		if scanErr != nil {
			return nil, 0, contextutils.WrapError(scanErr, "scan submission list")
		}
		list = append(list, *sub)
	}
	return list, total, nil
}

// GetInboxStats returns the headline counters for the admin inbox.
func (s *SubmissionService) GetInboxStats(ctx context.Context) (result0 *models.InboxStats, err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "get_inbox_stats")
	defer observability.FinishSpan(span, &err)

	query := `SELECT
        COUNT(*),
        COUNT(*) FILTER (WHERE status='new'),
        COUNT(*) FILTER (WHERE status='read'),
        COUNT(*) FILTER (WHERE status='resolved')
        FROM submissions WHERE is_deleted=FALSE`

	var stats models.InboxStats
	if err = s.db.QueryRowContext(ctx, query).Scan(&stats.Total, &stats.New, &stats.Read, &stats.Resolved); err != nil {
		return nil, contextutils.WrapError(err, "failed to query inbox stats")
	}
	return &stats, nil
}

// UpdateStatus sets the workflow status of a single submission.
func (s *SubmissionService) UpdateStatus(ctx context.Context, id int, status string) (err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "update_status",
		observability.AttributeSubmissionID(id),
		attribute.String("submission.status", status),
	)
	defer observability.FinishSpan(span, &err)

	if !models.IsValidStatus(status) {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid status: %s", status)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status=$1, updated_at=$2 WHERE id=$3 AND is_deleted=FALSE`,
		status, time.Now(), id)
	if err != nil {
		return contextutils.WrapError(err, "failed to update status")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return contextutils.WrapErrorf(contextutils.ErrSubmissionNotFound, "submission %d not found", id)
	}
	return nil
}

// BulkUpdateStatus sets the workflow status for all given submissions at once.
// The batch is atomic: either every row is updated or none are.
func (s *SubmissionService) BulkUpdateStatus(ctx context.Context, ids []int, status string) (result0 int, err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "bulk_update_status",
		attribute.Int("submission.count", len(ids)),
		attribute.String("submission.status", status),
	)
	defer observability.FinishSpan(span, &err)

	if !models.IsValidStatus(status) {
		return 0, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid status: %s", status)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status=$1, updated_at=$2 WHERE id = ANY($3) AND is_deleted=FALSE`,
		status, time.Now(), pq.Array(ids))
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to bulk update status")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to get rows affected")
	}
	return int(rowsAffected), nil
}

// UpdateNote replaces the reviewer-only note on a submission.
func (s *SubmissionService) UpdateNote(ctx context.Context, id int, note string) (err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "update_note",
		observability.AttributeSubmissionID(id),
	)
	defer observability.FinishSpan(span, &err)

	result, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET private_note=$1, updated_at=$2 WHERE id=$3 AND is_deleted=FALSE`,
		note, time.Now(), id)
	if err != nil {
		return contextutils.WrapError(err, "failed to update note")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return contextutils.WrapErrorf(contextutils.ErrSubmissionNotFound, "submission %d not found", id)
	}
	return nil
}

// SoftDelete marks a submission deleted without removing the row.
func (s *SubmissionService) SoftDelete(ctx context.Context, id int) (err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "soft_delete",
		observability.AttributeSubmissionID(id),
	)
	defer observability.FinishSpan(span, &err)

	result, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET is_deleted=TRUE, updated_at=$1 WHERE id=$2 AND is_deleted=FALSE`,
		time.Now(), id)
	if err != nil {
		return contextutils.WrapError(err, "failed to soft delete submission")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return contextutils.WrapErrorf(contextutils.ErrSubmissionNotFound, "submission %d not found", id)
	}
	return nil
}

// GetAnalytics aggregates submission counts by category, status, tag and day.
// The daily series covers the last 30 days.
func (s *SubmissionService) GetAnalytics(ctx context.Context) (result0 *models.AnalyticsSummary, err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "get_analytics")
	defer observability.FinishSpan(span, &err)

	summary := &models.AnalyticsSummary{
		ByCategory: map[string]int{},
		ByStatus:   map[string]int{},
		ByTag:      map[string]int{},
		Daily:      []models.DailyCount{},
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM submissions WHERE is_deleted=FALSE GROUP BY category`)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query category counts")
	}
	if err = collectCounts(rows, summary.ByCategory); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM submissions WHERE is_deleted=FALSE GROUP BY status`)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query status counts")
	}
	if err = collectCounts(rows, summary.ByStatus); err != nil {
		return nil, err
	}

	// Tags are stored comma-joined, so frequency is computed here rather than in SQL.
	rows, err = s.db.QueryContext(ctx,
		`SELECT tags FROM submissions WHERE is_deleted=FALSE AND tags IS NOT NULL AND tags <> ''`)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query tags")
	}
	if err = collectTagCounts(rows, summary.ByTag); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT to_char(created_at::date, 'YYYY-MM-DD'), COUNT(*)
         FROM submissions
         WHERE is_deleted=FALSE AND created_at >= $1
         GROUP BY created_at::date
         ORDER BY created_at::date`,
		time.Now().AddDate(0, 0, -30))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query daily counts")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var dc models.DailyCount
		if scanErr := rows.Scan(&dc.Date, &dc.Count); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "scan daily count")
		}
		summary.Daily = append(summary.Daily, dc)
	}

	return summary, nil
}

func collectTagCounts(rows *sql.Rows, into map[string]int) error {
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var tags string
		if err := rows.Scan(&tags); err != nil {
			return contextutils.WrapError(err, "scan tags")
		}
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				into[tag]++
			}
		}
	}
	return nil
}

func collectCounts(rows *sql.Rows, into map[string]int) error {
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return contextutils.WrapError(err, "scan count row")
		}
		into[key] = count
	}
	return nil
}

// GetAllForExport returns every non-deleted submission, newest first.
func (s *SubmissionService) GetAllForExport(ctx context.Context) (result0 []models.Submission, err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "get_all_for_export")
	defer observability.FinishSpan(span, &err)

	query := fmt.Sprintf("SELECT %s FROM submissions WHERE is_deleted=FALSE ORDER BY created_at DESC", submissionSelectFields)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query submissions for export")
	}
	defer func() {
		_ = rows.Close()
	}()

	list := []models.Submission{}
	for rows.Next() {
		sub, scanErr := scanSubmission(rows)
		if scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "scan export row")
		}
		list = append(list, *sub)
	}
	return list, nil
}

// ClaimEnrichment transitions a submission from pending to processing. The
// guarded update makes the claim race-free: only one worker can win, and a
// resolved or failed record is never reprocessed.
func (s *SubmissionService) ClaimEnrichment(ctx context.Context, id int) (result0 bool, err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "claim_enrichment",
		observability.AttributeSubmissionID(id),
	)
	defer observability.FinishSpan(span, &err)

	result, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET enrichment_status=$1, updated_at=$2 WHERE id=$3 AND enrichment_status=$4`,
		models.EnrichmentProcessing, time.Now(), id, models.EnrichmentPending)
	if err != nil {
		return false, contextutils.WrapError(err, "failed to claim submission for enrichment")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, contextutils.WrapError(err, "failed to get rows affected")
	}
	return rowsAffected == 1, nil
}

// CompleteEnrichment stores the enrichment result and marks the record done.
func (s *SubmissionService) CompleteEnrichment(ctx context.Context, id int, res *models.EnrichmentResult) (err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "complete_enrichment",
		observability.AttributeSubmissionID(id),
		attribute.String("enrichment.language", res.DetectedLanguage),
	)
	defer observability.FinishSpan(span, &err)

	_, err = s.db.ExecContext(ctx,
		`UPDATE submissions SET enrichment_status=$1, detected_language=$2, translation_en=$3, translation_ru=$4, summary=$5, tags=$6, updated_at=$7 WHERE id=$8`,
		models.EnrichmentDone, res.DetectedLanguage, res.TranslationEN, res.TranslationRU,
		res.Summary, strings.Join(res.Tags, ","), time.Now(), id)
	if err != nil {
		return contextutils.WrapError(err, "failed to store enrichment result")
	}
	return nil
}

// FailEnrichment marks the record failed after both enrichment tiers gave up.
func (s *SubmissionService) FailEnrichment(ctx context.Context, id int) (err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "fail_enrichment",
		observability.AttributeSubmissionID(id),
	)
	defer observability.FinishSpan(span, &err)

	_, err = s.db.ExecContext(ctx,
		`UPDATE submissions SET enrichment_status=$1, updated_at=$2 WHERE id=$3`,
		models.EnrichmentFailed, time.Now(), id)
	if err != nil {
		return contextutils.WrapError(err, "failed to mark enrichment failed")
	}
	return nil
}

// PendingEnrichmentIDs returns submissions stuck in pending for at least minAge,
// oldest first. The janitor re-enqueues them.
func (s *SubmissionService) PendingEnrichmentIDs(ctx context.Context, minAge time.Duration, limit int) (result0 []int, err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "pending_enrichment_ids")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM submissions WHERE enrichment_status=$1 AND created_at <= $2 ORDER BY created_at LIMIT $3`,
		models.EnrichmentPending, time.Now().Add(-minAge), limit)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query pending submissions")
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []int
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "scan pending id")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
