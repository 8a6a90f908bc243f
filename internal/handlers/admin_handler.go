package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"
	contextutils "feedbackapp/internal/utils"
)

// AdminHandler serves the triage inbox, analytics and export endpoints.
type AdminHandler struct {
	submissions services.SubmissionServiceInterface
	logger      *observability.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(submissions services.SubmissionServiceInterface, logger *observability.Logger) *AdminHandler {
	return &AdminHandler{
		submissions: submissions,
		logger:      logger,
	}
}

// ListSubmissions handles GET /v1/admin/submissions with optional status,
// category, tag and search filters.
func (h *AdminHandler) ListSubmissions(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_submissions")
	defer observability.FinishSpan(span, nil)

	page, pageSize := ParsePagination(c)

	filters := services.SubmissionFilters{
		Status:   strings.TrimSpace(c.Query("status")),
		Category: strings.TrimSpace(c.Query("category")),
		Tag:      strings.TrimSpace(c.Query("tag")),
		Search:   strings.TrimSpace(c.Query("search")),
	}
	if filters.Status != "" && !models.IsValidStatus(filters.Status) {
		HandleValidationError(c, "status", filters.Status, "unknown status")
		return
	}
	if filters.Category != "" && !models.IsValidCategory(filters.Category) {
		HandleValidationError(c, "category", filters.Category, "unknown category")
		return
	}

	list, total, err := h.submissions.GetSubmissionsPaginated(ctx, page, pageSize, filters)
	if err != nil {
		h.logger.Error(ctx, "list submissions failed", err, nil)
		HandleAppError(c, err)
		return
	}

	stats, err := h.submissions.GetInboxStats(ctx)
	if err != nil {
		h.logger.Error(ctx, "inbox stats failed", err, nil)
		HandleAppError(c, err)
		return
	}

	WritePaginated(c, "submissions", list, page, pageSize, total, gin.H{"stats": stats})
}

// GetSubmission handles GET /v1/admin/submissions/:id. Opening a submission
// that is still new marks it read.
func (h *AdminHandler) GetSubmission(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_submission")
	defer observability.FinishSpan(span, nil)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleAppError(c, contextutils.ErrInvalidFormat)
		return
	}

	sub, err := h.submissions.GetSubmissionForReview(ctx, id)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// StatusUpdateRequest is the POST body for single status changes.
type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus handles PUT /v1/admin/submissions/:id/status.
func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "update_status")
	defer observability.FinishSpan(span, nil)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleAppError(c, contextutils.ErrInvalidFormat)
		return
	}

	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "invalid request body"))
		return
	}
	if !models.IsValidStatus(req.Status) {
		HandleValidationError(c, "status", req.Status, "unknown status")
		return
	}

	if err := h.submissions.UpdateStatus(ctx, id, req.Status); err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

// BulkStatusRequest is the POST body for bulk status changes. IDs arrive as
// strings so malformed entries can be reported instead of silently dropped.
type BulkStatusRequest struct {
	IDs    []string `json:"ids" binding:"required"`
	Status string   `json:"status" binding:"required"`
}

// BulkUpdateStatus handles PUT /v1/admin/submissions/bulk-status. The whole
// batch is rejected when any ID fails to parse; partial updates never happen.
func (h *AdminHandler) BulkUpdateStatus(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "bulk_update_status")
	defer observability.FinishSpan(span, nil)

	var req BulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "invalid request body"))
		return
	}
	if !models.IsValidStatus(req.Status) {
		HandleValidationError(c, "status", req.Status, "unknown status")
		return
	}
	if len(req.IDs) == 0 {
		HandleValidationError(c, "ids", req.IDs, "at least one ID is required")
		return
	}

	ids := make([]int, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			HandleValidationError(c, "ids", raw, "IDs must be integers")
			return
		}
		ids = append(ids, id)
	}

	updated, err := h.submissions.BulkUpdateStatus(ctx, ids, req.Status)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated, "status": req.Status})
}

// NoteRequest is the POST body for private notes.
type NoteRequest struct {
	Note string `json:"note"`
}

// UpdateNote handles PUT /v1/admin/submissions/:id/note.
func (h *AdminHandler) UpdateNote(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "update_note")
	defer observability.FinishSpan(span, nil)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleAppError(c, contextutils.ErrInvalidFormat)
		return
	}

	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "invalid request body"))
		return
	}

	if err := h.submissions.UpdateNote(ctx, id, req.Note); err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// DeleteSubmission handles DELETE /v1/admin/submissions/:id. The route is
// restricted to the admin role; deletion is a soft delete.
func (h *AdminHandler) DeleteSubmission(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "delete_submission")
	defer observability.FinishSpan(span, nil)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleAppError(c, contextutils.ErrInvalidFormat)
		return
	}

	if err := h.submissions.SoftDelete(ctx, id); err != nil {
		HandleAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetAnalytics handles GET /v1/admin/analytics.
func (h *AdminHandler) GetAnalytics(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_analytics")
	defer observability.FinishSpan(span, nil)

	summary, err := h.submissions.GetAnalytics(ctx)
	if err != nil {
		h.logger.Error(ctx, "analytics failed", err, nil)
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// utf8BOM makes Excel detect the encoding of exported CSVs.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ExportCSV handles GET /v1/admin/export. The file carries a UTF-8 BOM and a
// timestamped filename.
func (h *AdminHandler) ExportCSV(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "export_csv")
	defer observability.FinishSpan(span, nil)

	list, err := h.submissions.GetAllForExport(ctx)
	if err != nil {
		h.logger.Error(ctx, "export failed", err, nil)
		HandleAppError(c, err)
		return
	}

	filename := fmt.Sprintf("feedback_export_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)

	if _, err := c.Writer.Write(utf8BOM); err != nil {
		h.logger.Error(ctx, "export write failed", err, nil)
		return
	}

	w := csv.NewWriter(c.Writer)
	header := []string{
		"id", "reference_code", "category", "status", "message",
		"detected_language", "translation_en", "summary", "tags",
		"private_note", "created_at", "updated_at",
	}
	if err := w.Write(header); err != nil {
		h.logger.Error(ctx, "export write failed", err, nil)
		return
	}

	for i := range list {
		sub := &list[i]
		record := []string{
			strconv.Itoa(sub.ID),
			sub.ReferenceCode,
			sub.Category,
			sub.Status,
			sub.Message,
			nullableString(sub.DetectedLanguage.Valid, sub.DetectedLanguage.String),
			nullableString(sub.TranslationEN.Valid, sub.TranslationEN.String),
			nullableString(sub.Summary.Valid, sub.Summary.String),
			strings.Join(sub.TagList(), ","),
			nullableString(sub.PrivateNote.Valid, sub.PrivateNote.String),
			sub.CreatedAt.Format(time.RFC3339),
			sub.UpdatedAt.Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			h.logger.Error(ctx, "export write failed", err, nil)
			return
		}
	}
	w.Flush()
}

func nullableString(valid bool, value string) string {
	if !valid {
		return ""
	}
	return value
}
