package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedbackapp/internal/models"
	"feedbackapp/internal/services"
)

func newAdminRouter(t *testing.T, subs *fakeSubmissionService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := NewAdminHandler(subs, newTestLogger())
	router := gin.New()
	router.GET("/v1/admin/submissions", handler.ListSubmissions)
	router.GET("/v1/admin/submissions/:id", handler.GetSubmission)
	router.PUT("/v1/admin/submissions/:id/status", handler.UpdateStatus)
	router.PUT("/v1/admin/submissions/bulk-status", handler.BulkUpdateStatus)
	router.PUT("/v1/admin/submissions/:id/note", handler.UpdateNote)
	router.DELETE("/v1/admin/submissions/:id", handler.DeleteSubmission)
	router.GET("/v1/admin/analytics", handler.GetAnalytics)
	router.GET("/v1/admin/export", handler.ExportCSV)
	return router
}

func jsonRequest(t *testing.T, method, path string, payload interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func sampleSubmission(id int) models.Submission {
	return models.Submission{
		ID:               id,
		ReferenceCode:    "FBK-001-01",
		Category:         models.CategoryComplaint,
		Message:          "broken freezer",
		Status:           models.StatusNew,
		EnrichmentStatus: models.EnrichmentDone,
		DetectedLanguage: sql.NullString{String: "en", Valid: true},
		TranslationEN:    sql.NullString{String: "broken freezer", Valid: true},
		Summary:          sql.NullString{String: "Freezer is broken", Valid: true},
		Tags:             sql.NullString{String: "Equipment,Store", Valid: true},
		CreatedAt:        time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:        time.Date(2026, 8, 1, 10, 5, 0, 0, time.UTC),
	}
}

func TestListSubmissions_PassesFilters(t *testing.T) {
	var gotFilters services.SubmissionFilters
	var gotPage, gotSize int
	subs := &fakeSubmissionService{}
	subs.listFn = func(_ context.Context, page, pageSize int, filters services.SubmissionFilters) ([]models.Submission, int, error) {
		gotPage, gotSize, gotFilters = page, pageSize, filters
		return []models.Submission{sampleSubmission(1)}, 1, nil
	}
	router := newAdminRouter(t, subs)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/submissions?status=new&category=complaint&tag=Equipment&search=freezer&page=2&page_size=10", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, gotPage)
	assert.Equal(t, 10, gotSize)
	assert.Equal(t, services.SubmissionFilters{
		Status:   models.StatusNew,
		Category: models.CategoryComplaint,
		Tag:      "Equipment",
		Search:   "freezer",
	}, gotFilters)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "submissions")
	assert.Contains(t, resp, "pagination")
	assert.Contains(t, resp, "stats")
}

func TestListSubmissions_InvalidStatusFilter(t *testing.T) {
	subs := &fakeSubmissionService{}
	router := newAdminRouter(t, subs)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/submissions?status=bogus", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSubmissions_PageSizeCapped(t *testing.T) {
	var gotSize int
	subs := &fakeSubmissionService{}
	subs.listFn = func(_ context.Context, page, pageSize int, filters services.SubmissionFilters) ([]models.Submission, int, error) {
		gotSize = pageSize
		return nil, 0, nil
	}
	router := newAdminRouter(t, subs)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/submissions?page_size=5000", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, MaxPageSize, gotSize)
}

func TestGetSubmission_InvalidID(t *testing.T) {
	router := newAdminRouter(t, &fakeSubmissionService{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/submissions/abc", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSubmission_NotFound(t *testing.T) {
	router := newAdminRouter(t, &fakeSubmissionService{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/submissions/99", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateStatus_Success(t *testing.T) {
	var gotID int
	var gotStatus string
	subs := &fakeSubmissionService{}
	subs.updateFn = func(_ context.Context, id int, status string) error {
		gotID, gotStatus = id, status
		return nil
	}
	router := newAdminRouter(t, subs)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, http.MethodPut, "/v1/admin/submissions/4/status", gin.H{"status": models.StatusResolved}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, gotID)
	assert.Equal(t, models.StatusResolved, gotStatus)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	router := newAdminRouter(t, &fakeSubmissionService{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, http.MethodPut, "/v1/admin/submissions/4/status", gin.H{"status": "archived"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkUpdateStatus_Success(t *testing.T) {
	var gotIDs []int
	subs := &fakeSubmissionService{}
	subs.bulkFn = func(_ context.Context, ids []int, status string) (int, error) {
		gotIDs = ids
		return len(ids), nil
	}
	router := newAdminRouter(t, subs)

	payload := gin.H{"ids": []string{"1", "2", "3"}, "status": models.StatusRead}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, http.MethodPut, "/v1/admin/submissions/bulk-status", payload))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{1, 2, 3}, gotIDs)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(3), resp["updated"])
}

func TestBulkUpdateStatus_MalformedIDRejectsWholeBatch(t *testing.T) {
	subs := &fakeSubmissionService{}
	router := newAdminRouter(t, subs)

	payload := gin.H{"ids": []string{"1", "two", "3"}, "status": models.StatusRead}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, http.MethodPut, "/v1/admin/submissions/bulk-status", payload))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, subs.bulkCalls)
}

func TestBulkUpdateStatus_EmptyIDs(t *testing.T) {
	router := newAdminRouter(t, &fakeSubmissionService{})

	payload := gin.H{"ids": []string{}, "status": models.StatusRead}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, http.MethodPut, "/v1/admin/submissions/bulk-status", payload))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateNote_Success(t *testing.T) {
	var gotNote string
	subs := &fakeSubmissionService{}
	subs.noteFn = func(_ context.Context, id int, note string) error {
		gotNote = note
		return nil
	}
	router := newAdminRouter(t, subs)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(t, http.MethodPut, "/v1/admin/submissions/4/note", gin.H{"note": "called the store manager"}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "called the store manager", gotNote)
}

func TestDeleteSubmission_Success(t *testing.T) {
	var gotID int
	subs := &fakeSubmissionService{}
	subs.deleteFn = func(_ context.Context, id int) error {
		gotID = id
		return nil
	}
	router := newAdminRouter(t, subs)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/admin/submissions/8", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 8, gotID)
}

func TestGetAnalytics_Success(t *testing.T) {
	subs := &fakeSubmissionService{}
	subs.analyticsFn = func(_ context.Context) (*models.AnalyticsSummary, error) {
		return &models.AnalyticsSummary{
			ByCategory: map[string]int{models.CategoryComplaint: 3},
			ByStatus:   map[string]int{models.StatusNew: 2},
			ByTag:      map[string]int{models.TagEquipment: 1},
			Daily:      []models.DailyCount{{Date: "2026-08-01", Count: 3}},
		}, nil
	}
	router := newAdminRouter(t, subs)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/analytics", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.AnalyticsSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.ByCategory[models.CategoryComplaint])
	require.Len(t, resp.Daily, 1)
	assert.Equal(t, "2026-08-01", resp.Daily[0].Date)
}

func TestExportCSV(t *testing.T) {
	subs := &fakeSubmissionService{}
	subs.exportFn = func(_ context.Context) ([]models.Submission, error) {
		return []models.Submission{sampleSubmission(1)}, nil
	}
	router := newAdminRouter(t, subs)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/export", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "feedback_export_")

	body := w.Body.Bytes()
	require.True(t, bytes.HasPrefix(body, utf8BOM), "export must start with a UTF-8 BOM")

	records, err := csv.NewReader(bytes.NewReader(body[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "id", records[0][0])
	assert.Equal(t, "reference_code", records[0][1])

	row := records[1]
	assert.Equal(t, "1", row[0])
	assert.Equal(t, "FBK-001-01", row[1])
	assert.Equal(t, models.CategoryComplaint, row[2])
	assert.Equal(t, "Equipment,Store", row[8])
}

func TestExportCSV_Empty(t *testing.T) {
	router := newAdminRouter(t, &fakeSubmissionService{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/export", nil))

	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.Bytes()
	require.True(t, bytes.HasPrefix(body, utf8BOM))

	records, err := csv.NewReader(bytes.NewReader(body[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}
