package models

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

// Submission categories chosen by the submitter.
const (
	CategoryComplaint      = "complaint"
	CategoryIdea           = "idea"
	CategoryRecommendation = "recommendation"
	CategoryOther          = "other"
)

// ValidCategories lists the accepted submission categories.
var ValidCategories = []string{CategoryComplaint, CategoryIdea, CategoryRecommendation, CategoryOther}

// IsValidCategory reports whether category is a recognized submission category.
func IsValidCategory(category string) bool {
	for _, c := range ValidCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Workflow statuses set by reviewers. New submissions start in StatusNew and
// move to StatusRead automatically when first opened.
const (
	StatusNew        = "new"
	StatusRead       = "read"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusRejected   = "rejected"
)

// ValidStatuses lists the accepted workflow statuses.
var ValidStatuses = []string{StatusNew, StatusRead, StatusInProgress, StatusResolved, StatusRejected}

// IsValidStatus reports whether status is a recognized workflow status.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Enrichment statuses tracked independently of the workflow status.
const (
	EnrichmentPending    = "pending"
	EnrichmentProcessing = "processing"
	EnrichmentDone       = "done"
	EnrichmentFailed     = "failed"
)

// Tags form a closed vocabulary shared by the remote classifier and the
// heuristic fallback.
const (
	TagSalary        = "Salary"
	TagStore         = "Store"
	TagProduct       = "Product"
	TagConflict      = "Conflict"
	TagLegal         = "Legal"
	TagManagement    = "Management"
	TagSchedule      = "Schedule"
	TagSafety        = "Safety"
	TagTraining      = "Training"
	TagEquipment     = "Equipment"
	TagCustomer      = "Customer"
	TagPolicy        = "Policy"
	TagCommunication = "Communication"
	TagHygiene       = "Hygiene"
	TagOther         = "Other"
)

// AllowedTags is the closed vocabulary for submission tagging. Both the remote
// classifier output and the heuristic fallback are filtered against it.
var AllowedTags = []string{
	TagSalary, TagStore, TagProduct, TagConflict, TagLegal,
	TagManagement, TagSchedule, TagSafety, TagTraining, TagEquipment,
	TagCustomer, TagPolicy, TagCommunication, TagHygiene, TagOther,
}

// IsAllowedTag reports whether tag is in the closed tag vocabulary.
func IsAllowedTag(tag string) bool {
	for _, t := range AllowedTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Submission represents one anonymous feedback record.
type Submission struct {
	ID               int            `json:"id" db:"id"`
	ReferenceCode    string         `json:"reference_code" db:"reference_code"`
	Category         string         `json:"category" db:"category"`
	Message          string         `json:"message" db:"message"`
	PhotoPath        sql.NullString `json:"photo_path" db:"photo_path"`
	IPHash           string         `json:"-" db:"ip_hash"`
	UserAgent        sql.NullString `json:"user_agent" db:"user_agent"`
	Status           string         `json:"status" db:"status"`
	EnrichmentStatus string         `json:"enrichment_status" db:"enrichment_status"`
	DetectedLanguage sql.NullString `json:"detected_language" db:"detected_language"`
	TranslationEN    sql.NullString `json:"translation_en" db:"translation_en"`
	TranslationRU    sql.NullString `json:"translation_ru" db:"translation_ru"`
	Summary          sql.NullString `json:"summary" db:"summary"`
	Tags             sql.NullString `json:"tags" db:"tags"`
	PrivateNote      sql.NullString `json:"private_note" db:"private_note"`
	IsDeleted        bool           `json:"is_deleted" db:"is_deleted"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// EnrichmentResult is the outcome of enriching a submission, regardless of
// whether the remote classifier or the local fallback produced it.
type EnrichmentResult struct {
	DetectedLanguage string   `json:"detected_language"`
	TranslationEN    string   `json:"translation_en"`
	TranslationRU    string   `json:"translation_ru"`
	Summary          string   `json:"summary"`
	Tags             []string `json:"tags"`
}

// MarshalJSON customizes JSON marshaling for Submission to render sql.Null
// fields as plain values or null.
func (s Submission) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID               int       `json:"id"`
		ReferenceCode    string    `json:"reference_code"`
		Category         string    `json:"category"`
		Message          string    `json:"message"`
		PhotoPath        *string   `json:"photo_path"`
		UserAgent        *string   `json:"user_agent"`
		Status           string    `json:"status"`
		EnrichmentStatus string    `json:"enrichment_status"`
		DetectedLanguage *string   `json:"detected_language"`
		TranslationEN    *string   `json:"translation_en"`
		TranslationRU    *string   `json:"translation_ru"`
		Summary          *string   `json:"summary"`
		Tags             *string   `json:"tags"`
		PrivateNote      *string   `json:"private_note"`
		IsDeleted        bool      `json:"is_deleted"`
		CreatedAt        time.Time `json:"created_at"`
		UpdatedAt        time.Time `json:"updated_at"`
	}{
		ID:               s.ID,
		ReferenceCode:    s.ReferenceCode,
		Category:         s.Category,
		Message:          s.Message,
		PhotoPath:        nullStringToPointer(s.PhotoPath),
		UserAgent:        nullStringToPointer(s.UserAgent),
		Status:           s.Status,
		EnrichmentStatus: s.EnrichmentStatus,
		DetectedLanguage: nullStringToPointer(s.DetectedLanguage),
		TranslationEN:    nullStringToPointer(s.TranslationEN),
		TranslationRU:    nullStringToPointer(s.TranslationRU),
		Summary:          nullStringToPointer(s.Summary),
		Tags:             nullStringToPointer(s.Tags),
		PrivateNote:      nullStringToPointer(s.PrivateNote),
		IsDeleted:        s.IsDeleted,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	})
}

// TagList splits the stored comma-joined tags into a slice.
func (s Submission) TagList() []string {
	if !s.Tags.Valid || s.Tags.String == "" {
		return nil
	}
	var tags []string
	for _, part := range strings.Split(s.Tags.String, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
