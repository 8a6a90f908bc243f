package handlers

import (
	"bytes"
	"database/sql"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"feedbackapp/internal/config"
	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"
	contextutils "feedbackapp/internal/utils"
)

// Enqueuer hands accepted submissions to the enrichment pipeline.
type Enqueuer interface {
	Enqueue(id int) bool
}

// Magic byte signatures for accepted photo formats.
var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
)

// SubmissionHandler serves the public intake endpoint.
type SubmissionHandler struct {
	submissions services.SubmissionServiceInterface
	rateLimits  services.RateLimitServiceInterface
	enqueuer    Enqueuer
	cfg         *config.Config
	logger      *observability.Logger
}

// NewSubmissionHandler creates a SubmissionHandler.
func NewSubmissionHandler(submissions services.SubmissionServiceInterface, rateLimits services.RateLimitServiceInterface, enqueuer Enqueuer, cfg *config.Config, logger *observability.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		rateLimits:  rateLimits,
		enqueuer:    enqueuer,
		cfg:         cfg,
		logger:      logger,
	}
}

// Submit handles POST /v1/submissions. The form is multipart so an optional
// photo can ride along with category, message and the consent flag.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "submit")
	defer observability.FinishSpan(span, nil)

	if !consentGiven(c.PostForm("consent")) {
		HandleValidationError(c, "consent", c.PostForm("consent"), "consent is required")
		return
	}

	category := strings.TrimSpace(c.PostForm("category"))
	if !models.IsValidCategory(category) {
		HandleValidationError(c, "category", category, "unknown category")
		return
	}

	message := strings.TrimSpace(c.PostForm("message"))
	if message == "" {
		HandleValidationError(c, "message", "", "message is required")
		return
	}
	if len([]rune(message)) > config.MaxMessageLength {
		HandleValidationError(c, "message", len([]rune(message)), "message is too long")
		return
	}

	ipHash := h.rateLimits.Fingerprint(c.ClientIP())
	allowed, err := h.rateLimits.IsAllowed(ctx, ipHash)
	if err != nil {
		h.logger.Error(ctx, "rate limit check failed", err, nil)
		HandleAppError(c, err)
		return
	}
	if !allowed {
		HandleAppError(c, contextutils.ErrRateLimit)
		return
	}

	var photoPath sql.NullString
	if file, fileErr := c.FormFile("photo"); fileErr == nil {
		storedPath, photoErr := h.savePhoto(file)
		if photoErr != nil {
			HandleAppError(c, photoErr)
			return
		}
		photoPath = sql.NullString{String: storedPath, Valid: true}
	}

	userAgent := c.Request.UserAgent()
	if len(userAgent) > config.MaxUserAgentLength {
		userAgent = userAgent[:config.MaxUserAgentLength]
	}
	var userAgentField sql.NullString
	if userAgent != "" {
		userAgentField = sql.NullString{String: userAgent, Valid: true}
	}

	sub := &models.Submission{
		Category:  category,
		Message:   html.EscapeString(message),
		PhotoPath: photoPath,
		IPHash:    ipHash,
		UserAgent: userAgentField,
	}

	created, err := h.submissions.CreateSubmission(ctx, sub)
	if err != nil {
		h.logger.Error(ctx, "create submission failed", err, nil)
		HandleAppError(c, err)
		return
	}

	if h.enqueuer != nil && !h.enqueuer.Enqueue(created.ID) {
		// Queue full; the janitor re-queues pending submissions.
		h.logger.Warn(ctx, "Enrichment queue full", map[string]interface{}{
			"submission_id": created.ID,
		})
	}

	c.JSON(http.StatusCreated, gin.H{"reference_code": created.ReferenceCode})
}

// consentGiven interprets the checkbox value sent by HTML forms.
func consentGiven(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}

// savePhoto validates the uploaded file and stores it under a random name.
// Validation covers the size limit, the extension allow-list and the magic
// bytes of the actual content.
func (h *SubmissionHandler) savePhoto(file *multipart.FileHeader) (string, error) {
	if file.Size > h.cfg.UploadMaxSize() {
		return "", contextutils.WrapErrorf(contextutils.ErrUploadInvalid, "file exceeds %d bytes", h.cfg.UploadMaxSize())
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Filename), "."))
	switch ext {
	case "jpg", "jpeg", "png":
	default:
		return "", contextutils.WrapErrorf(contextutils.ErrUploadInvalid, "unsupported file extension: %q", ext)
	}

	src, err := file.Open()
	if err != nil {
		return "", contextutils.WrapError(err, "failed to open uploaded file")
	}
	defer func() {
		_ = src.Close()
	}()

	header := make([]byte, len(pngMagic))
	n, err := io.ReadFull(src, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", contextutils.WrapError(err, "failed to read uploaded file")
	}
	header = header[:n]

	if !magicMatches(ext, header) {
		return "", contextutils.WrapError(contextutils.ErrUploadInvalid, "file content does not match extension")
	}

	if err := os.MkdirAll(h.cfg.UploadDir(), 0o755); err != nil {
		return "", contextutils.WrapError(err, "failed to create upload directory")
	}

	name := uuid.New().String() + "." + ext
	destPath := filepath.Join(h.cfg.UploadDir(), name)
	dest, err := os.Create(destPath)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to create upload file")
	}
	defer func() {
		_ = dest.Close()
	}()

	if _, err := dest.Write(header); err != nil {
		return "", contextutils.WrapError(err, "failed to write upload file")
	}
	if _, err := io.Copy(dest, src); err != nil {
		return "", contextutils.WrapError(err, "failed to write upload file")
	}

	return name, nil
}

// magicMatches checks the file header against the signature for the claimed
// extension.
func magicMatches(ext string, header []byte) bool {
	switch ext {
	case "jpg", "jpeg":
		return len(header) >= len(jpegMagic) && bytes.Equal(header[:len(jpegMagic)], jpegMagic)
	case "png":
		return len(header) >= len(pngMagic) && bytes.Equal(header[:len(pngMagic)], pngMagic)
	}
	return false
}
