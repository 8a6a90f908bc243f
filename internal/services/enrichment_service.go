package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"feedbackapp/internal/config"
	"feedbackapp/internal/models"
	"feedbackapp/internal/observability"
	contextutils "feedbackapp/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EnrichmentResultSchema validates the JSON object the classifier must return.
const EnrichmentResultSchema = `{
	"type": "object",
	"properties": {
		"detected_language": {"type": "string"},
		"translation_en": {"type": "string"},
		"translation_ru": {"type": "string"},
		"summary": {"type": "string"},
		"tags": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["detected_language", "translation_en", "translation_ru", "summary", "tags"]
}`

const classifierSystemPrompt = `You analyze anonymous employee feedback. Respond with a JSON object containing:
"detected_language" (ISO 639-1 code of the message language),
"translation_en" (English translation of the message),
"translation_ru" (Russian translation of the message),
"summary" (one-sentence English summary, at most 150 characters),
"tags" (1 to 3 values from: %s).
Respond with the JSON object only.`

// EnrichmentServiceInterface classifies submission messages.
type EnrichmentServiceInterface interface {
	Enrich(ctx context.Context, message string) (*models.EnrichmentResult, error)
	RemoteEnabled() bool
	Shutdown(ctx context.Context) error
}

// EnrichmentService calls an OpenAI-compatible chat completions endpoint to
// detect language, translate, summarize, and tag a submission message.
type EnrichmentService struct {
	httpClient *http.Client
	cfg        *config.Config
	logger     *observability.Logger

	// Concurrency control
	semaphore chan struct{}

	// Metrics
	activeRequests int
	totalRequests  int64
	statsMu        sync.RWMutex

	shutdownCtx context.Context
	shutdownMu  sync.RWMutex
}

// chatRequest is the request body for the chat completions endpoint.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the response body from the chat completions endpoint.
type chatResponse struct {
	Choices []chatChoice  `json:"choices"`
	Error   *chatAPIError `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatAPIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewEnrichmentService creates a new EnrichmentService instance.
func NewEnrichmentService(cfg *config.Config, logger *observability.Logger) *EnrichmentService {
	if cfg == nil {
		panic("NewEnrichmentService: cfg is nil")
	}
	if logger == nil {
		panic("NewEnrichmentService: logger is nil")
	}

	httpClient := &http.Client{
		Timeout: cfg.EnrichmentTimeout(),
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
		),
	}

	return &EnrichmentService{
		httpClient:  httpClient,
		cfg:         cfg,
		logger:      logger,
		semaphore:   make(chan struct{}, cfg.EnrichmentWorkers()),
		shutdownCtx: context.Background(),
	}
}

// RemoteEnabled reports whether a classifier API key is configured.
func (s *EnrichmentService) RemoteEnabled() bool {
	return s.cfg.RemoteEnrichmentEnabled()
}

// Enrich classifies a message via the remote endpoint and sanitizes the
// result. Callers are expected to fall back to FallbackEnrich on error.
func (s *EnrichmentService) Enrich(ctx context.Context, message string) (result0 *models.EnrichmentResult, err error) {
	ctx, span := observability.TraceEnrichmentFunction(ctx, "enrich",
		attribute.Int("message.length", len(message)),
	)
	defer observability.FinishSpan(span, &err)

	if !s.RemoteEnabled() {
		return nil, contextutils.WrapError(contextutils.ErrEnrichmentUnavailable, "no classifier API key configured")
	}
	if s.isShutdown() {
		return nil, contextutils.WrapError(contextutils.ErrServiceUnavailable, "enrichment service is shutting down")
	}

	select {
	case s.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.semaphore }()

	s.statsMu.Lock()
	s.activeRequests++
	s.totalRequests++
	s.statsMu.Unlock()
	defer func() {
		s.statsMu.Lock()
		s.activeRequests--
		s.statsMu.Unlock()
	}()

	content, err := s.callClassifier(ctx, message)
	if err != nil {
		return nil, err
	}

	result, err := s.parseResult(ctx, content)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// callClassifier posts the message to the chat completions endpoint, retrying
// transient failures (transport errors, 5xx, 429).
func (s *EnrichmentService) callClassifier(ctx context.Context, message string) (result0 string, err error) {
	ctx, span := observability.TraceEnrichmentFunction(ctx, "call_classifier",
		attribute.String("enrichment.model", s.cfg.EnrichmentModel()),
	)
	defer observability.FinishSpan(span, &err)

	apiURL := strings.TrimRight(s.cfg.EnrichmentAPIURL(), "/")
	endpoint := apiURL + "/chat/completions"

	reqBody := chatRequest{
		Model: s.cfg.EnrichmentModel(),
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(classifierSystemPrompt, strings.Join(models.AllowedTags, ", "))},
			{Role: "user", Content: message},
		},
		Temperature:    0.1,
		MaxTokens:      1000,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to marshal classifier request")
	}

	maxAttempts := s.cfg.EnrichmentMaxRetries() + 1
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(config.EnrichmentRetryBackoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		var content string
		var retryable bool
		content, retryable, lastErr = s.doRequest(ctx, endpoint, jsonData)
		if lastErr == nil {
			span.SetAttributes(attribute.Int("enrichment.attempts", attempt+1))
			return content, nil
		}
		if !retryable {
			break
		}
		s.logger.Warn(ctx, "Classifier request failed, retrying", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   lastErr.Error(),
		})
	}

	return "", contextutils.WrapErrorf(lastErr, "classifier request failed after %d attempts", maxAttempts)
}

// doRequest performs a single HTTP round trip. The second return value reports
// whether the failure is worth retrying.
func (s *EnrichmentService) doRequest(ctx context.Context, endpoint string, jsonData []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", false, contextutils.WrapError(err, "failed to create classifier request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "feedbackapp/1.0")
	req.Header.Set("Authorization", "Bearer "+s.cfg.Enrichment.APIKey)

	startTime := time.Now()
	resp, err := s.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		return "", true, contextutils.WrapErrorf(contextutils.ErrEnrichmentUnavailable, "classifier transport error after %v: %v", duration, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close classifier response body", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, contextutils.WrapError(err, "failed to read classifier response body")
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return "", retryable, contextutils.WrapErrorf(contextutils.ErrEnrichmentFailed,
			"classifier returned status %d: %s", resp.StatusCode, string(body))
	}

	s.logger.Debug(ctx, "Classifier request completed", map[string]interface{}{
		"duration":    duration.String(),
		"status_code": resp.StatusCode,
		"api_key":     contextutils.MaskAPIKey(s.cfg.Enrichment.APIKey),
	})

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, contextutils.WrapErrorf(contextutils.ErrEnrichmentInvalid, "failed to parse classifier response: %v", err)
	}
	if parsed.Error != nil {
		return "", false, contextutils.WrapErrorf(contextutils.ErrEnrichmentFailed, "classifier API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", false, contextutils.WrapError(contextutils.ErrEnrichmentInvalid, "classifier returned no content")
	}
	return parsed.Choices[0].Message.Content, false, nil
}

// parseResult validates the classifier output against EnrichmentResultSchema
// and clamps it to the tag vocabulary and summary length limit.
func (s *EnrichmentService) parseResult(ctx context.Context, content string) (result0 *models.EnrichmentResult, err error) {
	_, span := observability.TraceEnrichmentFunction(ctx, "parse_result")
	defer observability.FinishSpan(span, &err)

	// Models sometimes wrap JSON in markdown fences despite json_object mode.
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	validation, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(EnrichmentResultSchema),
		gojsonschema.NewStringLoader(content),
	)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrEnrichmentInvalid, "schema validation error: %v", err)
	}
	if !validation.Valid() {
		var msgs []string
		for _, e := range validation.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrEnrichmentInvalid, "classifier output failed validation: %s", strings.Join(msgs, "; "))
	}

	var result models.EnrichmentResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrEnrichmentInvalid, "failed to unmarshal classifier output: %v", err)
	}

	var tags []string
	for _, tag := range result.Tags {
		tag = strings.TrimSpace(tag)
		if models.IsAllowedTag(tag) {
			tags = append(tags, tag)
		}
		if len(tags) >= config.MaxTagsPerRecord {
			break
		}
	}
	if len(tags) == 0 {
		tags = []string{models.TagOther}
	}
	result.Tags = tags

	if runes := []rune(result.Summary); len(runes) > config.MaxSummaryLength {
		result.Summary = string(runes[:config.MaxSummaryLength-3]) + "..."
	}

	return &result, nil
}

// Shutdown waits for in-flight classifier requests to finish.
func (s *EnrichmentService) Shutdown(ctx context.Context) error {
	s.shutdownMu.Lock()
	shutdownCtx, cancel := context.WithCancel(ctx)
	s.shutdownCtx = shutdownCtx
	s.shutdownMu.Unlock()
	defer cancel()

	ticker := time.NewTicker(config.WorkerDrainPollInterval)
	defer ticker.Stop()

	for {
		s.statsMu.RLock()
		active := s.activeRequests
		s.statsMu.RUnlock()
		if active == 0 {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.httpClient.CloseIdleConnections()
	s.logger.Info(ctx, "Enrichment service shutdown completed")
	return nil
}

func (s *EnrichmentService) isShutdown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	select {
	case <-s.shutdownCtx.Done():
		return true
	default:
		return false
	}
}
