package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRESTBaseURL    = "https://generativelanguage.googleapis.com"
	defaultHTTPTimeout    = 40 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 4 * time.Second
)

// RESTProvider calls the Gemini generateContent REST endpoint.
type RESTProvider struct {
	baseURL    string
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// RESTOption customizes the REST provider.
type RESTOption func(*RESTProvider)

// WithBaseURL overrides the API host.
func WithBaseURL(base string) RESTOption {
	return func(p *RESTProvider) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			p.baseURL = base
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) RESTOption {
	return func(p *RESTProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the total attempt count (defaults to 3).
func WithRetryMaxAttempts(attempts int) RESTOption {
	return func(p *RESTProvider) {
		p.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) RESTOption {
	return func(p *RESTProvider) {
		p.retryBaseDelay = baseDelay
		p.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) RESTOption {
	return func(p *RESTProvider) {
		p.sleeper = sleeper
	}
}

// NewRESTProvider constructs the REST provider.
func NewRESTProvider(opts ...RESTOption) *RESTProvider {
	p := &RESTProvider{
		baseURL:          defaultRESTBaseURL,
		httpClient:       &http.Client{Timeout: defaultHTTPTimeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *RESTProvider) Name() string { return ProviderGemini }

type generateContentRequest struct {
	Contents         []restContent     `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type restContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []restPart `json:"parts"`
}

type restPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type emptyContentError struct {
	FinishReason string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("response has no text (finish_reason=%q, payload snippet: %s)", e.FinishReason, e.Snippet)
}

// Generate implements Provider.
func (p *RESTProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := ValidateAPIKey(req.APIKey); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Model) == "" {
		return "", providerError(p.Name(), "model not configured", nil)
	}
	payload := generateContentRequest{
		Contents: []restContent{{Role: "user", Parts: buildRESTParts(req)}},
	}
	if req.JSON {
		payload.GenerationConfig = &generationConfig{ResponseMIMEType: "application/json"}
	}

	attempts := p.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := p.sendOnce(ctx, req, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		delay, retry := p.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		if err := p.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	var statusErr *httpStatusError
	if errors.As(lastErr, &statusErr) {
		return "", providerError(p.Name(), fmt.Sprintf("request failed with status %d: %s", statusErr.StatusCode, statusErr.Body), nil)
	}
	var emptyErr *emptyContentError
	if errors.As(lastErr, &emptyErr) {
		return "", providerError(p.Name(), emptyErr.Error(), nil)
	}
	return "", providerError(p.Name(), "request failed", lastErr)
}

func buildRESTParts(req GenerateRequest) []restPart {
	parts := []restPart{{Text: req.Prompt}}
	if req.Image != nil && len(req.Image.Data) > 0 {
		parts = append(parts, restPart{InlineData: &inlineData{
			MIMEType: req.Image.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(req.Image.Data),
		}})
	}
	return parts
}

func (p *RESTProvider) sendOnce(ctx context.Context, req GenerateRequest, payload generateContentRequest) (string, error) {
	endpoint, err := url.JoinPath(p.baseURL, "v1beta", "models", req.Model+":generateContent")
	if err != nil {
		return "", fmt.Errorf("build url: %w", err)
	}
	endpoint += "?key=" + url.QueryEscape(strings.TrimSpace(req.APIKey))

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http error (timeout=%s): %w", p.httpClient.Timeout, redactKey(err))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body)), RetryAfter: retryAfter}
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", &emptyContentError{Snippet: summarizePayloadSnippet(string(body))}
	}
	var finish string
	if len(decoded.Candidates) > 0 {
		finish = decoded.Candidates[0].FinishReason
		var sb strings.Builder
		for _, part := range decoded.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			return text, nil
		}
	}
	if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
		finish = decoded.PromptFeedback.BlockReason
	}
	return "", &emptyContentError{FinishReason: finish, Snippet: summarizePayloadSnippet(string(body))}
}

// redactKey strips the query string from url errors so the API key never
// reaches logs or responses.
func redactKey(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if parsed, perr := url.Parse(urlErr.URL); perr == nil {
			parsed.RawQuery = ""
			urlErr.URL = parsed.String()
		}
	}
	return err
}

func (p *RESTProvider) retryAttempts() int {
	if p.retryMaxAttempts <= 0 {
		return 1
	}
	return p.retryMaxAttempts
}

func (p *RESTProvider) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return p.capDelay(statusErr.RetryAfter), true
			}
			return p.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return p.backoffDelay(attempt), true
	}
	return 0, false
}

func (p *RESTProvider) backoffDelay(attempt int) time.Duration {
	base := p.retryBaseDelay
	if base <= 0 {
		return 0
	}
	if attempt <= 0 {
		attempt = 1
	}
	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return p.capDelay(delay)
}

func (p *RESTProvider) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if p.retryMaxDelay > 0 && delay > p.retryMaxDelay {
		return p.retryMaxDelay
	}
	return delay
}

func (p *RESTProvider) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if p.sleeper != nil {
		p.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
