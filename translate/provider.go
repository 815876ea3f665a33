package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/minios-linux/locasset/langmeta"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderGoogle       = "google"
	ProviderGroq         = "groq"
	ProviderOpenAI       = "openai"
	ProviderCustomOpenAI = "custom-openai"
	ProviderOllama       = "ollama"
)

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// Provider holds the configuration for an AI translation service.
type Provider struct {
	// ID is the provider identifier (google, groq, ollama, etc.).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL.
	BaseURL string
	// APIKey is the authentication key (empty for local services).
	APIKey string
	// Model is the model identifier.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the HTTP client timeout.
	Timeout time.Duration
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderGoogle: {
			ID:      ProviderGoogle,
			Name:    "Google AI (Gemini)",
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.0-flash",
			Timeout: 120 * time.Second,
		},
		ProviderGroq: {
			ID:      ProviderGroq,
			Name:    "Groq",
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
			Timeout: 60 * time.Second,
		},
		ProviderOpenAI: {
			ID:      ProviderOpenAI,
			Name:    "OpenAI",
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		ProviderCustomOpenAI: {
			ID:      ProviderCustomOpenAI,
			Name:    "Custom OpenAI",
			Timeout: 60 * time.Second,
		},
		ProviderOllama: {
			ID:      ProviderOllama,
			Name:    "Ollama",
			BaseURL: "http://localhost:11434/v1",
			Timeout: 120 * time.Second,
		},
	}
}

// NeedsAPIKey reports whether the provider requires a key.
func (p Provider) NeedsAPIKey() bool {
	return p.ID != ProviderOllama && p.ID != ProviderCustomOpenAI
}

// ---------------------------------------------------------------------------
// Rate limit state (global pause for parallel workers)
// ---------------------------------------------------------------------------

type rateLimitState struct {
	mu       sync.Mutex
	paused   int32 // atomic: 1 = paused
	pauseEnd time.Time
}

func (r *rateLimitState) isPaused() bool {
	return atomic.LoadInt32(&r.paused) == 1
}

func (r *rateLimitState) pause(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauseEnd = time.Now().Add(duration)
	atomic.StoreInt32(&r.paused, 1)
}

func (r *rateLimitState) unpause() {
	atomic.StoreInt32(&r.paused, 0)
}

// waitIfPaused blocks until the rate limit pause is over.
func (r *rateLimitState) waitIfPaused(ctx context.Context) error {
	for r.isPaused() {
		r.mu.Lock()
		remaining := time.Until(r.pauseEnd)
		r.mu.Unlock()
		if remaining <= 0 {
			r.unpause()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(remaining, 100*time.Millisecond)):
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// HTTP service
// ---------------------------------------------------------------------------

type apiFormat int

const (
	formatOpenAIChat   apiFormat = iota // OpenAI chat/completions
	formatGeminiNative                  // Google Gemini generateContent
)

// HTTPService translates through an HTTP AI provider. It is safe for
// concurrent use; a 429 from any request pauses all of them.
type HTTPService struct {
	prov       Provider
	format     apiFormat
	prompt     string
	maxRetries int
	client     *http.Client
	rl         *rateLimitState
	log        *zap.Logger
}

// ServiceOptions configure an HTTPService.
type ServiceOptions struct {
	// SystemPrompt overrides DefaultSystemPrompt.
	SystemPrompt string
	// MaxRetries on 429 and 5xx. Default: 3.
	MaxRetries int
	Logger     *zap.Logger
}

// NewHTTPService validates prov and returns a service for it.
func NewHTTPService(prov Provider, opts ServiceOptions) (*HTTPService, error) {
	if prov.BaseURL == "" {
		return nil, errors.Errorf("provider %s: base URL is not set", prov.ID)
	}
	if prov.Model == "" {
		return nil, errors.Errorf("provider %s: model is not set", prov.ID)
	}
	if prov.NeedsAPIKey() && prov.APIKey == "" {
		return nil, errors.Errorf("provider %s: API key is not set", prov.ID)
	}
	format := formatOpenAIChat
	if prov.ID == ProviderGoogle {
		format = formatGeminiNative
	}
	prompt := opts.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPService{
		prov:       prov,
		format:     format,
		prompt:     prompt,
		maxRetries: maxRetries,
		client:     makeHTTPClient(prov.Proxy, prov.Timeout),
		rl:         &rateLimitState{},
		log:        log,
	}, nil
}

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Translate sends one text to the provider.
func (s *HTTPService) Translate(ctx context.Context, req Request) (string, error) {
	system := resolvePrompt(s.prompt, req.SourceLang, req.TargetLang)
	endpoint, headers, body, err := s.buildHTTPRequest(system, req.Text)
	if err != nil {
		return "", errors.Wrap(err, "building request")
	}
	text, err := s.do(ctx, endpoint, headers, body)
	if err != nil {
		return "", err
	}
	return cleanResponse(text), nil
}

func (s *HTTPService) do(ctx context.Context, endpoint string, headers map[string]string, body []byte) (string, error) {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := s.rl.waitIfPaused(ctx); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", errors.Wrap(err, "creating request")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		s.log.Debug("provider request", zap.String("provider", s.prov.Name), zap.Int("attempt", attempt+1))

		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if attempt < s.maxRetries {
				if err := sleep(ctx, backoff(attempt)); err != nil {
					return "", err
				}
				continue
			}
			return "", errors.Wrap(err, "API request failed")
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			retryDelay := parseRetryDelay(respBody, resp.Header.Get("Retry-After"))
			s.log.Warn("rate limited", zap.Duration("wait", retryDelay), zap.Int("attempt", attempt+1))
			s.rl.pause(retryDelay)
			if attempt < s.maxRetries {
				if err := sleep(ctx, retryDelay); err != nil {
					return "", err
				}
				s.rl.unpause()
				continue
			}
			return "", errors.Errorf("rate limited after %d retries: %s", s.maxRetries, truncate(string(respBody), 500))
		}

		if resp.StatusCode != http.StatusOK {
			if attempt < s.maxRetries && resp.StatusCode >= 500 {
				if err := sleep(ctx, backoff(attempt)); err != nil {
					return "", err
				}
				continue
			}
			return "", errors.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
		}

		return extractResponseText(respBody)
	}

	return "", errors.Errorf("exhausted all %d retries", s.maxRetries)
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// buildHTTPRequest constructs the endpoint, headers, and body.
func (s *HTTPService) buildHTTPRequest(systemPrompt, userPrompt string) (string, map[string]string, []byte, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	base := strings.TrimRight(s.prov.BaseURL, "/")

	var endpoint string
	var body []byte
	var err error

	switch s.format {
	case formatGeminiNative:
		endpoint = fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, s.prov.Model)
		if s.prov.APIKey != "" {
			headers["x-goog-api-key"] = s.prov.APIKey
		}
		body, err = buildGeminiRequest(systemPrompt, userPrompt, 0.3)
	default:
		endpoint = base
		if !strings.HasSuffix(base, "/chat/completions") {
			endpoint = base + "/chat/completions"
		}
		if s.prov.APIKey != "" {
			headers["Authorization"] = "Bearer " + s.prov.APIKey
		}
		body, err = buildOpenAIChatRequest(s.prov.Model, systemPrompt, userPrompt, 0.3)
	}
	if err != nil {
		return "", nil, nil, err
	}
	return endpoint, headers, body, nil
}

func buildOpenAIChatRequest(model, systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
	}{
		Model: model,
		Messages: []msg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
	}
	return json.Marshal(req)
}

func buildGeminiRequest(systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	type genConfig struct {
		Temperature float64 `json:"temperature"`
	}
	req := struct {
		Contents          []content `json:"contents"`
		GenerationConfig  genConfig `json:"generationConfig"`
		SystemInstruction *content  `json:"systemInstruction,omitempty"`
	}{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: userPrompt}}},
		},
		GenerationConfig: genConfig{Temperature: temperature},
	}
	if systemPrompt != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}
	return json.Marshal(req)
}

// extractResponseText handles the OpenAI chat and Gemini response shapes.
func extractResponseText(body []byte) (string, error) {
	var raw struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", errors.Wrap(err, "invalid JSON response")
	}
	if raw.Error != nil {
		return "", errors.Errorf("API error: %s", raw.Error.Message)
	}
	if len(raw.Choices) > 0 {
		return raw.Choices[0].Message.Content, nil
	}
	if len(raw.Candidates) > 0 && len(raw.Candidates[0].Content.Parts) > 0 {
		return raw.Candidates[0].Content.Parts[0].Text, nil
	}
	return "", errors.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

// parseRetryDelay reads the retry delay from Google's RetryInfo detail
// or a Retry-After header, defaulting to 65s.
func parseRetryDelay(body []byte, retryAfter string) time.Duration {
	const defaultDelay = 65 * time.Second

	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}

	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return defaultDelay
	}
	for _, detail := range errResp.Error.Details {
		if strings.Contains(detail.Type, "RetryInfo") && detail.RetryDelay != "" {
			d := strings.TrimSuffix(detail.RetryDelay, "s")
			if secs, err := strconv.ParseFloat(d, 64); err == nil {
				return time.Duration(secs*1000)*time.Millisecond + 5*time.Second
			}
		}
	}
	return defaultDelay
}

var codeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// cleanResponse strips surrounding whitespace and a markdown code fence.
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// ---------------------------------------------------------------------------
// Prompt
// ---------------------------------------------------------------------------

// DefaultSystemPrompt is used when no prompt is configured.
// {{sourceLang}} and {{targetLang}} are replaced with language names.
const DefaultSystemPrompt = `You are a professional translator localizing content for a game or application.

Translate the user's message from {{sourceLang}} into {{targetLang}}.

RULES:
- Reply with the translation only: no quotes, no explanations, no notes
- Keep placeholders such as {0}, %s, %d, {name} and markup tags unchanged
- Keep line breaks where the source has them
- Translate for naturalness and fluency, not word for word
- Preserve the tone and length of the source as far as the language allows`

func resolvePrompt(prompt, sourceLang, targetLang string) string {
	return strings.NewReplacer(
		"{{sourceLang}}", langmeta.Resolve(sourceLang).English,
		"{{targetLang}}", langmeta.Resolve(targetLang).English,
	).Replace(prompt)
}
