// Package gemini calls the Generative Language generateContent endpoint.
package gemini

import (
	"context"
	"cuecard/app/config"
	"cuecard/app/service/prompt"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const (
	Model = "gemini-1.5-flash-latest"

	requestTimeout  = 30 * time.Second
	resourceTimeout = 60 * time.Second

	temperature     = 0.7
	topK            = 40
	topP            = 0.95
	maxOutputTokens = 1024

	maxErrorBody = 512
)

type profile struct {
	apiKey       string
	persona      prompt.Persona
	customPrompt string
}

type Client struct {
	http *resty.Client

	mu      sync.RWMutex
	profile profile
}

func New(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewClient(cfg.Gemini.BaseURL), nil
}

func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetHeader("Content-Type", "application/json").
			SetTimeout(resourceTimeout),
	}
}

// Configure sets the credential and persona used by subsequent calls.
func (c *Client) Configure(apiKey string, persona prompt.Persona, customPrompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.profile = profile{
		apiKey:       strings.TrimSpace(apiKey),
		persona:      persona,
		customPrompt: customPrompt,
	}
}

func (c *Client) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.profile.apiKey != ""
}

// Generate performs exactly one generateContent call and returns the first
// candidate's first text part.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.mu.RLock()
	p := c.profile
	c.mu.RUnlock()

	if p.apiKey == "" {
		return "", &Error{Kind: KindMissingCredential}
	}

	errb := oops.In("gemini").With("persona", p.persona.ID, "model", Model)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	body := generateRequest{
		Contents: []content{
			{
				Parts: []part{
					{Text: systemPrompt},
					{Text: userPrompt},
				},
			},
		},
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			TopK:            topK,
			TopP:            topP,
			MaxOutputTokens: maxOutputTokens,
		},
	}

	start := time.Now()

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("model", Model).
		SetQueryParam("key", p.apiKey).
		SetBody(body).
		Post("/models/{model}:generateContent")
	if err != nil {
		redactURL(err)

		if errors.Is(err, context.Canceled) {
			return "", &Error{Kind: KindCancelled, Err: errb.Wrapf(err, "generateContent")}
		}

		return "", &Error{Kind: KindRequestFailed, Err: errb.Wrapf(err, "generateContent")}
	}

	slog.Debug("Gemini response",
		"status", resp.StatusCode(),
		"duration", time.Since(start),
		"persona", p.persona.ID,
	)

	if !resp.IsSuccess() {
		return "", &Error{
			Kind:   KindRequestFailed,
			Status: resp.StatusCode(),
			Err:    errb.With("status", resp.StatusCode()).Errorf("unexpected status %d: %s", resp.StatusCode(), excerpt(resp.String())),
		}
	}

	var parsed generateResponse
	if err = json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", &Error{
			Kind:   KindEmptyResponse,
			Status: resp.StatusCode(),
			Err:    errb.Wrapf(err, "failed to parse response"),
		}
	}

	text, ok := parsed.firstText()
	if !ok {
		return "", &Error{
			Kind:   KindEmptyResponse,
			Status: resp.StatusCode(),
			Err:    errb.Errorf("no candidate text in response"),
		}
	}

	return text, nil
}

func (r *generateResponse) firstText() (string, bool) {
	if len(r.Candidates) == 0 {
		return "", false
	}

	parts := r.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == "" {
		return "", false
	}

	return parts[0].Text, true
}

// redactURL hides the api key carried in the query of transport errors.
func redactURL(err error) {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return
	}

	u, parseErr := url.Parse(urlErr.URL)
	if parseErr != nil {
		return
	}

	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
		urlErr.URL = u.String()
	}
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}

	return s
}
