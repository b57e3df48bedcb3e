package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/civicweave/civicweave-backend/internal/platform/envutil"
	"github.com/civicweave/civicweave-backend/internal/platform/logger"
)

// The investigation/synthesis service is an external collaborator: the engine
// only knows it as a budgeted, retryable call that either returns a
// structured result or fails.

type InvestigationRequest struct {
	ScopeID   uuid.UUID `json:"scope_id"`
	TensionID uuid.UUID `json:"tension_id"`
	SignalID  uuid.UUID `json:"signal_id"`
	Prompt    string    `json:"prompt"`
}

type DiscoveredRespondent struct {
	SignalID    uuid.UUID `json:"signal_id"`
	Strength    float64   `json:"strength"`
	Explanation string    `json:"explanation"`
}

type InvestigationResult struct {
	Respondents []DiscoveredRespondent `json:"respondents"`
	Cost        float64                `json:"cost"`
	Raw         string                 `json:"raw,omitempty"`
}

type SynthesisRequest struct {
	ScopeID  uuid.UUID `json:"scope_id"`
	StoryID  uuid.UUID `json:"story_id"`
	Headline string    `json:"headline"`
	Summary  string    `json:"summary"`
	Prompt   string    `json:"prompt"`
	// MultiPerspective instructs the service to surface disagreement between
	// mixed signal types as perspectives rather than resolving it.
	MultiPerspective bool `json:"multi_perspective"`
}

type SynthesisResult struct {
	Lede      string  `json:"lede"`
	Narrative string  `json:"narrative"`
	Cost      float64 `json:"cost"`
	Raw       string  `json:"raw,omitempty"`
}

type SynthesisClient interface {
	Investigate(ctx context.Context, req InvestigationRequest) (*InvestigationResult, error)
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
}

type synthesisClient struct {
	log     *logger.Logger
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewSynthesisClient(log *logger.Logger) (SynthesisClient, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := envutil.String("SYNTHESIS_BASE_URL", "")
	if baseURL == "" {
		return nil, fmt.Errorf("missing SYNTHESIS_BASE_URL")
	}
	timeout := time.Duration(envutil.Int("SYNTHESIS_TIMEOUT_SECONDS", 60)) * time.Second
	return &synthesisClient{
		log:     log.With("client", "SynthesisClient"),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  envutil.String("SYNTHESIS_API_KEY", ""),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *synthesisClient) Investigate(ctx context.Context, req InvestigationRequest) (*InvestigationResult, error) {
	return postJSON[InvestigationResult](c, ctx, "/v1/investigate", req)
}

func (c *synthesisClient) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	return postJSON[SynthesisResult](c, ctx, "/v1/synthesize", req)
}

func postJSON[T any](c *synthesisClient, ctx context.Context, path string, body any) (*T, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("synthesis service http %d: %s", resp.StatusCode, string(raw))
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("synthesis service decode: %w", err)
	}
	return &out, nil
}
