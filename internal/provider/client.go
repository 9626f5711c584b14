package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/orialabs/voicedeck/internal/config"
	"github.com/orialabs/voicedeck/internal/monitoring"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// RequestError is raised on a failed provider API call. It carries enough
// context for the queue processor to aggregate and log per-assistant
// failures.
type RequestError struct {
	AssistantID        string
	TargetDurationSecs int
	StatusCode         int
	Err                error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider update for assistant %s (target %ds) failed with status %d",
			e.AssistantID, e.TargetDurationSecs, e.StatusCode)
	}
	return fmt.Sprintf("provider update for assistant %s (target %ds) failed: %v",
		e.AssistantID, e.TargetDurationSecs, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// AssistantConfigUpdate is the subset of assistant configuration the
// enforcement pipeline mutates.
type AssistantConfigUpdate struct {
	MaxDurationSeconds int     `json:"maxDurationSeconds"`
	FirstMessage       *string `json:"firstMessage,omitempty"`
	SystemPrompt       *string `json:"systemPrompt,omitempty"`
}

// Client is a thin adapter over the voice-call provider's assistant-update
// API. It never retries; retry policy belongs to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a provider API client
func NewClient(cfg *config.ProviderConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "voice-provider",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info().
				Str("circuit_breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			monitoring.SetCircuitBreakerState(breakerStateGauge(to))
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		breaker:    breaker,
	}
}

func breakerStateGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 0.5
	default:
		return 0
	}
}

// UpdateAssistantConfig issues a PATCH for one assistant's configuration.
// Any non-2xx response or transport failure returns a *RequestError.
func (c *Client) UpdateAssistantConfig(ctx context.Context, externalAssistantID string, update AssistantConfigUpdate) error {
	start := time.Now()
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.doUpdate(ctx, externalAssistantID, update)
	})
	monitoring.RecordProviderRequest("update_assistant", time.Since(start))
	if err != nil {
		monitoring.RecordProviderError("update_assistant")
		if _, ok := err.(*RequestError); ok {
			return err
		}
		// Breaker-open and similar wrapper errors still need call context.
		return &RequestError{
			AssistantID:        externalAssistantID,
			TargetDurationSecs: update.MaxDurationSeconds,
			Err:                err,
		}
	}
	return nil
}

func (c *Client) doUpdate(ctx context.Context, externalAssistantID string, update AssistantConfigUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return &RequestError{
			AssistantID:        externalAssistantID,
			TargetDurationSecs: update.MaxDurationSeconds,
			Err:                fmt.Errorf("failed to encode update: %w", err),
		}
	}

	url := fmt.Sprintf("%s/assistant/%s", c.baseURL, externalAssistantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return &RequestError{
			AssistantID:        externalAssistantID,
			TargetDurationSecs: update.MaxDurationSeconds,
			Err:                err,
		}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{
			AssistantID:        externalAssistantID,
			TargetDurationSecs: update.MaxDurationSeconds,
			Err:                err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a bounded amount so the connection can be reused.
		io.CopyN(io.Discard, resp.Body, 4096)
		return &RequestError{
			AssistantID:        externalAssistantID,
			TargetDurationSecs: update.MaxDurationSeconds,
			StatusCode:         resp.StatusCode,
		}
	}
	return nil
}
