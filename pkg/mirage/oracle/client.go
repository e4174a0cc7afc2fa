package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// ClientConfig contains the configuration for the decision-service client.
type ClientConfig struct {
	// Endpoint is the decision-service URL
	Endpoint string
	// RequestTimeout bounds a single call attempt; a timeout is treated
	// as a hard failure, the same as a network error
	RequestTimeout time.Duration
	// MaxRetries bounds transient-failure retries per decision. Retries
	// use exponential backoff with jitter; the default is low to keep
	// each stage to a single near-synchronous decision.
	MaxRetries uint64
}

// DefaultClientConfig returns a default configuration for the client.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Endpoint:       "http://localhost:8089/decide",
		RequestTimeout: 30 * time.Second,
		MaxRetries:     2,
	}
}

// Hooks allows external integrations (metrics, audit) to observe decision
// outcomes without coupling the client to them.
type Hooks struct {
	// OnHardFailure fires when a call could not be completed
	OnHardFailure func(task Task)
	// OnSoftFailure fires when a completed call returned an unusable
	// payload and the default heuristic supplied the decision
	OnSoftFailure func(task Task)
}

// Client issues decision requests to the external service. It authenticates
// with the credential unsealed by the vault at construction time and applies
// the fallback policy: hard failures surface as OracleError, unusable
// payloads are replaced by the injected default-decision heuristic.
type Client struct {
	endpoint   string
	credential string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries uint64
	heuristic  Heuristic
	hooks      Hooks
}

// decisionRequest is the outbound wire format.
type decisionRequest struct {
	Task        Task    `json:"task"`
	Context     any     `json:"context"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// decisionEnvelope is the inbound wire format: exactly one of Result or
// Error is populated.
type decisionEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// NewClient creates a decision-service client. The credential must already
// be unsealed; the heuristic is required so that soft failures always have a
// fallback policy.
func NewClient(cfg *ClientConfig, credential string, heuristic Heuristic, hooks Hooks) (*Client, error) {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("decision service endpoint is required")
	}
	if credential == "" {
		return nil, fmt.Errorf("decision service credential is required")
	}
	if heuristic == nil {
		return nil, fmt.Errorf("default decision heuristic is required")
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		endpoint:   cfg.Endpoint,
		credential: credential,
		httpClient: &http.Client{},
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		heuristic:  heuristic,
		hooks:      hooks,
	}, nil
}

// Decide implements Decider. It issues a single synchronous decision call
// (with bounded retry on transport failure) and normalizes the result.
func (c *Client) Decide(ctx context.Context, task Task, payload any, maxTokens int, temperature float64) (Fields, error) {
	body, err := json.Marshal(decisionRequest{
		Task:        task,
		Context:     payload,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, c.hardFailure(task, fmt.Errorf("failed to encode decision context: %w", err))
	}

	var envelope decisionEnvelope
	operation := func() error {
		var attemptErr error
		envelope, attemptErr = c.call(ctx, body)
		return attemptErr
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, c.hardFailure(task, err)
	}

	if envelope.Error != "" {
		return nil, c.hardFailure(task, fmt.Errorf("decision service reported: %s", envelope.Error))
	}

	return c.normalize(task, envelope.Result), nil
}

// call performs one HTTP attempt under the per-call timeout.
func (c *Client) call(ctx context.Context, body []byte) (decisionEnvelope, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return decisionEnvelope{}, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decisionEnvelope{}, fmt.Errorf("decision call failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close decision response body")
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decisionEnvelope{}, fmt.Errorf("failed to read decision response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return decisionEnvelope{}, fmt.Errorf("decision service returned status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		// Client-side errors will not heal on retry
		return decisionEnvelope{}, backoff.Permanent(fmt.Errorf("decision service returned status %d", resp.StatusCode))
	}

	var envelope decisionEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return decisionEnvelope{}, backoff.Permanent(fmt.Errorf("failed to decode decision envelope: %w", err))
	}
	return envelope, nil
}

// normalize converts a raw result into usable decision fields. An unusable
// payload is a soft failure: the default heuristic supplies the decision
// instead of the caller ever seeing the raw payload.
func (c *Client) normalize(task Task, raw json.RawMessage) Fields {
	var fields Fields
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			fields = nil
		}
	}

	if fields == nil {
		log.Warn().Str("task", string(task)).Msg("Decision payload is not a mapping, using default heuristic")
		c.softFailure(task)
		return c.heuristic.Default(task)
	}

	// Boolean tasks must carry their verdict field with the right type;
	// otherwise the mapping is not well formed for this task.
	if key := task.BoolKey(); key != "" {
		if _, ok := fields.Bool(key); !ok {
			log.Warn().Str("task", string(task)).Str("field", key).Msg("Decision missing verdict field, using default heuristic")
			c.softFailure(task)
			if v, ok := c.heuristic.Default(task).Bool(key); ok {
				fields[key] = v
			}
		}
	}

	return fields
}

func (c *Client) hardFailure(task Task, err error) error {
	if c.hooks.OnHardFailure != nil {
		c.hooks.OnHardFailure(task)
	}
	return &OracleError{Task: task, Err: err}
}

func (c *Client) softFailure(task Task) {
	if c.hooks.OnSoftFailure != nil {
		c.hooks.OnSoftFailure(task)
	}
}
