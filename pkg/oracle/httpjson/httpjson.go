// Package httpjson provides a naming oracle backed by any
// OpenAI-compatible chat-completions endpoint. Transient failures (429,
// 5xx, transport errors) are retried inside the backend with exponential
// backoff; the pipeline itself never retries.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/crosspoll/harmonizer/pkg/constants"
	"github.com/crosspoll/harmonizer/pkg/errors"
	"github.com/crosspoll/harmonizer/pkg/oracle"
)

// DefaultBaseURL is the OpenAI API endpoint used when none is configured.
const DefaultBaseURL = "https://api.openai.com/v1"

// RetryConfig holds retry behavior for transient endpoint failures.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per proposal call.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to the backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the standard retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       constants.MaxRetries,
		BackoffBase:       constants.RetryBackoff,
		BackoffMultiplier: 2.0,
		MaxBackoff:        constants.MaxRetryBackoff,
	}
}

// Oracle implements oracle.Oracle against a chat-completions endpoint.
type Oracle struct {
	id      oracle.ID
	baseURL string
	apiKey  string
	model   string
	retry   RetryConfig
	client  *http.Client
}

// Option configures an httpjson Oracle.
type Option func(*Oracle)

// WithID overrides the oracle ID.
func WithID(id oracle.ID) Option {
	return func(o *Oracle) {
		o.id = id
	}
}

// WithBaseURL points the oracle at a non-default endpoint, e.g. a local
// inference server speaking the OpenAI protocol.
func WithBaseURL(url string) Option {
	return func(o *Oracle) {
		o.baseURL = url
	}
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Oracle) {
		o.model = model
	}
}

// WithRetryConfig overrides the retry behavior.
func WithRetryConfig(rc RetryConfig) Option {
	return func(o *Oracle) {
		o.retry = rc
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Oracle) {
		o.client = client
	}
}

// New creates an httpjson oracle.
func New(apiKey string, opts ...Option) (*Oracle, error) {
	if apiKey == "" {
		return nil, errors.ErrAPIKeyRequired
	}
	o := &Oracle{
		id:      oracle.HTTPJSONID,
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		model:   constants.DefaultOpenAIModel,
		retry:   DefaultRetryConfig(),
		client:  &http.Client{Timeout: constants.DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// ID returns the oracle's identifier.
func (o *Oracle) ID() oracle.ID {
	return o.id
}

// chat-completions wire types, reduced to the fields the oracle uses.
type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Propose sends the proposal prompt to the endpoint and parses the
// mapping out of the first choice.
func (o *Oracle) Propose(ctx context.Context, req oracle.Request) (*oracle.Proposal, error) {
	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You map survey column names to canonical keys. Respond with JSON only."},
			{Role: "user", Content: oracle.BuildPrompt(req)},
		},
		Temperature:    0,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	content, err := o.complete(ctx, body)
	if err != nil {
		return nil, err
	}

	mappings, err := oracle.ExtractMappings(o.id, content)
	if err != nil {
		return nil, err
	}

	proposal := oracle.NewProposal(o.id, req.Kind)
	proposal.Mappings = mappings
	return proposal, nil
}

// complete performs the HTTP call with bounded retry on transient
// failures and returns the first choice's content.
func (o *Oracle) complete(ctx context.Context, body []byte) (string, error) {
	backoff := o.retry.BackoffBase
	var lastErr error

	for attempt := 1; attempt <= o.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * o.retry.BackoffMultiplier)
			if backoff > o.retry.MaxBackoff {
				backoff = o.retry.MaxBackoff
			}
		}

		content, retryable, err := o.attempt(ctx, body)
		if err == nil {
			return content, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// attempt performs a single HTTP round trip. The second return value
// reports whether the failure is transient.
func (o *Oracle) attempt(ctx context.Context, body []byte) (string, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", true, errors.WrapOracle(string(o.id), 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, errors.WrapOracle(string(o.id), resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, errors.NewOracleError(string(o.id), resp.StatusCode,
			fmt.Sprintf("endpoint returned %s", resp.Status))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", false, &errors.MalformedProposalError{
			Oracle: string(o.id),
			Reason: "response is not valid chat-completion JSON",
			Err:    err,
		}
	}
	if parsed.Error != nil {
		return "", false, errors.NewOracleError(string(o.id), resp.StatusCode, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, errors.NewMalformedProposalError(string(o.id),
			"response carries no choices", nil)
	}
	return parsed.Choices[0].Message.Content, false, nil
}
