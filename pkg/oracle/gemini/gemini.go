// Package gemini provides a naming oracle backed by Google's Gemini API
// through the GenAI SDK. It is the default primary oracle: the most
// capable backend, whose proposals win tie-breaks during selection.
package gemini

import (
	"context"
	"sync"

	"google.golang.org/genai"

	"github.com/crosspoll/harmonizer/pkg/constants"
	"github.com/crosspoll/harmonizer/pkg/errors"
	"github.com/crosspoll/harmonizer/pkg/oracle"
)

// Oracle implements oracle.Oracle against the Gemini API.
type Oracle struct {
	apiKey string
	model  string

	// GenAI client - created lazily, reused across calls
	client *genai.Client
	mu     sync.Mutex
}

// Option configures a gemini Oracle.
type Option func(*Oracle)

// WithModel overrides the Gemini model used for proposals.
func WithModel(model string) Option {
	return func(o *Oracle) {
		o.model = model
	}
}

// New creates a Gemini oracle. The API key is required; keyless
// deployments should fall back to the rules oracle instead.
func New(apiKey string, opts ...Option) (*Oracle, error) {
	if apiKey == "" {
		return nil, errors.ErrAPIKeyRequired
	}
	o := &Oracle{
		apiKey: apiKey,
		model:  constants.DefaultGeminiModel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// ID returns the oracle's identifier.
func (o *Oracle) ID() oracle.ID {
	return oracle.GeminiID
}

// Propose asks Gemini for a raw-to-canonical mapping of the requested
// keys. Transport failures surface as transient oracle errors; responses
// that cannot be parsed into a string-to-string mapping are malformed.
func (o *Oracle) Propose(ctx context.Context, req oracle.Request) (*oracle.Proposal, error) {
	client, err := o.getOrCreateClient(ctx)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	}

	resp, err := client.Models.GenerateContent(ctx, o.model, genai.Text(oracle.BuildPrompt(req)), config)
	if err != nil {
		return nil, errors.WrapOracle(string(oracle.GeminiID), 0, err)
	}

	text := resp.Text()
	if text == "" {
		return nil, errors.NewMalformedProposalError(string(oracle.GeminiID),
			"empty response from model", nil)
	}

	mappings, err := oracle.ExtractMappings(oracle.GeminiID, text)
	if err != nil {
		return nil, err
	}

	proposal := oracle.NewProposal(oracle.GeminiID, req.Kind)
	proposal.Mappings = mappings
	return proposal, nil
}

// getOrCreateClient lazily creates the GenAI client.
func (o *Oracle) getOrCreateClient(ctx context.Context) (*genai.Client, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.client != nil {
		return o.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  o.apiKey,
	})
	if err != nil {
		return nil, errors.WrapOracle(string(oracle.GeminiID), 0, err)
	}

	o.client = client
	return client, nil
}
