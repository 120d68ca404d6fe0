package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cognicore/termex/pkg/termex/store"
)

// Client calls an external LLM endpoint to approve/reject extracted terms.
type Client struct {
	Endpoint string
	APIKey   string

	HTTPClient *http.Client
	Prompts    PromptTemplates
}

// PromptTemplates allow customization of the LLM prompt text.
type PromptTemplates struct {
	Candidate  string
	Dictionary string
}

type requestPayload struct {
	Prompt string `json:"prompt"`
}

type responsePayload struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// ApproveCandidate implements review.Reviewer.
func (c *Client) ApproveCandidate(ctx context.Context, cand store.Candidate) (bool, error) {
	resp, err := c.call(ctx, c.candidatePrompt(cand))
	if err != nil {
		return false, err
	}
	return resp.Approve, nil
}

// ApproveSuggestion implements review.Reviewer.
func (c *Client) ApproveSuggestion(ctx context.Context, sugg store.DictionaryCandidate) (bool, error) {
	resp, err := c.call(ctx, c.dictionaryPrompt(sugg))
	if err != nil {
		return false, err
	}
	return resp.Approve, nil
}

func (c *Client) call(ctx context.Context, prompt string) (*responsePayload, error) {
	if c.Endpoint == "" {
		return nil, fmt.Errorf("llm reviewer: endpoint required")
	}

	body, err := json.Marshal(requestPayload{Prompt: prompt})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("llm reviewer: http %d", resp.StatusCode)
	}

	var payload responsePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("llm reviewer: decode response: %w", err)
	}
	return &payload, nil
}

func (c *Client) candidatePrompt(cand store.Candidate) string {
	tpl := c.Prompts.Candidate
	if tpl == "" {
		tpl = "Is '%s' (from '%s') a domain term worth adding to a glossary? count=%d, docs=%d, NPMI=%s, relevance=%s. Reply with JSON {\"approve\": true|false}."
	}
	return fmt.Sprintf(tpl, cand.Term, cand.Surface, cand.Count, cand.DocCount, cand.NPMI, cand.RelevanceScore)
}

func (c *Client) dictionaryPrompt(sugg store.DictionaryCandidate) string {
	tpl := c.Prompts.Dictionary
	if tpl == "" {
		tpl = "Should '%s' be registered as one dictionary word instead of '%s'? count=%d, docs=%d, NPMI=%s, confidence=%s, signals: %s. Reply JSON {\"approve\": true|false}."
	}
	return fmt.Sprintf(tpl, sugg.SuggestedTerm, sugg.OriginalTerm, sugg.Count, sugg.DocCount,
		sugg.NPMI, sugg.Confidence, strings.Join(sugg.Reasons, ", "))
}
