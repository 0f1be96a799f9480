package mlclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnavailable indicates the ML scoring service could not produce a
// usable answer. Callers fall back to heuristic scoring.
var ErrUnavailable = errors.New("ml scorer unavailable")

// Client is an HTTP client for the ML scoring service. The four
// capabilities are independent; a failure in one never blocks the
// others.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClassifyResult is the category prediction from /classify.
type ClassifyResult struct {
	Category   string  `json:"predicted_category"`
	Confidence float64 `json:"confidence"`
}

// ToxicityResult is the assessment from /toxicity.
type ToxicityResult struct {
	Score   float64 `json:"toxicity_score"`
	IsToxic bool    `json:"is_toxic"`
}

// RiskResult is the score from /risk.
type RiskResult struct {
	Score float64 `json:"risk_score"`
}

// SimilarityScore pairs a candidate index with its semantic similarity.
// The scorer omits candidates below the requested threshold.
type SimilarityScore struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// HealthStatus reports scorer reachability.
type HealthStatus struct {
	Reachable bool          `json:"reachable"`
	Latency   time.Duration `json:"latency"`
}

type textRequest struct {
	Text string `json:"text"`
}

type riskRequest struct {
	Text           string `json:"text"`
	Category       string `json:"category"`
	Severity       string `json:"severity"`
	DuplicateCount int    `json:"duplicate_count"`
}

type similarityRequest struct {
	QueryText      string   `json:"query_text"`
	CandidateTexts []string `json:"candidate_texts"`
	Threshold      float64  `json:"threshold"`
}

// Decode targets use pointers so a 200 response missing the field it
// exists to deliver is distinguishable from a legitimate zero value.
type classifyResponse struct {
	Category   *string  `json:"predicted_category"`
	Confidence *float64 `json:"confidence"`
}

type toxicityResponse struct {
	Score   *float64 `json:"toxicity_score"`
	IsToxic bool     `json:"is_toxic"`
}

type riskResponse struct {
	Score *float64 `json:"risk_score"`
}

type similarityResponse struct {
	Similarities []SimilarityScore `json:"similarities"`
}

// NewClient creates an ML scorer client. The timeout bounds every call;
// the scorer is known to answer slowly under load.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Classify requests a category prediction for text.
func (c *Client) Classify(ctx context.Context, text string) (*ClassifyResult, error) {
	var resp classifyResponse
	if err := postJSON(ctx, c.http, c.baseURL+"/classify", textRequest{Text: text}, &resp); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	if resp.Category == nil || *resp.Category == "" || resp.Confidence == nil {
		return nil, fmt.Errorf("classify: %w: incomplete response", ErrUnavailable)
	}
	return &ClassifyResult{Category: *resp.Category, Confidence: *resp.Confidence}, nil
}

// Toxicity requests a toxicity assessment for text.
func (c *Client) Toxicity(ctx context.Context, text string) (*ToxicityResult, error) {
	var resp toxicityResponse
	if err := postJSON(ctx, c.http, c.baseURL+"/toxicity", textRequest{Text: text}, &resp); err != nil {
		return nil, fmt.Errorf("toxicity: %w", err)
	}
	if resp.Score == nil {
		return nil, fmt.Errorf("toxicity: %w: incomplete response", ErrUnavailable)
	}
	return &ToxicityResult{Score: *resp.Score, IsToxic: resp.IsToxic}, nil
}

// Risk requests a risk score.
func (c *Client) Risk(ctx context.Context, text, category, severity string, duplicateCount int) (*RiskResult, error) {
	req := riskRequest{
		Text:           text,
		Category:       category,
		Severity:       severity,
		DuplicateCount: duplicateCount,
	}
	var resp riskResponse
	if err := postJSON(ctx, c.http, c.baseURL+"/risk", req, &resp); err != nil {
		return nil, fmt.Errorf("risk: %w", err)
	}
	if resp.Score == nil {
		return nil, fmt.Errorf("risk: %w: incomplete response", ErrUnavailable)
	}
	return &RiskResult{Score: *resp.Score}, nil
}

// Similarity scores every candidate text against the query in one call.
// Candidates scoring below threshold are omitted from the result; a nil
// error with an empty slice means the scorer saw no matches, not that it
// failed.
func (c *Client) Similarity(ctx context.Context, query string, candidates []string, threshold float64) ([]SimilarityScore, error) {
	req := similarityRequest{QueryText: query, CandidateTexts: candidates, Threshold: threshold}
	var resp similarityResponse
	if err := postJSON(ctx, c.http, c.baseURL+"/similarity", req, &resp); err != nil {
		return nil, fmt.Errorf("similarity: %w", err)
	}
	return resp.Similarities, nil
}

// Health probes the scorer's /health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	latency, err := getHealth(ctx, c.http, c.baseURL+"/health")
	if err != nil {
		return &HealthStatus{Reachable: false, Latency: latency}, err
	}
	return &HealthStatus{Reachable: true, Latency: latency}, nil
}
