package plant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/canopyops/canopy-core/internal/infrastructure/config"
)

// Analyzer is the interface to the external AI inference provider.
//
// Implementations must be safe for concurrent use and idempotent per
// call: the engine retries failed batches and may re-trigger the same
// plant/type pair, so a repeated call must not corrupt provider state.
type Analyzer interface {
	// TriggerAnalysis runs one analysis for a plant and returns the
	// provider's result payload.
	TriggerAnalysis(ctx context.Context, plantID string, analysisType AnalysisType, cfg map[string]any) (map[string]any, error)
}

// maxResponseBytes caps the inference response body size.
const maxResponseBytes = 4 << 20 // 4MB

// HTTPAnalyzer calls a JSON-over-HTTP inference endpoint.
//
// The request body is {"plant_id", "analysis_type", "config"}; the
// response body is the analysis payload verbatim.
type HTTPAnalyzer struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPAnalyzer creates an analyzer for the configured inference endpoint.
func NewHTTPAnalyzer(cfg config.InferenceConfig) *HTTPAnalyzer {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPAnalyzer{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

// TriggerAnalysis implements Analyzer.
func (a *HTTPAnalyzer) TriggerAnalysis(ctx context.Context, plantID string, analysisType AnalysisType, cfg map[string]any) (map[string]any, error) {
	if !analysisType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAnalysisType, analysisType)
	}

	body, err := json.Marshal(map[string]any{
		"plant_id":      plantID,
		"analysis_type": string(analysisType),
		"config":        cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort cleanup

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: provider returned %s", ErrAnalysisFailed, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading analysis response: %w", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: invalid response body: %w", ErrAnalysisFailed, err)
	}
	return result, nil
}
