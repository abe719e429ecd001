package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxResponseBytes = 1 << 20

// ExtractionRequest asks the extraction service to normalize raw artifacts.
type ExtractionRequest struct {
	JobID               string   `json:"jobId"`
	ProcessingReference string   `json:"processingReference"`
	RawURIs             []string `json:"rawUris"`
	PrerequisiteURI     string   `json:"prerequisiteUri,omitempty"`
}

// ExtractionResponse carries the normalized output location.
type ExtractionResponse struct {
	NormalizedLocation string        `json:"normalizedLocation"`
	Error              *ServiceError `json:"error,omitempty"`
}

// GenerationRequest asks the generation service to produce the result artifact.
type GenerationRequest struct {
	JobID               string `json:"jobId"`
	ProcessingReference string `json:"processingReference"`
	NormalizedLocation  string `json:"normalizedLocation"`
	PrerequisiteURI     string `json:"prerequisiteUri,omitempty"`
}

// GenerationResponse carries the result artifact location and item count.
// QueryCount is a pointer so a missing count is distinguishable from zero.
type GenerationResponse struct {
	ResultLocation string        `json:"resultLocation"`
	QueryCount     *int          `json:"queryCount"`
	Error          *ServiceError `json:"error,omitempty"`
}

// ServiceError is the error payload either service may return.
type ServiceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ServiceError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	case e.Message != "":
		return e.Message
	case e.Code != "":
		return e.Code
	default:
		return "service returned an error"
	}
}

// HTTPClient calls the extraction and generation services over JSON/HTTP.
type HTTPClient struct {
	extractionURL string
	generationURL string
	apiKey        string
	httpClient    *http.Client
}

// NewHTTPClient constructs a client. Timeouts are applied per call by the Invoker.
func NewHTTPClient(extractionURL, generationURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		extractionURL: strings.TrimSpace(extractionURL),
		generationURL: strings.TrimSpace(generationURL),
		apiKey:        strings.TrimSpace(apiKey),
		httpClient:    &http.Client{},
	}
}

// Extract calls the extraction service.
func (c *HTTPClient) Extract(ctx context.Context, req ExtractionRequest) (ExtractionResponse, error) {
	var out ExtractionResponse
	if err := c.post(ctx, c.extractionURL, req, &out); err != nil {
		return ExtractionResponse{}, err
	}
	if out.Error != nil {
		return ExtractionResponse{}, out.Error
	}
	return out, nil
}

// Generate calls the generation service.
func (c *HTTPClient) Generate(ctx context.Context, req GenerationRequest) (GenerationResponse, error) {
	var out GenerationResponse
	if err := c.post(ctx, c.generationURL, req, &out); err != nil {
		return GenerationResponse{}, err
	}
	if out.Error != nil {
		return GenerationResponse{}, out.Error
	}
	return out, nil
}

func (c *HTTPClient) post(ctx context.Context, url string, in, out any) error {
	if url == "" {
		return errors.New("service url is not configured")
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error *ServiceError `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != nil {
			return fmt.Errorf("status %d: %w", resp.StatusCode, payload.Error)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
