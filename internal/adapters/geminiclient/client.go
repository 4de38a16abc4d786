package geminiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"aetherquant/internal/ports"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client implements the ports.ReportGenerator interface against the Gemini
// generateContent REST endpoint.
type Client struct {
	baseURL           string
	apiKey            string
	model             string
	systemInstruction string
	temperature       float64
	httpClient        *http.Client
	logger            ports.Logger
}

// Config holds configuration specific to the Gemini client adapter.
type Config struct {
	APIKey            string
	Model             string
	SystemInstruction string
	Temperature       float64
	Timeout           time.Duration
	BaseURL           string // Overridable for tests
	Logger            ports.Logger
}

// New creates a new Gemini client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Gemini client")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required: %w", ports.ErrConfigurationError)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("Gemini model is required: %w", ports.ErrConfigurationError)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	return &Client{
		baseURL:           baseURL,
		apiKey:            cfg.APIKey,
		model:             cfg.Model,
		systemInstruction: cfg.SystemInstruction,
		temperature:       temperature,
		httpClient:        &http.Client{Timeout: timeout},
		logger:            cfg.Logger,
	}, nil
}

// --- Wire Types ---

type generateRequest struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GenerateReport sends the prompt to the model and returns the narrative text.
// Failures (timeout, quota, empty candidates) wrap ports.ErrReportGeneration
// so callers can render a uniform "try again" message.
func (c *Client) GenerateReport(ctx context.Context, prompt string) (string, error) {
	op := "GenerateReport"

	reqBody := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{Temperature: c.temperature},
	}
	if c.systemInstruction != "" {
		reqBody.SystemInstruction = &content{Parts: []part{{Text: c.systemInstruction}}}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%s failed to encode request: %w: %w", op, ports.ErrReportGeneration, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%s failed to build request: %w: %w", op, ports.ErrReportGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("%s canceled: %w: %w", op, ports.ErrReportGeneration, err)
		}
		c.logger.Error(ctx, err, op+" request failed")
		return "", fmt.Errorf("%s failed: %w: %w", op, ports.ErrReportGeneration, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s failed to read response: %w: %w", op, ports.ErrReportGeneration, err)
	}

	// Decode failures on an error status are tolerated: proxies and gateways
	// answer with non-JSON bodies, and the status code alone still maps.
	var decoded generateResponse
	decodeErr := json.Unmarshal(body, &decoded)
	if decodeErr != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("%s failed to decode response: %w: %w", op, ports.ErrReportGeneration, decodeErr)
	}

	if resp.StatusCode != http.StatusOK {
		apiMsg := resp.Status
		if decoded.Error != nil {
			apiMsg = decoded.Error.Message
		}
		sentinel := ports.ErrReportGeneration
		if resp.StatusCode == http.StatusTooManyRequests {
			sentinel = ports.ErrRateLimited
		}
		err := fmt.Errorf("%s failed with status %d: %s: %w", op, resp.StatusCode, apiMsg, sentinel)
		c.logger.Error(ctx, err, op+" API error", map[string]interface{}{"status": resp.StatusCode, "model": c.model})
		return "", err
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%s returned no candidates: %w", op, ports.ErrReportGeneration)
	}

	var text string
	for _, p := range decoded.Candidates[0].Content.Parts {
		text += p.Text
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"model": c.model, "chars": len(text)})
	return text, nil
}
