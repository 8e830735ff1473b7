package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxsplit/voxsplit/internal/domain"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPEngine posts separation requests to the model sidecar.
type HTTPEngine struct {
	httpClient *http.Client
	baseURL    string
}

func NewHTTPEngine(cfg Config) (*HTTPEngine, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("engine base URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return &HTTPEngine{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}, nil
}

type separateRequest struct {
	InputPath   string `json:"input_path"`
	Description string `json:"description"`
}

// Health probes the sidecar. Used once at startup so a misconfigured engine
// URL is visible before the first upload arrives.
func (e *HTTPEngine) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("engine health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine health check returned status=%d", resp.StatusCode)
	}
	return nil
}

func (e *HTTPEngine) Separate(ctx context.Context, inputPath, description string) (Result, error) {
	body, err := json.Marshal(separateRequest{
		InputPath:   inputPath,
		Description: description,
	})
	if err != nil {
		return Result{}, &domain.EngineError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/separate", bytes.NewReader(body))
	if err != nil {
		return Result{}, &domain.EngineError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return Result{}, &domain.EngineError{Err: fmt.Errorf("call engine: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, &domain.EngineError{Err: fmt.Errorf("engine returned status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(snippet)))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &domain.EngineError{Err: fmt.Errorf("read response: %w", err)}
	}

	result, err := decodeSeparateResponse(raw)
	if err != nil {
		return Result{}, &domain.EngineError{Err: err}
	}
	return result, nil
}

// Two response schemas are in the wild. Current sidecars return top-level
// base64 fields; older ones nest them under "stems". Both are normalized
// here, at the dependency boundary, instead of patching the sidecar.
type separateResponse struct {
	Speech     string `json:"speech"`
	Background string `json:"background"`
	Stems      *struct {
		Speech     string `json:"speech"`
		Background string `json:"background"`
	} `json:"stems"`
}

func decodeSeparateResponse(raw []byte) (Result, error) {
	var parsed separateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	speechB64 := parsed.Speech
	backgroundB64 := parsed.Background
	if parsed.Stems != nil {
		speechB64 = parsed.Stems.Speech
		backgroundB64 = parsed.Stems.Background
	}

	if speechB64 == "" || backgroundB64 == "" {
		return Result{}, errors.New("response is missing speech or background stem")
	}

	speech, err := base64.StdEncoding.DecodeString(speechB64)
	if err != nil {
		return Result{}, fmt.Errorf("decode speech stem: %w", err)
	}
	background, err := base64.StdEncoding.DecodeString(backgroundB64)
	if err != nil {
		return Result{}, fmt.Errorf("decode background stem: %w", err)
	}

	return Result{Speech: speech, Background: background}, nil
}
