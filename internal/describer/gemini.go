// Package describer asks a multimodal language model for a short description
// of the dominant speaker's voice in a piece of media. The description is
// transient: it parameterizes the separation engine and is never persisted.
package describer

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

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// SpeakerPrompt is the fixed instruction sent alongside the media bytes.
const SpeakerPrompt = "Describe the main speaker's voice in this video in 2-5 words for an audio " +
	"separation model. Examples: 'Man speaking', 'Woman speaking', 'Young boy speaking', " +
	"'Deep male voice speaking'. Reply with ONLY the short description, nothing else."

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiClient calls the generateContent REST endpoint with the media inline.
type GeminiClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

func NewGeminiClient(cfg Config) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("api key is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &GeminiClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
	}, nil
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// DescribeSpeaker sends the raw media bytes plus the fixed prompt and returns
// the model's trimmed one-line answer. One attempt, no fallback description.
func (c *GeminiClient) DescribeSpeaker(ctx context.Context, media []byte, mimeType string) (string, error) {
	reqBody := generateRequest{
		Contents: []content{{
			Parts: []part{
				{InlineData: &inlineData{
					MIMEType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(media),
				}},
				{Text: SpeakerPrompt},
			},
		}},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", &domain.ProviderError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &domain.ProviderError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.ProviderError{Err: fmt.Errorf("call provider: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &domain.ProviderError{Err: fmt.Errorf("provider returned status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(snippet)))}
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &domain.ProviderError{Err: fmt.Errorf("decode response: %w", err)}
	}

	description := firstText(parsed)
	if description == "" {
		return "", &domain.ProviderError{Err: errors.New("empty description in response")}
	}
	return description, nil
}

func firstText(resp generateResponse) string {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if text := strings.TrimSpace(p.Text); text != "" {
				return text
			}
		}
	}
	return ""
}
