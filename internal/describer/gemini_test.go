package describer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxsplit/voxsplit/internal/domain"
)

func TestDescribeSpeaker(t *testing.T) {
	var gotPath string
	var gotBody generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{"text": "  Deep male voice speaking\n"}},
				},
			}},
		})
	}))
	defer srv.Close()

	client, err := NewGeminiClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	media := []byte{0x00, 0x01, 0x02}
	description, err := client.DescribeSpeaker(context.Background(), media, "video/mp4")
	require.NoError(t, err)
	require.Equal(t, "Deep male voice speaking", description)

	require.Equal(t, "/models/gemini-2.0-flash:generateContent", gotPath)
	require.Len(t, gotBody.Contents, 1)
	require.Len(t, gotBody.Contents[0].Parts, 2)

	inline := gotBody.Contents[0].Parts[0].InlineData
	require.NotNil(t, inline)
	require.Equal(t, "video/mp4", inline.MIMEType)
	require.Equal(t, base64.StdEncoding.EncodeToString(media), inline.Data)
	require.Equal(t, SpeakerPrompt, gotBody.Contents[0].Parts[1].Text)
}

func TestDescribeSpeakerEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer srv.Close()

	client, err := NewGeminiClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.DescribeSpeaker(context.Background(), []byte("x"), "video/mp4")
	var providerErr *domain.ProviderError
	require.ErrorAs(t, err, &providerErr)
}

func TestDescribeSpeakerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewGeminiClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.DescribeSpeaker(context.Background(), []byte("x"), "video/mp4")
	var providerErr *domain.ProviderError
	require.ErrorAs(t, err, &providerErr)
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClient(Config{})
	require.Error(t, err)
}
