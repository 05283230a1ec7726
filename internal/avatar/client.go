package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Generator turns a prompt into an image reference (URL or data URL).
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrNoImage is returned when the upstream answered without an image.
var ErrNoImage = errors.New("upstream returned no image")

// maxErrorBody caps how much of an upstream error body ends up in logs.
const maxErrorBody = 512

// Client talks to an OpenAI-compatible image generation endpoint.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	size     string
	http     *http.Client
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Size     string
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// NewClient builds an upstream client. Per-call deadlines come from the
// caller's context; the transport timeout only guards against stuck sockets.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		size:     cfg.Size,
		http:     httpClient,
	}
}

type imageRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate requests one image for prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(imageRequest{
		Model:  c.model,
		Prompt: prompt,
		N:      1,
		Size:   c.size,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("image request: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("image request: %s", out.Error.Message)
	}
	if len(out.Data) == 0 {
		return "", ErrNoImage
	}

	switch first := out.Data[0]; {
	case first.URL != "":
		return first.URL, nil
	case first.B64JSON != "":
		return "data:image/png;base64," + first.B64JSON, nil
	default:
		return "", ErrNoImage
	}
}
