package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coach-backend/internal/llm"
)

var baseURL = "https://generativelanguage.googleapis.com/v1beta/models"

const defaultModel = "gemini-1.5-pro"

// Client implements llm.Provider using the Gemini generateContent API.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a Gemini client. An empty model selects gemini-1.5-pro.
func NewClient(apiKey, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{apiKey: apiKey, model: model, httpClient: &http.Client{Timeout: timeout}}, nil
}

func (c *Client) Name() string { return "gemini" }

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (c *Client) Complete(ctx context.Context, input llm.Input) (llm.Completion, error) {
	input = input.WithDefaults()
	parts := []part{{Text: input.Prompt}}
	if input.Image != nil {
		parts = append(parts, part{InlineData: &inlineData{MimeType: input.Image.MimeType, Data: input.Image.Base64()}})
	}
	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature:     input.Temperature,
			MaxOutputTokens: input.MaxTokens,
		},
	})
	if err != nil {
		return llm.Completion{}, err
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", baseURL, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return llm.Completion{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return llm.Completion{}, fmt.Errorf("gemini request timeout: %w", err)
		}
		// The URL carries the key; keep it out of error strings.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return llm.Completion{}, fmt.Errorf("gemini request failed: %w", urlErr.Err)
		}
		return llm.Completion{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Completion{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return llm.Completion{}, &llm.StatusError{Provider: "Gemini", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return llm.Completion{}, fmt.Errorf("gemini response parse: %w: %w", err, llm.ErrEmptyCompletion)
	}
	if parsed.Error != nil {
		return llm.Completion{}, fmt.Errorf("gemini error: %s (%s)", parsed.Error.Message, parsed.Error.Status)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return llm.Completion{}, fmt.Errorf("gemini response missing candidates: %w", llm.ErrEmptyCompletion)
	}
	if parsed.UsageMetadata != nil {
		log.Printf("llm response provider=gemini model=%s prompt_tokens=%d completion_tokens=%d total_tokens=%d",
			c.model, parsed.UsageMetadata.PromptTokenCount, parsed.UsageMetadata.CandidatesTokenCount, parsed.UsageMetadata.TotalTokenCount)
	}

	text := strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return llm.Completion{}, fmt.Errorf("gemini: %w", llm.ErrEmptyCompletion)
	}
	return llm.Completion{Text: text, Raw: json.RawMessage(body)}, nil
}
