package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Provider is one AI model vendor able to answer a text or vision prompt.
type Provider interface {
	Name() string
	Complete(ctx context.Context, input Input) (Completion, error)
}

// Input is a single-turn prompt, optionally with one image.
type Input struct {
	Prompt      string
	Image       *Image
	MaxTokens   int
	Temperature float32
}

// Completion is the text the model produced plus the untouched response body.
type Completion struct {
	Text string
	Raw  json.RawMessage
}

const (
	DefaultMaxTokens   = 1500
	DefaultTemperature = 0.7
)

// WithDefaults fills zero token and temperature settings.
func (in Input) WithDefaults() Input {
	if in.MaxTokens <= 0 {
		in.MaxTokens = DefaultMaxTokens
	}
	if in.Temperature == 0 {
		in.Temperature = DefaultTemperature
	}
	return in
}

// Image is raw image bytes with their MIME type.
type Image struct {
	MimeType string
	Data     []byte
}

// Base64 returns the standard base64 encoding of the image bytes.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL renders the image as a data: URL.
func (i Image) DataURL() string {
	return "data:" + i.MimeType + ";base64," + i.Base64()
}

var ErrInvalidDataURL = errors.New("invalid image data url")

// ParseDataURL decodes "data:<mime>;base64,<payload>". A bare base64 payload is accepted as JPEG.
func ParseDataURL(raw string) (Image, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Image{}, ErrInvalidDataURL
	}
	mime := "image/jpeg"
	payload := raw
	if strings.HasPrefix(raw, "data:") {
		header, body, ok := strings.Cut(raw, ",")
		if !ok {
			return Image{}, ErrInvalidDataURL
		}
		header = strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(header, ";base64") {
			return Image{}, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
		}
		if m := strings.TrimSuffix(header, ";base64"); m != "" {
			mime = m
		}
		payload = body
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if len(data) == 0 {
		return Image{}, ErrInvalidDataURL
	}
	return Image{MimeType: mime, Data: data}, nil
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 300 {
		body = body[:300]
	}
	if body == "" {
		return fmt.Sprintf("%s API error: %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error: %d - %s", e.Provider, e.StatusCode, body)
}

// ErrEmptyCompletion is returned when a provider answered 2xx without usable text,
// including bodies that do not decode or carry no choices.
var ErrEmptyCompletion = errors.New("empty completion")
