package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
)

// Backend defines the interface for narrator providers.
type Backend interface {
	Describe(ctx context.Context, frame model.Frame, prompt string) (string, error)
}

// systemPrompt frames every provider's answer as a short factual description.
const systemPrompt = "You observe frames from a video of someone assembling a product. " +
	"Describe only what is visible. Respond with one or two plain sentences, no lists and no markdown."

// encodedImage is a frame ready to embed in a request.
type encodedImage struct {
	MediaType string
	Data      string
}

// DataURL returns the image as a data URL.
func (i encodedImage) DataURL() string {
	return "data:" + i.MediaType + ";base64," + i.Data
}

// encodeFrame reads the frame image. A frame without an image cannot be narrated and is
// not worth retrying.
func encodeFrame(frame model.Frame) (encodedImage, error) {
	if frame.Path == "" {
		return encodedImage{}, &common.RetryableError{
			Err:       fmt.Errorf("frame %s has no image path", frame.ID),
			Retryable: false,
		}
	}

	data, err := os.ReadFile(frame.Path)
	if err != nil {
		return encodedImage{}, &common.RetryableError{
			Err:       fmt.Errorf("failed to read frame %s: %w", frame.ID, err),
			Retryable: false,
		}
	}

	return encodedImage{
		MediaType: mediaType(frame.Path),
		Data:      base64.StdEncoding.EncodeToString(data),
	}, nil
}

func mediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}

// statusError classifies a non-200 API response for WithRetry.
func statusError(provider string, status int, body []byte) error {
	err := fmt.Errorf("%s API error (status %d): %s", provider, status, strings.TrimSpace(string(body)))
	switch {
	case status == 429:
		return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
	case status >= 500:
		return &common.RetryableError{Err: err, Retryable: true}
	default:
		return &common.RetryableError{Err: err, Retryable: false}
	}
}
