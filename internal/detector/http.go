package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/Veraticus/assembly-verify/internal/service"
)

// Config holds configuration for the HTTP detector.
type Config struct {
	Endpoint string
	ClassMap *ClassMap
	Timeout  time.Duration
	Retry    service.RetryOptions
}

// HTTPDetector posts frames to a YOLO-style inference endpoint.
type HTTPDetector struct {
	httpClient *http.Client
	endpoint   string
	classMap   ClassMap
	retry      service.RetryOptions
}

var _ service.Detector = (*HTTPDetector)(nil)

type detectRequest struct {
	FrameID string `json:"frame_id"`
	Image   string `json:"image"`
}

type detectResponse struct {
	Detections []RawDetection `json:"detections"`
}

// NewHTTPDetector creates a detector for the configured endpoint.
func NewHTTPDetector(cfg Config) (*HTTPDetector, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: detector endpoint", common.ErrMissingConfig)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	classMap := DefaultClassMap()
	if cfg.ClassMap != nil {
		classMap = *cfg.ClassMap
	}

	return &HTTPDetector{
		endpoint: cfg.Endpoint,
		classMap: classMap,
		retry:    cfg.Retry,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Detect implements service.Detector.
func (d *HTTPDetector) Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error) {
	if frame.Path == "" {
		return nil, fmt.Errorf("frame %s has no image path", frame.ID)
	}

	img, err := os.ReadFile(frame.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame %s: %w", frame.ID, err)
	}

	body, err := json.Marshal(detectRequest{
		FrameID: frame.ID,
		Image:   base64.StdEncoding.EncodeToString(img),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var raw []RawDetection
	err = common.WithRetry(ctx, func() error {
		var postErr error
		raw, postErr = d.post(ctx, body)
		return postErr
	}, d.retry)
	if err != nil {
		return nil, err
	}

	detections := d.classMap.Apply(raw)
	slog.Debug("Detector response",
		"frame", frame.ID,
		"raw", len(raw),
		"kept", len(detections))
	return detections, nil
}

func (d *HTTPDetector) post(ctx context.Context, body []byte) ([]RawDetection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to create request: %w", err), Retryable: false}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("request failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to read response: %w", err), Retryable: true}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: detector returned %d", common.ErrRateLimit, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, &common.RetryableError{Err: fmt.Errorf("detector error (status %d): %s", resp.StatusCode, string(data)), Retryable: true}
	case resp.StatusCode != http.StatusOK:
		return nil, &common.RetryableError{Err: fmt.Errorf("detector error (status %d): %s", resp.StatusCode, string(data)), Retryable: false}
	}

	var parsed detectResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to parse response: %w", err), Retryable: false}
	}
	return parsed.Detections, nil
}
