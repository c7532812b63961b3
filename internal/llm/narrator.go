package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/Veraticus/assembly-verify/internal/service"
)

// Config holds configuration for the narrator.
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	BaseURL        string
	ClaudeCodePath string
	MaxRetries     int
	RetryDelay     time.Duration
	CacheTTL       time.Duration
	Timeout        time.Duration
	RateLimit      int
	Temperature    float64
	MaxTokens      int
}

// Service is an explicit, long-lived narrator handle. It owns the backend, the rate
// limiter and the response cache, and is passed to whatever needs narrations.
type Service struct {
	backend   Backend
	cache     *narrativeCache
	logger    *slog.Logger
	limiter   *rateLimiter
	provider  string
	retryOpts service.RetryOptions
}

var _ service.Narrator = (*Service)(nil)

// Open creates the configured backend and wraps it in a Service. Close releases it.
func Open(cfg Config, logger *slog.Logger) (*Service, error) {
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create narrator backend: %w", err)
	}
	return NewService(backend, cfg, logger), nil
}

// NewService wraps an existing backend.
func NewService(backend Backend, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderSimulated
	}

	return &Service{
		backend:   backend,
		cache:     newNarrativeCache(cfg.CacheTTL),
		logger:    logger,
		limiter:   newRateLimiter(cfg.RateLimit),
		provider:  provider,
		retryOpts: retryOpts,
	}
}

// Provider returns the backend name.
func (s *Service) Provider() string {
	return s.provider
}

// Describe returns the narration for a frame. Empty provider output counts as a failure.
func (s *Service) Describe(ctx context.Context, frame model.Frame, prompt string) (string, error) {
	key := cacheKey(frame, prompt)
	if narrative, ok := s.cache.get(key); ok {
		s.logger.Debug("cache hit for frame", "frame", frame.ID)
		return narrative, nil
	}

	if err := s.limiter.wait(ctx); err != nil {
		return "", err
	}

	var narrative string
	err := common.WithRetry(ctx, func() error {
		raw, err := s.backend.Describe(ctx, frame, prompt)
		if err != nil {
			return err
		}
		narrative = cleanNarrative(raw)
		if narrative == "" {
			return &common.RetryableError{Err: fmt.Errorf("empty narration for frame %s", frame.ID), Retryable: true}
		}
		return nil
	}, s.retryOpts)
	if err != nil {
		return "", fmt.Errorf("%w: narrator (%s) on frame %s: %w", common.ErrObserverFailed, s.provider, frame.ID, err)
	}

	s.cache.set(key, narrative)
	s.logger.Debug("narrated frame",
		"frame", frame.ID,
		"provider", s.provider,
		"narrative", narrative)
	return narrative, nil
}

// Close stops background goroutines and cleans up resources.
func (s *Service) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	return nil
}
