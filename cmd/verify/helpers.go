package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Veraticus/assembly-verify/internal/config"
	"github.com/Veraticus/assembly-verify/internal/detector"
	"github.com/Veraticus/assembly-verify/internal/frames"
	"github.com/Veraticus/assembly-verify/internal/llm"
	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/Veraticus/assembly-verify/internal/service"
	"github.com/Veraticus/assembly-verify/internal/storage"
	"github.com/spf13/viper"
)

// initStorage opens the run index with proper path expansion and migrates it.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.ExpandPath(viper.GetString("database.path"))

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// narratorConfig builds the narrator configuration. Without useAPI the simulated narrator
// is used regardless of the configured provider.
func narratorConfig(useAPI bool) (llm.Config, error) {
	cfg := llm.Config{
		Provider:       llm.ProviderSimulated,
		Model:          viper.GetString("narrator.model"),
		BaseURL:        viper.GetString("narrator.base_url"),
		ClaudeCodePath: viper.GetString("narrator.claude_code_path"),
		Temperature:    viper.GetFloat64("narrator.temperature"),
		MaxTokens:      viper.GetInt("narrator.max_tokens"),
		MaxRetries:     viper.GetInt("narrator.max_retries"),
		RetryDelay:     viper.GetDuration("narrator.retry_delay"),
		CacheTTL:       viper.GetDuration("narrator.cache_ttl"),
		Timeout:        viper.GetDuration("narrator.timeout"),
		RateLimit:      viper.GetInt("narrator.rate_limit"),
	}
	if !useAPI {
		return cfg, nil
	}

	cfg.Provider = strings.ToLower(viper.GetString("narrator.provider"))

	// Check viper first, then the provider's conventional environment variable
	cfg.APIKey = viper.GetString("narrator.api_key")
	switch cfg.Provider {
	case llm.ProviderOpenAI:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.APIKey == "" {
			return cfg, fmt.Errorf("OpenAI API key not found in config or OPENAI_API_KEY environment variable")
		}
	case llm.ProviderAnthropic:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if cfg.APIKey == "" {
			return cfg, fmt.Errorf("anthropic API key not found in config or ANTHROPIC_API_KEY environment variable")
		}
	case llm.ProviderClaudeCode, llm.ProviderSimulated:
	default:
		return cfg, fmt.Errorf("unsupported narrator provider: %s", cfg.Provider)
	}

	return cfg, nil
}

// createDetector returns the HTTP detector when an endpoint is configured and a detector
// that never reports anything otherwise.
func createDetector() (service.Detector, error) {
	endpoint := viper.GetString("detector.endpoint")
	if endpoint == "" {
		slog.Info("No detector endpoint configured, frames will carry no detections")
		return detector.Noop{}, nil
	}

	classMap := detector.DefaultClassMap()
	threshold := viper.GetFloat64("detector.threshold")
	if classes := viper.GetStringMapString("detector.classes"); len(classes) > 0 {
		classMap = detector.NewClassMap(classes, threshold)
	} else if threshold != classMap.Threshold() {
		classMap = classMap.WithThreshold(threshold)
	}

	return detector.NewHTTPDetector(detector.Config{
		Endpoint: endpoint,
		ClassMap: &classMap,
		Timeout:  viper.GetDuration("detector.timeout"),
		Retry: service.RetryOptions{
			MaxAttempts:  viper.GetInt("detector.max_retries"),
			InitialDelay: viper.GetDuration("detector.retry_delay"),
		},
	})
}

// frameOptions reads the sampling settings.
func frameOptions() frames.Options {
	return frames.Options{
		FFmpegPath: viper.GetString("frames.ffmpeg_path"),
		FPS:        viper.GetFloat64("frames.fps"),
		Stride:     viper.GetInt("frames.stride"),
	}
}

// preparationPolicy reads and checks the configured preparation policy.
func preparationPolicy() (model.PreparationPolicy, error) {
	policy := model.PreparationPolicy(strings.ToLower(viper.GetString("engine.preparation_policy")))
	if !policy.Valid() {
		return "", fmt.Errorf("invalid preparation policy %q (want %s or %s)",
			policy, model.PolicyCumulative, model.PolicyFrame)
	}
	return policy, nil
}
