package llm

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Describe(ctx context.Context, frame model.Frame, prompt string) (string, error) {
	args := m.Called(ctx, frame, prompt)
	return args.String(0), args.Error(1)
}

func testConfig() Config {
	return Config{
		Provider:   "mock",
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		RateLimit:  6000,
	}
}

func newTestService(t *testing.T, backend Backend) *Service {
	t.Helper()
	svc := NewService(backend, testConfig(), slog.Default())
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestService_Describe(t *testing.T) {
	backend := &mockBackend{}
	frame := model.Frame{ID: "frame_0001", Path: "/frames/frame_0001.jpg"}
	backend.On("Describe", mock.Anything, frame, "prompt").Return("```\nThe case is **open**.\n```", nil).Once()

	svc := newTestService(t, backend)
	got, err := svc.Describe(context.Background(), frame, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "The case is open.", got)
	assert.Equal(t, "mock", svc.Provider())

	// The second call is served from the cache.
	got, err = svc.Describe(context.Background(), frame, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "The case is open.", got)
	backend.AssertExpectations(t)
}

func TestService_DescribeRetries(t *testing.T) {
	backend := &mockBackend{}
	frame := model.Frame{ID: "frame_0002"}
	backend.On("Describe", mock.Anything, frame, "p").
		Return("", &common.RetryableError{Err: errors.New("503"), Retryable: true}).Once()
	backend.On("Describe", mock.Anything, frame, "p").Return("   ", nil).Once()
	backend.On("Describe", mock.Anything, frame, "p").Return("Lid closed.", nil).Once()

	svc := newTestService(t, backend)
	got, err := svc.Describe(context.Background(), frame, "p")
	require.NoError(t, err)
	assert.Equal(t, "Lid closed.", got)
	backend.AssertNumberOfCalls(t, "Describe", 3)
}

func TestService_DescribeFailure(t *testing.T) {
	backend := &mockBackend{}
	frame := model.Frame{ID: "frame_0003"}
	backend.On("Describe", mock.Anything, frame, "p").
		Return("", &common.RetryableError{Err: errors.New("bad request"), Retryable: false})

	svc := newTestService(t, backend)
	_, err := svc.Describe(context.Background(), frame, "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrObserverFailed)
	backend.AssertNumberOfCalls(t, "Describe", 1)
}

func TestService_DescribeCanceled(t *testing.T) {
	backend := &mockBackend{}
	svc := NewService(backend, Config{RateLimit: 1, RetryDelay: time.Millisecond}, nil)
	defer func() { _ = svc.Close() }()

	frame := model.Frame{ID: "frame_0004"}
	backend.On("Describe", mock.Anything, frame, "p").Return("ok", nil).Once()
	_, err := svc.Describe(context.Background(), frame, "p")
	require.NoError(t, err)

	// The bucket is empty and the next token is a minute away.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Describe(ctx, model.Frame{ID: "frame_0005"}, "p")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		provider string
		wantErr  bool
	}{
		{name: "default is simulated", cfg: Config{}, provider: ProviderSimulated},
		{name: "simulated", cfg: Config{Provider: "Simulated"}, provider: "Simulated"},
		{name: "openai needs a key", cfg: Config{Provider: ProviderOpenAI}, wantErr: true},
		{name: "openai", cfg: Config{Provider: ProviderOpenAI, APIKey: "k"}, provider: ProviderOpenAI},
		{name: "anthropic needs a key", cfg: Config{Provider: ProviderAnthropic}, wantErr: true},
		{name: "claudecode without CLI", cfg: Config{Provider: ProviderClaudeCode, ClaudeCodePath: "/nonexistent/claude"}, wantErr: true},
		{name: "unknown provider", cfg: Config{Provider: "gemini"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := Open(tt.cfg, nil)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer func() { _ = svc.Close() }()
			assert.Equal(t, tt.provider, svc.Provider())
		})
	}
}

func TestService_CloseTwice(t *testing.T) {
	svc := NewService(simulatedBackend{}, Config{}, nil)
	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())
}
