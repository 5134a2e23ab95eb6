// Package app wires the loaders, the simulator and the orchestrator
// into one runtime that the CLI commands and the status server share.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/loader"
	"github.com/voxscribe/voxscribe/internal/transcode"
	"github.com/voxscribe/voxscribe/internal/transcribe"
	"github.com/voxscribe/voxscribe/internal/transcript"
	"github.com/voxscribe/voxscribe/internal/whisper"
)

// Options carries optional seams, mostly for tests. Zero values mean
// "build the real thing".
type Options struct {
	EngineProvider     loader.ProvideFunc[*whisper.Handle]
	TranscoderProvider loader.ProvideFunc[*transcode.Transcoder]
	HTTPClient         *http.Client
	NoProgress         bool
}

// App owns the lazily-loaded resources and the transcription service
// built on top of them.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	Engine     *loader.Loader[*whisper.Handle]
	Transcoder *loader.Loader[*transcode.Transcoder]
	Service    *transcribe.Service
}

func New(cfg config.Config, logger *zap.Logger, opts Options) *App {
	if logger == nil {
		logger = zap.NewNop()
	}

	engineProvide := opts.EngineProvider
	if engineProvide == nil {
		engineProvide = whisper.Provider(whisper.ProviderConfig{
			Model:      cfg.Model,
			ModelDir:   cfg.ModelDir,
			Language:   cfg.Language,
			NoProgress: opts.NoProgress,
			HTTPClient: opts.HTTPClient,
			Logger:     logger,
		})
	}

	transcoderProvide := opts.TranscoderProvider
	if transcoderProvide == nil {
		transcoderProvide = transcode.Provider(logger)
	}

	engine := loader.New("engine", engineProvide, logger)
	transcoder := loader.New("transcoder", transcoderProvide, logger)

	return &App{
		cfg:        cfg,
		logger:     logger,
		Engine:     engine,
		Transcoder: transcoder,
		Service:    transcribe.NewService(engine, transcoder, transcript.NewSimulator(logger), logger),
	}
}

// Start kicks off both resource loads in the background and returns
// immediately. The engine load is retried per the configured policy;
// the transcoder gets a single attempt since a missing ffmpeg does not
// fix itself.
func (a *App) Start(ctx context.Context) {
	go a.warmEngine(ctx)
	go func() {
		if _, err := a.Transcoder.Get(ctx, nil); err != nil && !canceled(err) {
			a.logger.Warn("transcoder unavailable, audio will pass through unconverted", zap.Error(err))
		}
	}()
}

func (a *App) warmEngine(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		_, err := a.Engine.Get(ctx, nil)
		if err == nil {
			a.logger.Info("inference engine ready", zap.String("model", a.cfg.Model))
			return
		}

		// A canceled context means the process is shutting down, not
		// that the load failed.
		if canceled(err) {
			return
		}
		if !loader.Retryable(err) {
			a.logger.Error("engine load failed permanently", zap.Error(err))
			return
		}
		if max := a.cfg.Retry.MaxAttempts; max > 0 && attempt >= max {
			a.logger.Error("engine load failed, retry budget exhausted",
				zap.Int("attempts", attempt), zap.Error(err))
			return
		}

		a.logger.Warn("engine load failed, will retry",
			zap.Int("attempt", attempt),
			zap.Duration("delay", a.cfg.Retry.Delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.cfg.Retry.Delay):
		}
	}
}

func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ComponentStatus is a point-in-time snapshot of one loader.
type ComponentStatus struct {
	Ready    bool    `json:"ready"`
	Loading  bool    `json:"loading"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

// Status reports both resources. Safe to call from any goroutine.
type Status struct {
	Engine     ComponentStatus `json:"engine"`
	Transcoder ComponentStatus `json:"transcoder"`
}

func (a *App) Status() Status {
	return Status{
		Engine:     componentStatus(a.Engine.Status()),
		Transcoder: componentStatus(a.Transcoder.Status()),
	}
}

func componentStatus(s loader.Status) ComponentStatus {
	cs := ComponentStatus{
		Ready:    s.Ready,
		Loading:  s.Loading,
		Progress: s.Progress,
	}
	if s.Err != nil {
		cs.Error = s.Err.Error()
	}
	return cs
}
