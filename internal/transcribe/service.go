package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/voxscribe/voxscribe/internal/loader"
	"github.com/voxscribe/voxscribe/internal/transcode"
	"github.com/voxscribe/voxscribe/internal/transcript"
	"github.com/voxscribe/voxscribe/internal/whisper"
)

// Service orchestrates one or more transcription requests: normalize
// the audio, give the real engine a chance, fall back to the simulator,
// and shape everything into the canonical outcome. A call through
// Service never raises past its boundary.
type Service struct {
	engine     *loader.Loader[*whisper.Handle]
	transcoder *loader.Loader[*transcode.Transcoder]
	sim        *transcript.Simulator
	logger     *zap.Logger
}

func NewService(
	engine *loader.Loader[*whisper.Handle],
	transcoder *loader.Loader[*transcode.Transcoder],
	sim *transcript.Simulator,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sim == nil {
		sim = transcript.NewSimulator(logger)
	}
	return &Service{
		engine:     engine,
		transcoder: transcoder,
		sim:        sim,
		logger:     logger,
	}
}

// TranscribeOne runs the full pipeline for a single clip. All failures
// are folded into the returned outcome; the engine gets one real
// attempt per call even when its load has not finished (forced
// attempt), and only an error from that attempt degrades the call to
// the simulator.
func (s *Service) TranscribeOne(ctx context.Context, clip transcript.Clip, opts transcript.Options) (outcome transcript.Outcome) {
	outcome.Filename = clip.Name
	outcome.JobID = transcript.NewJobID()

	// The transcription boundary converts panics into failed outcomes;
	// callers rely on always receiving a result shape.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("transcription panicked", zap.String("file", clip.Name), zap.Any("panic", r))
			outcome = transcript.Outcome{
				Filename: clip.Name,
				JobID:    outcome.JobID,
				Err:      fmt.Errorf("transcription failed: %v", r),
			}
		}
	}()

	working := s.normalizeClip(ctx, clip)

	engineReady := s.engine.Loaded()
	if engineReady || !opts.SkipForcedAttempt {
		data, err := s.transcribeWithEngine(ctx, working, opts)
		if err == nil {
			outcome.Success = true
			outcome.Data = data
			outcome.UsedRealModel = true
			return outcome
		}

		if engineReady {
			outcome.Degraded = transcript.DegradeEngineFailed
		} else {
			outcome.Degraded = transcript.DegradeForcedAttempt
		}
		s.logger.Warn("engine transcription failed, falling back to simulation",
			zap.String("file", clip.Name),
			zap.Bool("engine_ready", engineReady),
			zap.Error(err),
		)
	} else {
		outcome.Degraded = transcript.DegradeEngineNotReady
	}

	data, err := s.sim.Transcribe(ctx, working, opts)
	if err != nil {
		outcome.Success = false
		outcome.Err = fmt.Errorf("transcription failed: %w", err)
		return outcome
	}

	outcome.Success = true
	outcome.Data = data
	outcome.UsedRealModel = false
	return outcome
}

// BatchOutcome is the terminal shape of a batch call. On failure,
// FailedFile names the clip that broke the run; later clips are never
// attempted.
type BatchOutcome struct {
	Success    bool
	Outcomes   []transcript.Outcome
	FailedFile string
	Err        error
}

// TranscribeMany processes clips strictly sequentially, aggregating
// per-file progress into one monotonically non-decreasing overall
// fraction that reaches 1.0 only after the last file completes.
func (s *Service) TranscribeMany(ctx context.Context, clips []transcript.Clip, opts transcript.Options) BatchOutcome {
	batch := BatchOutcome{Outcomes: make([]transcript.Outcome, 0, len(clips))}
	total := len(clips)
	if total == 0 {
		batch.Success = true
		return batch
	}

	report := opts.OnProgress
	lastOverall := 0.0

	for i, clip := range clips {
		fileOpts := opts
		if report != nil {
			done := i
			fileOpts.OnProgress = func(fraction float64) {
				overall := (float64(done) + fraction) / float64(total)
				if overall < lastOverall {
					overall = lastOverall
				}
				lastOverall = overall
				report(overall)
			}
		}

		outcome := s.TranscribeOne(ctx, clip, fileOpts)
		if !outcome.Success {
			batch.FailedFile = clip.Name
			batch.Err = fmt.Errorf("failed to transcribe %s: %w", clip.Name, outcome.Err)
			return batch
		}

		batch.Outcomes = append(batch.Outcomes, outcome)
		if report != nil {
			overall := float64(i+1) / float64(total)
			if overall > lastOverall {
				lastOverall = overall
				report(overall)
			}
		}
	}

	batch.Success = true
	return batch
}

// normalizeClip is a best-effort enhancement step. It never blocks on
// a transcoder that has not finished loading and never fails the call.
func (s *Service) normalizeClip(ctx context.Context, clip transcript.Clip) transcript.Clip {
	if s.transcoder == nil || !s.transcoder.Loaded() {
		s.logger.Debug("transcoder not loaded, using original audio", zap.String("file", clip.Name))
		return clip
	}

	transcoder, err := s.transcoder.Get(ctx, nil)
	if err != nil {
		return clip
	}

	normalized, _ := transcoder.Normalize(ctx, clip)
	return normalized
}

func (s *Service) transcribeWithEngine(ctx context.Context, clip transcript.Clip, opts transcript.Options) (transcript.Result, error) {
	// The engine load owns the first half of the fraction and inference
	// the second, so a call that waits on the load still reports one
	// non-decreasing series.
	var loadReport loader.ProgressFunc
	if opts.OnProgress != nil {
		loadReport = func(fraction float64) {
			opts.OnProgress(fraction * 0.5)
		}
	}

	handle, err := s.engine.Get(ctx, loadReport)
	if err != nil {
		return transcript.Result{}, err
	}

	audioPath, cleanup, err := writeClipToTemp(clip)
	if err != nil {
		return transcript.Result{}, err
	}
	defer cleanup()

	if opts.OnProgress != nil {
		opts.OnProgress(0.5)
	}

	out, err := handle.Transcribe(ctx, audioPath, opts.Timestamps, opts.HighAccuracy)
	if err != nil {
		return transcript.Result{}, err
	}

	if opts.OnProgress != nil {
		opts.OnProgress(0.9)
	}

	result := transcript.FromEngineOutput(out, opts)

	if opts.OnProgress != nil {
		opts.OnProgress(1)
	}

	return result, nil
}

func writeClipToTemp(clip transcript.Clip) (string, func(), error) {
	ext := filepath.Ext(clip.Name)
	if ext == "" {
		ext = ".audio"
	}

	f, err := os.CreateTemp("", "voxscribe-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("create temp audio file: %w", err)
	}

	if _, err := f.Write(clip.Data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", nil, fmt.Errorf("write temp audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", nil, fmt.Errorf("close temp audio file: %w", err)
	}

	path := f.Name()
	return path, func() { _ = os.Remove(path) }, nil
}
