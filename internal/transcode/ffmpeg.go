package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voxscribe/voxscribe/internal/loader"
	"github.com/voxscribe/voxscribe/internal/transcript"
)

// Conversion targets are fixed constants of the transcription
// boundary: the engine expects mono 16kHz 16-bit PCM.
const (
	targetSampleRate = 16000
	targetChannels   = 1
	targetBitDepth   = 16
)

// Transcoder converts arbitrary audio into the normalized WAV form via
// an ffmpeg subprocess.
type Transcoder struct {
	Executable string
	Logger     *zap.Logger
}

// Provider locates ffmpeg for the loader. A missing binary is a
// retryable load failure: the tool may be installed later.
func Provider(logger *zap.Logger) loader.ProvideFunc[*Transcoder] {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context, report loader.ProgressFunc) (*Transcoder, error) {
		path, err := Locate()
		if err != nil {
			return nil, &loader.LoadError{Reason: "ffmpeg not found on PATH; audio will be transcribed unconverted", Err: err}
		}

		report(1)
		return &Transcoder{Executable: path, Logger: logger}, nil
	}
}

// Locate finds the ffmpeg executable, honoring the
// VOXSCRIBE_FFMPEG_PATH override.
func Locate() (string, error) {
	if override := strings.TrimSpace(os.Getenv("VOXSCRIBE_FFMPEG_PATH")); override != "" {
		return override, nil
	}
	return exec.LookPath("ffmpeg")
}

// Normalize converts clip into mono 16kHz 16-bit PCM WAV, preserving
// the base filename with a .wav extension. Conversion is best-effort:
// any failure logs and returns the original clip unchanged. The second
// return value reports whether conversion happened.
func (t *Transcoder) Normalize(ctx context.Context, clip transcript.Clip) (transcript.Clip, bool) {
	if strings.EqualFold(filepath.Ext(clip.Name), ".wav") {
		if format, err := ProbeWAV(clip.Data); err == nil && format.IsNormalized() {
			return clip, false
		}
	}

	converted, err := t.convert(ctx, clip)
	if err != nil {
		t.logger().Warn("audio conversion failed, using original file",
			zap.String("file", clip.Name),
			zap.Error(err),
		)
		return clip, false
	}

	t.logger().Debug("converted audio for transcription",
		zap.String("from", clip.Name),
		zap.String("to", converted.Name),
	)
	return converted, true
}

func (t *Transcoder) convert(ctx context.Context, clip transcript.Clip) (transcript.Clip, error) {
	workDir, err := os.MkdirTemp("", "voxscribe-transcode-")
	if err != nil {
		return transcript.Clip{}, fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, fmt.Sprintf("in-%d%s", time.Now().UnixNano(), filepath.Ext(clip.Name)))
	if err := os.WriteFile(inputPath, clip.Data, 0o600); err != nil {
		return transcript.Clip{}, fmt.Errorf("write input file: %w", err)
	}

	outputPath := filepath.Join(workDir, "out.wav")
	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", inputPath,
		"-ac", strconv.Itoa(targetChannels),
		"-ar", strconv.Itoa(targetSampleRate),
		"-c:a", "pcm_s16le",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, t.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return transcript.Clip{}, fmt.Errorf("ffmpeg: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return transcript.Clip{}, fmt.Errorf("read converted file: %w", err)
	}

	return transcript.Clip{
		Name: transcript.BaseName(clip.Name) + ".wav",
		MIME: "audio/wav",
		Data: data,
	}, nil
}

func (t *Transcoder) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}
