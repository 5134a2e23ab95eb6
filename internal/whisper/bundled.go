package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultLanguage = "en"
	wideBeamSize    = 5
)

type BundledEngine struct {
	Executable string
	Logger     *zap.Logger
}

func NewBundledEngine(logger *zap.Logger) (*BundledEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if override := strings.TrimSpace(os.Getenv("VOXSCRIBE_WHISPER_PATH")); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("VOXSCRIBE_WHISPER_PATH is not executable: %w", err)
		}
		return &BundledEngine{Executable: override, Logger: logger}, nil
	}

	selfExe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve voxscribe executable path: %w", err)
	}

	whisperExe, err := ResolveBundledEnginePath(selfExe)
	if err != nil {
		return nil, err
	}

	return &BundledEngine{Executable: whisperExe, Logger: logger}, nil
}

func ResolveBundledEnginePath(selfExecutable string) (string, error) {
	for _, candidate := range EnginePathCandidates(selfExecutable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("bundled whisper engine not found near %s; reinstall VoxScribe from an official release, expected at ../libexec/whisper/%s", selfExecutable, engineBinaryName())
}

func EnginePathCandidates(selfExecutable string) []string {
	binDir := filepath.Dir(selfExecutable)
	engineName := engineBinaryName()
	hostTarget := fmt.Sprintf("%s_%s", runtime.GOOS, normalizeArch(runtime.GOARCH))

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", engineName),
		filepath.Join(binDir, "libexec", "whisper", engineName),
		filepath.Join(binDir, "packaging", "whisper", hostTarget, engineName),
		filepath.Join(binDir, engineName),
	}
}

func (b *BundledEngine) Transcribe(ctx context.Context, req Request) (Output, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return Output{}, errors.New("audio path is required")
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		return Output{}, errors.New("model path is required")
	}

	if err := ensureExecutable(b.Executable); err != nil {
		return Output{}, fmt.Errorf("bundled whisper engine missing or not executable: %w", err)
	}

	outBase := filepath.Join(os.TempDir(), fmt.Sprintf("voxscribe-%d", time.Now().UnixNano()))

	args := []string{"-m", req.ModelPath, "-f", req.AudioPath, "-of", outBase}
	if req.Timestamps {
		args = append(args, "-oj")
	} else {
		args = append(args, "-nt", "-otxt")
	}

	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		lang = defaultLanguage
	}
	args = append(args, "-l", lang)

	if req.HighAccuracy {
		args = append(args, "-bs", fmt.Sprint(wideBeamSize))
	} else {
		args = append(args, "-bs", "1")
	}

	cmd := exec.CommandContext(ctx, b.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = ioDiscard{}
	cmd.Stderr = &stderr

	b.Logger.Debug("running whisper engine", zap.String("engine", b.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		if isMissingSharedLibraryError(errText) {
			return Output{}, fmt.Errorf("bundled whisper engine at %s is missing required shared libraries (%s); reinstall VoxScribe from an official release", b.Executable, errText)
		}
		if isIllegalInstructionError(errText) || isIllegalInstructionError(err.Error()) {
			return Output{}, fmt.Errorf("bundled whisper engine crashed with an illegal CPU instruction; " +
				"set VOXSCRIBE_WHISPER_PATH to a whisper-cli binary built for your CPU")
		}
		return Output{}, fmt.Errorf("whisper transcribe failed: %w (%s)", err, errText)
	}

	if req.Timestamps {
		return readJSONOutput(outBase + ".json")
	}
	return readTextOutput(outBase + ".txt")
}

func readTextOutput(path string) (Output, error) {
	defer os.Remove(path)
	content, err := os.ReadFile(path)
	if err != nil {
		return Output{}, fmt.Errorf("read whisper output: %w", err)
	}
	return Output{Text: strings.TrimSpace(string(content))}, nil
}

// readJSONOutput parses the whisper-cli JSON report, which carries
// per-segment millisecond offsets.
func readJSONOutput(path string) (Output, error) {
	defer os.Remove(path)
	content, err := os.ReadFile(path)
	if err != nil {
		return Output{}, fmt.Errorf("read whisper output: %w", err)
	}
	return ParseJSONOutput(content)
}

type jsonReport struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func ParseJSONOutput(content []byte) (Output, error) {
	var report jsonReport
	if err := json.Unmarshal(content, &report); err != nil {
		return Output{}, fmt.Errorf("parse whisper json output: %w", err)
	}

	out := Output{Chunks: make([]Chunk, 0, len(report.Transcription))}
	var text strings.Builder
	for _, seg := range report.Transcription {
		segText := strings.TrimSpace(seg.Text)
		if segText == "" {
			continue
		}
		out.Chunks = append(out.Chunks, Chunk{
			Start: float64(seg.Offsets.From) / 1000,
			End:   float64(seg.Offsets.To) / 1000,
			Text:  segText,
		})
		if text.Len() > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(segText)
	}

	out.Text = text.String()
	return out, nil
}

type ioDiscard struct{}

func (ioDiscard) Write(p []byte) (int, error) {
	return len(p), nil
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	patterns := []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	}

	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}

	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}

func normalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}
