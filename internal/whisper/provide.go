package whisper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/voxscribe/voxscribe/internal/download"
	"github.com/voxscribe/voxscribe/internal/loader"
	"github.com/voxscribe/voxscribe/internal/platform"
)

type ProviderConfig struct {
	Model      string
	ModelDir   string
	Language   string
	NoProgress bool
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Provider builds the inference-engine initializer: resolve the model,
// download it when missing, and construct the bundled engine. Network
// and malformed-payload failures are reported as retryable load
// errors; a later attempt may succeed once connectivity returns.
func Provider(cfg ProviderConfig) loader.ProvideFunc[*Handle] {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context, report loader.ProgressFunc) (*Handle, error) {
		modelDir, err := platform.ResolveModelDir(cfg.ModelDir)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(modelDir, 0o755); err != nil {
			return nil, fmt.Errorf("create model directory %s: %w", modelDir, err)
		}

		resolved, err := ResolveModel(cfg.Model, modelDir)
		if err != nil {
			return nil, err
		}

		if resolved.NeedsDownload {
			logger.Info("model not found, downloading", zap.String("model", resolved.Name), zap.String("destination", resolved.Path))
			err := download.DownloadFile(ctx, download.Options{
				URL:            resolved.URL,
				Destination:    resolved.Path,
				ExpectedSHA256: resolved.SHA256,
				ChecksumURL:    resolved.SHA256URL,
				NoProgress:     cfg.NoProgress,
				HTTPClient:     cfg.HTTPClient,
				Logger:         logger,
				Progress:       report,
			})
			if err != nil {
				return nil, classifyDownloadError(resolved.Name, err)
			}
		} else {
			report(1)
		}

		engine, err := NewBundledEngine(logger)
		if err != nil {
			return nil, err
		}

		return &Handle{Engine: engine, ModelPath: resolved.Path, Language: cfg.Language}, nil
	}
}

func classifyDownloadError(modelName string, err error) error {
	if errors.Is(err, download.ErrHTMLPayload) {
		return &loader.LoadError{
			Reason: fmt.Sprintf("malformed response while loading model %q; this often happens on first load and should resolve on retry", modelName),
			Err:    err,
		}
	}

	if isNetworkFailure(err) {
		return &loader.LoadError{
			Reason: fmt.Sprintf("network error loading model %q; check your connection and try again", modelName),
			Err:    err,
		}
	}

	return &loader.LoadError{
		Reason: fmt.Sprintf("download model %q", modelName),
		Err:    err,
	}
}

func isNetworkFailure(err error) bool {
	if err == nil {
		return false
	}

	message := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"timeout",
		"unexpected status code",
		"download request failed",
	}

	for _, pattern := range patterns {
		if strings.Contains(message, pattern) {
			return true
		}
	}

	return false
}
