package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"

	"github.com/voxscribe/voxscribe/internal/app"
	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/logging"
	"github.com/voxscribe/voxscribe/internal/transcribe"
	"github.com/voxscribe/voxscribe/internal/transcript"
	"github.com/voxscribe/voxscribe/internal/version"
)

type appState struct {
	verbose    bool
	jsonLogs   bool
	noProgress bool
	configPath string
	model      string
	modelDir   string
	language   string
	pro        bool

	cfg    config.Config
	logger *zap.Logger
	out    io.Writer

	runtime *app.App

	transcribeOneFn  func(ctx context.Context, clip transcript.Clip, opts transcript.Options) transcript.Outcome
	transcribeManyFn func(ctx context.Context, clips []transcript.Clip, opts transcript.Options) transcribe.BatchOutcome
}

func NewRootCmd() *cobra.Command {
	app := &appState{
		out: os.Stdout,
	}

	cmd := &cobra.Command{
		Use:           "voxscribe",
		Short:         "Transcribe audio files with a local whisper engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger

			cfg, err := config.Load(app.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("model") {
				cfg.Model = app.model
			}
			if cmd.Flags().Changed("model-dir") {
				cfg.ModelDir = app.modelDir
			}
			if cmd.Flags().Changed("language") {
				cfg.Language = app.language
			}
			if cmd.Flags().Changed("pro") {
				cfg.Pro = app.pro
			}
			app.cfg = cfg
			return nil
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newBatchCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newStatusCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.Flags().BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
}

func bindProgressFlag(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindConfigFlag(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.configPath, "config", app.configPath, "Path to a config file")
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.model, "model", app.model, "Model name or model file path")
	cmd.Flags().StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory where models are stored")
}

func bindLanguageFlag(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.language, "language", app.language, "Language code (en|de|...) for transcription")
}

func bindProFlag(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.pro, "pro", app.pro, "Enable pro features for this invocation")
}

// requirePro gates entitled features. The check happens before any
// audio is read so a denied request fails fast.
func (a *appState) requirePro(feature string) error {
	if a.cfg.Pro {
		return nil
	}
	return fmt.Errorf("%s requires a pro entitlement; set pro: true in the config file or VOXSCRIBE_PRO=1", feature)
}

func (a *appState) service() *transcribe.Service {
	return a.app().Service
}

func (a *appState) app() *app.App {
	if a.runtime == nil {
		a.runtime = app.New(a.cfg, a.log(), app.Options{NoProgress: a.noProgress})
	}
	return a.runtime
}

func (a *appState) transcribeOne(ctx context.Context, clip transcript.Clip, opts transcript.Options) transcript.Outcome {
	if a.transcribeOneFn != nil {
		return a.transcribeOneFn(ctx, clip, opts)
	}
	a.warmRuntime(ctx)
	return a.service().TranscribeOne(ctx, clip, opts)
}

func (a *appState) transcribeMany(ctx context.Context, clips []transcript.Clip, opts transcript.Options) transcribe.BatchOutcome {
	if a.transcribeManyFn != nil {
		return a.transcribeManyFn(ctx, clips, opts)
	}
	a.warmRuntime(ctx)
	return a.service().TranscribeMany(ctx, clips, opts)
}

// warmRuntime kicks off the background loads and waits for the cheap
// transcoder lookup, so audio normalization is available from the
// first clip rather than only after the engine finishes loading.
func (a *appState) warmRuntime(ctx context.Context) {
	runtime := a.app()
	runtime.Start(ctx)
	if _, err := runtime.Transcoder.Get(ctx, nil); err != nil {
		a.log().Debug("transcoder unavailable, audio will pass through unconverted", zap.Error(err))
	}
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) outWriter() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}

// loadClip reads one audio file and validates its declared type
// against the upload allow-list.
func loadClip(path string) (transcript.Clip, error) {
	path = filepath.Clean(path)

	name := filepath.Base(path)
	mime := transcript.MIMEForFilename(name)
	clip := transcript.Clip{Name: name, MIME: mime}
	if !transcript.IsAudioClip(clip) {
		return transcript.Clip{}, fmt.Errorf("%s is not a supported audio file; supported extensions: mp3, wav, webm, ogg, m4a, mp4, aac, flac", name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return transcript.Clip{}, fmt.Errorf("read audio file: %w", err)
	}
	clip.Data = data
	return clip, nil
}
