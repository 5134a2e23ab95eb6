package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voxscribe/voxscribe/internal/platform"
	"github.com/voxscribe/voxscribe/internal/transcript"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	var (
		timestamps   bool
		diarize      bool
		highAccuracy bool
		simulate     bool
		format       string
		outputDir    string
	)

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkEntitledOptions(app, diarize, highAccuracy, format); err != nil {
				return err
			}
			if !transcript.KnownExportFormat(format) {
				return fmt.Errorf("unknown export format %q (known formats: txt, docx, pdf)", format)
			}

			clip, err := loadClip(args[0])
			if err != nil {
				return err
			}

			update, stopBar := startFractionBar(app.progressEnabled(), "Transcribing")
			opts := transcript.Options{
				// Speaker labels render per segment, so diarization
				// implies timestamps.
				Timestamps:         timestamps || diarize,
				SpeakerDiarization: diarize,
				HighAccuracy:       highAccuracy,
				SkipForcedAttempt:  simulate,
				OnProgress:         update,
			}

			app.log().Info("transcribing",
				zap.String("file", clip.Name),
				zap.String("size", transcript.FormatFileSize(int64(clip.Size()))),
				zap.String("model", app.cfg.Model),
			)

			outcome := app.transcribeOne(cmd.Context(), clip, opts)
			stopBar()
			if !outcome.Success {
				return errors.New(outcome.ErrorMessage())
			}

			warnDegraded(app, outcome)

			if outputDir != "" || format != transcript.FormatTXT {
				dir, err := platform.ResolveExportDir(outputDir)
				if err != nil {
					return err
				}
				path, err := transcript.WriteExport(outcome.Data, dir, transcript.BaseName(clip.Name), format)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			}

			printResult(cmd, outcome.Data, opts)
			return nil
		},
	}

	bindLoggingFlags(cmd, app)
	bindProgressFlag(cmd, app)
	bindConfigFlag(cmd, app)
	bindModelFlags(cmd, app)
	bindLanguageFlag(cmd, app)
	bindProFlag(cmd, app)
	cmd.Flags().BoolVar(&timestamps, "timestamps", false, "Include segment timestamps in the output")
	cmd.Flags().BoolVar(&diarize, "diarize", false, "Label segments with speakers (pro)")
	cmd.Flags().BoolVar(&highAccuracy, "high-accuracy", false, "Use the slower high-accuracy decoding mode (pro)")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "Fall back to simulation instead of waiting on an engine that is still loading")
	cmd.Flags().StringVar(&format, "format", transcript.FormatTXT, "Export format: txt|docx|pdf (docx and pdf are pro)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Write the transcript to this directory instead of stdout")
	return cmd
}

func checkEntitledOptions(app *appState, diarize, highAccuracy bool, format string) error {
	if diarize {
		if err := app.requirePro("speaker diarization"); err != nil {
			return err
		}
	}
	if highAccuracy {
		if err := app.requirePro("high-accuracy mode"); err != nil {
			return err
		}
	}
	if normalized := strings.ToLower(strings.TrimSpace(format)); normalized != transcript.FormatTXT {
		if err := app.requirePro(fmt.Sprintf("%s export", normalized)); err != nil {
			return err
		}
	}
	return nil
}

func warnDegraded(app *appState, outcome transcript.Outcome) {
	if outcome.UsedRealModel || outcome.Degraded == transcript.DegradeNone {
		return
	}
	app.log().Warn("transcription is simulated",
		zap.String("file", outcome.Filename),
		zap.String("reason", string(outcome.Degraded)),
	)
}

func printResult(cmd *cobra.Command, result transcript.Result, opts transcript.Options) {
	out := cmd.OutOrStdout()

	if !opts.Timestamps || len(result.Segments) == 0 {
		fmt.Fprintln(out, result.Text)
		return
	}

	speakerOf := map[int]int{}
	if opts.SpeakerDiarization {
		for _, speaker := range result.Speakers {
			for _, segment := range speaker.Segments {
				speakerOf[segment] = speaker.ID
			}
		}
	}

	for _, segment := range result.Segments {
		span := fmt.Sprintf("[%s - %s]", transcript.FormatTime(segment.Start), transcript.FormatTime(segment.End))
		if opts.SpeakerDiarization {
			fmt.Fprintf(out, "%s Speaker %d: %s\n", span, speakerOf[segment.ID]+1, segment.Text)
		} else {
			fmt.Fprintf(out, "%s %s\n", span, segment.Text)
		}
	}
}
