package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voxscribe/voxscribe/internal/platform"
	"github.com/voxscribe/voxscribe/internal/transcript"
)

func newBatchCmd(app *appState) *cobra.Command {
	var (
		timestamps   bool
		diarize      bool
		highAccuracy bool
		simulate     bool
		format       string
		outputDir    string
	)

	cmd := &cobra.Command{
		Use:   "batch <audio-files...>",
		Short: "Transcribe multiple audio files in order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				if err := app.requirePro("batch transcription"); err != nil {
					return err
				}
			}
			if err := checkEntitledOptions(app, diarize, highAccuracy, format); err != nil {
				return err
			}
			if !transcript.KnownExportFormat(format) {
				return fmt.Errorf("unknown export format %q (known formats: txt, docx, pdf)", format)
			}

			clips := make([]transcript.Clip, 0, len(args))
			for _, arg := range args {
				clip, err := loadClip(arg)
				if err != nil {
					return err
				}
				clips = append(clips, clip)
			}

			exportDir, err := platform.ResolveExportDir(outputDir)
			if err != nil {
				return err
			}

			update, stopBar := startFractionBar(app.progressEnabled(), fmt.Sprintf("Transcribing %d files", len(clips)))
			opts := transcript.Options{
				Timestamps:         timestamps || diarize,
				SpeakerDiarization: diarize,
				HighAccuracy:       highAccuracy,
				SkipForcedAttempt:  simulate,
				OnProgress:         update,
			}

			batch := app.transcribeMany(cmd.Context(), clips, opts)
			stopBar()
			if !batch.Success {
				return batch.Err
			}

			for _, outcome := range batch.Outcomes {
				warnDegraded(app, outcome)
				path, err := transcript.WriteExport(outcome.Data, exportDir, transcript.BaseName(outcome.Filename), format)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", outcome.Filename, path)
			}

			app.log().Info("batch finished", zap.Int("files", len(batch.Outcomes)))
			return nil
		},
	}

	bindLoggingFlags(cmd, app)
	bindProgressFlag(cmd, app)
	bindConfigFlag(cmd, app)
	bindModelFlags(cmd, app)
	bindLanguageFlag(cmd, app)
	bindProFlag(cmd, app)
	cmd.Flags().BoolVar(&timestamps, "timestamps", false, "Include segment timestamps in the exports")
	cmd.Flags().BoolVar(&diarize, "diarize", false, "Label segments with speakers (pro)")
	cmd.Flags().BoolVar(&highAccuracy, "high-accuracy", false, "Use the slower high-accuracy decoding mode (pro)")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "Fall back to simulation instead of waiting on an engine that is still loading")
	cmd.Flags().StringVar(&format, "format", transcript.FormatTXT, "Export format: txt|docx|pdf (docx and pdf are pro)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for exported transcripts")
	return cmd
}
