package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voxscribe/voxscribe/internal/platform"
	"github.com/voxscribe/voxscribe/internal/transcode"
	"github.com/voxscribe/voxscribe/internal/transcript"
	"github.com/voxscribe/voxscribe/internal/whisper"
)

func newStatusCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report model, engine and transcoder availability",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Model:      %s\n", app.cfg.Model)
			modelDir, err := platform.ResolveModelDir(app.cfg.ModelDir)
			if err != nil {
				return err
			}
			resolved, err := whisper.ResolveModel(app.cfg.Model, modelDir)
			if err != nil {
				return err
			}
			if resolved.NeedsDownload {
				fmt.Fprintf(out, "Model file: missing (run `voxscribe setup` to download to %s)\n", resolved.Path)
			} else {
				size := "unknown size"
				if info, err := os.Stat(resolved.Path); err == nil {
					size = transcript.FormatFileSize(info.Size())
				}
				fmt.Fprintf(out, "Model file: %s (%s)\n", resolved.Path, size)
			}

			self, _ := os.Executable()
			if enginePath, err := whisper.ResolveBundledEnginePath(self); err != nil {
				fmt.Fprintln(out, "Engine:     not found; transcription will be simulated")
			} else {
				fmt.Fprintf(out, "Engine:     %s\n", enginePath)
			}

			if ffmpegPath, err := transcode.Locate(); err != nil {
				fmt.Fprintln(out, "Transcoder: ffmpeg not found; audio passes through unconverted")
			} else {
				fmt.Fprintf(out, "Transcoder: %s\n", ffmpegPath)
			}

			if app.cfg.Pro {
				fmt.Fprintln(out, "Tier:       pro")
			} else {
				fmt.Fprintln(out, "Tier:       free")
			}
			return nil
		},
	}

	bindLoggingFlags(cmd, app)
	bindConfigFlag(cmd, app)
	bindModelFlags(cmd, app)
	bindProFlag(cmd, app)

	return cmd
}
