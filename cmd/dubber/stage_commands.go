package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Vetacher/zoom-translator/internal/segment"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <video-file>",
		Short: "Extract a mono PCM audio track from a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			extractor, err := ctx.newExtractor()
			if err != nil {
				return err
			}
			dest := segment.AudioPath(args[0])
			if err := extractor.ExtractAudio(cmd.Context(), args[0], dest); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dest)
			return nil
		},
	}
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe and diarize an extracted audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := ctx.newTranscriber()
			if err != nil {
				return err
			}
			outPath, err := stage.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}
}

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "translate <transcription-file>",
		Short: "Translate a transcription with glossary-constrained terminology",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := ctx.newTranslator()
			if err != nil {
				return err
			}
			outPath, err := stage.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}
}

func newReviewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "review <translation-file>",
		Short: "Run the cross-segment consistency review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := ctx.newReviewer()
			if err != nil {
				return err
			}
			outPath, err := stage.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}
}

func newSynthesizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "synthesize <reviewed-file>",
		Short: "Synthesize speech and assemble the dubbed audio track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := ctx.newAssembler()
			if err != nil {
				return err
			}
			result, err := stage.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.TrackPath)
			fmt.Fprintf(out, "placed %d segments (%d dropped), %.1fs track, %.1fs silence, max drift %dms\n",
				result.Placed, result.Dropped,
				float64(result.TrackDurationMS)/1000,
				float64(result.SilenceMS)/1000,
				result.MaxDriftMS,
			)
			return nil
		},
	}
}

func newPipelineCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline <input-file>",
		Short: "Run every stage from recording to dubbed track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ledger, err := ctx.newPipeline()
			if err != nil {
				return err
			}
			if ledger != nil {
				defer ledger.Close()
			}
			result, err := p.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s complete\n", result.RunID)
			fmt.Fprintln(out, result.TrackPath)
			return nil
		},
	}
}
