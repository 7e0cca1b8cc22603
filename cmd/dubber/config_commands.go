package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Vetacher/zoom-translator/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigShowCommand())
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}
			if err := config.WriteSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote sample configuration to %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVar(&targetPath, "path", "", "Destination for the sample configuration")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolvedPath, exists, err := config.Load(strings.TrimSpace(configPath))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !exists {
				fmt.Fprintf(out, "no configuration file found (looked at %s); defaults are valid\n", resolvedPath)
				return nil
			}
			fmt.Fprintf(out, "%s is valid\n", resolvedPath)
			fmt.Fprintf(out, "work directory: %s\n", cfg.Paths.WorkDir)
			fmt.Fprintf(out, "source language: %s, target language: %s\n",
				cfg.Speech.SourceLanguage, cfg.TTS.TargetLanguage)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "path", "", "Configuration file to validate")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Show the effective configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolvedPath, exists, err := config.Load(strings.TrimSpace(configPath))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "configuration: %s\n", resolvedPath)
			} else {
				fmt.Fprintf(out, "configuration: defaults (no file at %s)\n", resolvedPath)
			}
			rows := [][]string{
				{"work directory", cfg.Paths.WorkDir},
				{"log directory", cfg.Paths.LogDir},
				{"glossary", cfg.Paths.GlossaryPath},
				{"speech key", secretPresence(cfg.Speech.Key)},
				{"speech region", cfg.Speech.Region},
				{"source language", cfg.Speech.SourceLanguage},
				{"openai key", secretPresence(cfg.OpenAI.Key)},
				{"openai endpoint", cfg.OpenAI.Endpoint},
				{"openai deployment", cfg.OpenAI.Deployment},
				{"target language", cfg.TTS.TargetLanguage},
				{"male voice", cfg.TTS.MaleVoice},
				{"female voice", cfg.TTS.FemaleVoice},
				{"speaking rate", cfg.TTS.Rate},
				{"sample rate", strconv.Itoa(cfg.Pipeline.SampleRate)},
				{"review batch size", strconv.Itoa(cfg.Pipeline.ReviewBatchSize)},
				{"drift warn ms", strconv.FormatInt(cfg.Pipeline.DriftWarnMS, 10)},
				{"ffmpeg binary", cfg.Pipeline.FFmpegBinary},
			}
			fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "path", "", "Configuration file to show")
	return cmd
}

// secretPresence keeps credentials out of terminal output.
func secretPresence(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(unset)"
	}
	return "(set)"
}
