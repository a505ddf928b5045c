package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scribed/internal/config"
)

func newConfigCommand(cctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(cctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := os.WriteFile(target, []byte(config.SampleConfig()), 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPath, "path", "", "Target path for the sample config")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing config file")

	return cmd
}

func newConfigShowCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Print the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(*cctx.configFlag)
			if err != nil {
				return err
			}
			if exists {
				fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "# no config file at %s, showing defaults\n", path)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "staging_dir = %q\n", cfg.Paths.StagingDir)
			fmt.Fprintf(cmd.OutOrStdout(), "inbox_dir = %q\n", cfg.Paths.InboxDir)
			fmt.Fprintf(cmd.OutOrStdout(), "log_dir = %q\n", cfg.Paths.LogDir)
			fmt.Fprintf(cmd.OutOrStdout(), "database_dir = %q\n", cfg.Paths.DatabaseDir)
			fmt.Fprintf(cmd.OutOrStdout(), "default_provider = %q\n", cfg.Engine.DefaultProvider)
			fmt.Fprintf(cmd.OutOrStdout(), "default_language = %q\n", cfg.Engine.DefaultLanguage)
			fmt.Fprintf(cmd.OutOrStdout(), "max_active_jobs = %d\n", cfg.Engine.MaxActiveJobs)
			fmt.Fprintf(cmd.OutOrStdout(), "chunk_duration_seconds = %d\n", cfg.Segmenter.ChunkDurationSeconds)
			return nil
		},
	}
	return cmd
}
