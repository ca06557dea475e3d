package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/sitepipe/internal/config"
)

var configPaths bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the configuration sitepipe would build with, after merging
defaults, the user config, the project's .sitepipe.yaml, SITEPIPE_*
environment variables and command-line flags.

User config is read from ~/.config/sitepipe/config.yaml
Project-specific overrides can be placed in .sitepipe.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configPaths, "paths", false, "Print the config files in use instead")
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if configPaths {
		displayConfigPaths(out)
		return nil
	}

	cfg, err := readConfig()
	if err != nil {
		return err
	}
	return displayConfig(out, cfg)
}

// displayConfig prints cfg as YAML, followed by any layout problem.
func displayConfig(w io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(w, "# invalid: %v\n", err)
	}
	return nil
}

func displayConfigPaths(w io.Writer) {
	fmt.Fprintf(w, "user:    %s\n", config.GetUserConfigPath())
	project := flagConfig
	if project == "" {
		project = config.GetProjectConfigPath(flagDir)
	}
	if project == "" {
		project = "(none)"
	}
	fmt.Fprintf(w, "project: %s\n", project)
}
