package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sitepipe/internal/config"
	"github.com/ShayCichocki/sitepipe/pkg/models"
)

var (
	flagProduction bool
	flagDebug      bool
	flagDir        string
	flagConfig     string
)

var rootCmd = &cobra.Command{
	Use:   "sitepipe",
	Short: "Static site asset pipeline",
	Long: `sitepipe turns a source tree of HTML partials, stylesheets, scripts,
images, fonts and icons into a build tree ready to deploy.

Tasks are named and composed: "build" cleans the build tree, builds the
SVG sprite, runs every transform in parallel and then serves the result
with live reload while watching the sources for changes.

Set NODE_ENV=production (or pass --production) to minify and compress.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagProduction, "production", false, "Build in production mode (overrides NODE_ENV)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Write a debug log under the state directory")
	rootCmd.PersistentFlags().StringVarP(&flagDir, "dir", "C", ".", "Project directory")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: .sitepipe.yaml in the project or a parent)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(versionCmd)
}

// readConfig reads the configuration and applies the global flags.
func readConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFromPath(flagConfig)
	} else {
		cfg, err = config.Load(flagDir)
	}
	if err != nil {
		return nil, err
	}

	if flagProduction {
		cfg.Mode = string(models.ModeProduction)
	}
	if flagDebug {
		cfg.Debug = true
	}
	return cfg, nil
}

// loadConfig is readConfig plus validation of the source and build
// layout, so layout problems are reported before any task runs.
func loadConfig() (*config.Config, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// reportError prints err, with a hint for configuration errors.
func reportError(err error) {
	red := color.New(color.FgRed, color.Bold)
	var cfgErr *config.ConfigurationError
	fmt.Fprintf(os.Stderr, "%s %v\n", red.Sprint("error:"), err)
	if errors.As(err, &cfgErr) {
		fmt.Fprintf(os.Stderr, "check %q in %s or the SITEPIPE_* environment\n", cfgErr.Key, config.ProjectFileName)
	}
}
