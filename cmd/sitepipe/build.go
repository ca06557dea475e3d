package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sitepipe/internal/site"
)

var (
	buildNoServe bool
	buildOpen    bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the site, then serve and watch it",
	Long: `Clean the build tree, build the SVG sprite, run every transform in
parallel, then serve the build tree with live reload and rebuild on
source changes until interrupted.

With --no-serve the command exits after the transforms finish.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildNoServe, "no-serve", false, "Exit after building instead of serving")
	buildCmd.Flags().BoolVar(&buildOpen, "open", false, "Open the served site in a browser")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	target := site.TaskBuild
	if buildNoServe {
		target = site.TaskCompile
	}

	s, err := newSession(cfg, sessionOptions{
		command: "build",
		console: os.Stdout,
		open:    buildOpen,
	})
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := signalContext()
	defer stop()
	return s.run(ctx, target)
}
