package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sitepipe/internal/publish"
	"github.com/ShayCichocki/sitepipe/internal/site"
)

var (
	publishDryRun  bool
	publishBuild   bool
	publishExclude []string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload the build tree to S3",
	Long: `Upload every file of the build tree to s3://<bucket>/<prefix>/ with a
content type derived from its extension.

The bucket, prefix and region come from the publish section of the
configuration. AWS credentials are read from the default chain
(environment, shared config, instance role).`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().BoolVar(&publishDryRun, "dry-run", false, "List the object keys without uploading")
	publishCmd.Flags().BoolVar(&publishBuild, "build", false, "Build the site before uploading")
	publishCmd.Flags().StringSliceVar(&publishExclude, "exclude", nil, "Glob patterns, relative to the build tree, to skip")
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	pub, err := publish.New(ctx, cfg.Publish, publish.Options{
		Exclude: publishExclude,
		DryRun:  publishDryRun,
	})
	if err != nil {
		return err
	}

	if publishBuild {
		s, err := newSession(cfg, sessionOptions{command: "build", console: cmd.OutOrStdout()})
		if err != nil {
			return err
		}
		err = s.run(ctx, site.TaskCompile)
		s.close()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}

	res, err := pub.Publish(ctx, cfg.BuildRootAbs())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	dest := "s3://" + cfg.Publish.Bucket + "/" + cfg.Publish.Prefix
	if publishDryRun {
		sort.Strings(res.Keys)
		for _, k := range res.Keys {
			fmt.Fprintf(out, "%s\t%s\n", k, publish.ContentType(k))
		}
		fmt.Fprintf(out, "Would publish %d file(s), %s, to %s\n", len(res.Keys), humanize.Bytes(uint64(res.Bytes)), dest)
		return nil
	}
	fmt.Fprintf(out, "Published %d file(s), %s, to %s\n", len(res.Keys), humanize.Bytes(uint64(res.Bytes)), dest)
	return nil
}
