package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sitepipe/internal/orchestrator"
	"github.com/ShayCichocki/sitepipe/internal/state"
	"github.com/ShayCichocki/sitepipe/pkg/models"
)

var (
	statusLimit int
	statusPrune time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show recent builds",
	Long: `Display the build history recorded in the project's state directory.

Without arguments, lists the most recent runs. With a run ID (or a unique
prefix of one), lists the tasks that run executed.

--prune deletes runs started longer ago than the given age, e.g. --prune 720h.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Number of runs to show")
	statusCmd.Flags().DurationVar(&statusPrune, "prune", 0, "Delete runs started longer ago than this first")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	dbPath := cfg.StateDBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "No builds recorded yet. Run 'sitepipe build' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// Ensure schema is up to date
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if statusPrune > 0 {
		n, err := db.PurgeOldRuns(statusPrune)
		if err != nil {
			return fmt.Errorf("prune runs: %w", err)
		}
		fmt.Fprintf(out, "Pruned %d run(s) older than %s\n", n, statusPrune)
	}

	if len(args) == 1 {
		run, err := findRun(db, args[0])
		if err != nil {
			return err
		}
		tasks, err := db.ListTaskRuns(run.ID)
		if err != nil {
			return fmt.Errorf("list task runs: %w", err)
		}
		displayRun(out, run, tasks)
		return nil
	}

	runs, err := db.ListRuns(statusLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No builds recorded yet. Run 'sitepipe build' to start.")
		return nil
	}
	displayRuns(out, runs, time.Now())
	return nil
}

// findRun resolves an exact run ID or a unique prefix among recent runs.
func findRun(db *state.DB, id string) (*state.RunWithTasks, error) {
	run, err := db.GetRun(id)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if run != nil {
		return run, nil
	}

	runs, err := db.ListRuns(100)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var matches []state.RunWithTasks
	for _, r := range runs {
		if strings.HasPrefix(r.ID, id) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no run matches %q", id)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("run prefix %q is ambiguous (%d matches)", id, len(matches))
	}
}

func displayRuns(w io.Writer, runs []state.RunWithTasks, now time.Time) {
	fmt.Fprintf(w, "%-8s  %-6s  %-11s  %-11s  %-16s  %-9s  %s\n",
		"RUN", "CMD", "MODE", "STATUS", "STARTED", "TOOK", "TASKS")
	for _, r := range runs {
		fmt.Fprintf(w, "%-8s  %-6s  %-11s  %s  %-16s  %-9s  %s\n",
			shortID(r.ID),
			r.Command,
			r.Mode,
			colorRunStatus(r.Status),
			humanize.RelTime(r.StartedAt, now, "ago", "from now"),
			runDuration(r.Run, now),
			strings.Join(r.Tasks, ","))
		if r.Error != "" {
			fmt.Fprintf(w, "          %s\n", color.RedString(firstLine(r.Error)))
		}
	}
}

func displayRun(w io.Writer, r *state.RunWithTasks, tasks []models.TaskRecord) {
	fmt.Fprintf(w, "Run %s\n", r.ID)
	fmt.Fprintf(w, "  Command: %s %s\n", r.Command, strings.Join(r.Tasks, " "))
	fmt.Fprintf(w, "  Mode: %s\n", r.Mode)
	fmt.Fprintf(w, "  Status: %s\n", statusColor(r.Status).Sprint(r.Status))
	fmt.Fprintf(w, "  Started: %s\n", r.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  Took: %s\n", runDuration(r.Run, time.Now()))
	if r.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", r.Error)
	}

	if len(tasks) == 0 {
		fmt.Fprintln(w, "\nNo tasks recorded.")
		return
	}
	fmt.Fprintf(w, "\nTasks (%d):\n", len(tasks))
	for _, t := range tasks {
		mark := color.GreenString("✓")
		if t.Status == models.TaskStatusFailed {
			mark = color.RedString("✗")
		}
		fmt.Fprintf(w, "  %s %-18s %s\n", mark, t.Task, orchestrator.FormatDuration(t.Duration))
		if t.Error != "" {
			fmt.Fprintf(w, "      %s\n", color.RedString(firstLine(t.Error)))
		}
	}
}

// colorRunStatus pads before coloring so columns stay aligned.
func colorRunStatus(s models.RunStatus) string {
	return statusColor(s).Sprintf("%-11s", s)
}

func statusColor(s models.RunStatus) *color.Color {
	switch s {
	case models.RunSucceeded:
		return color.New(color.FgGreen)
	case models.RunFailed:
		return color.New(color.FgRed)
	case models.RunInterrupted:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

func runDuration(r models.Run, now time.Time) string {
	if r.FinishedAt == nil {
		return orchestrator.FormatDuration(now.Sub(r.StartedAt)) + "+"
	}
	return orchestrator.FormatDuration(r.FinishedAt.Sub(r.StartedAt))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
