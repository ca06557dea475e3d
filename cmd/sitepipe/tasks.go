package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/sitepipe/internal/graph"
	"github.com/ShayCichocki/sitepipe/internal/orchestrator"
	"github.com/ShayCichocki/sitepipe/internal/site"
	"github.com/ShayCichocki/sitepipe/internal/task"
)

var (
	tasksYAML  bool
	tasksOrder bool
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List registered tasks",
	Long: `Print the registered tasks as a tree starting from the tasks nothing
else runs, with descriptions.

--yaml prints every task with its kind, children and dependents.
--order prints the names in dependency order.`,
	Args: cobra.NoArgs,
	RunE: runListTasks,
}

func init() {
	tasksCmd.Flags().BoolVar(&tasksYAML, "yaml", false, "Print tasks as YAML")
	tasksCmd.Flags().BoolVar(&tasksOrder, "order", false, "Print task names in dependency order")
}

// taskInfo is the YAML form of one registered task.
type taskInfo struct {
	Name         string   `yaml:"name"`
	Kind         string   `yaml:"kind"`
	Description  string   `yaml:"description,omitempty"`
	Children     []string `yaml:"children,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty"`
	Dependents   []string `yaml:"dependents,omitempty"`
}

func runListTasks(cmd *cobra.Command, args []string) error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}
	logger, err := orchestrator.NewDebugLogger(cfg.DebugLogPath())
	if err != nil {
		return fmt.Errorf("create debug logger: %w", err)
	}
	defer logger.Close()

	st, err := site.New(cfg, cfg.ModeValue(), site.Deps{Debug: logger})
	if err != nil {
		return err
	}
	g := graph.New()
	g.SetDebugLog(logger.Log)
	if err := g.BuildFromRegistry(st.Registry()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case tasksYAML:
		return writeTaskYAML(out, g, st.Registry().Names())
	case tasksOrder:
		order, err := g.TopologicalSort()
		if err != nil {
			return err
		}
		for _, name := range order {
			fmt.Fprintln(out, name)
		}
		return nil
	default:
		writeTaskTree(out, g)
		return nil
	}
}

// describeTasks builds the YAML records for names.
func describeTasks(g *graph.DependencyGraph, names []string) []taskInfo {
	infos := make([]taskInfo, 0, len(names))
	for _, name := range names {
		t := g.GetTask(name)
		if t == nil {
			continue
		}
		info := taskInfo{
			Name:         name,
			Kind:         t.Mode().String(),
			Description:  t.Description(),
			Dependencies: g.GetDependencies(name),
			Dependents:   g.GetDependents(name),
		}
		for _, c := range t.Children() {
			info.Children = append(info.Children, c.Label())
		}
		infos = append(infos, info)
	}
	return infos
}

func writeTaskYAML(w io.Writer, g *graph.DependencyGraph, names []string) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(describeTasks(g, names)); err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	return enc.Close()
}

// writeTaskTree prints each root with its children indented below it.
func writeTaskTree(w io.Writer, g *graph.DependencyGraph) {
	nameColor := color.New(color.FgCyan)
	dim := color.New(color.FgHiBlack)

	var walk func(t *task.Task, prefix string, last bool, top bool)
	walk = func(t *task.Task, prefix string, last bool, top bool) {
		branch, next := "", ""
		if !top {
			branch, next = "├── ", "│   "
			if last {
				branch, next = "└── ", "    "
			}
		}

		label := dim.Sprint(t.Mode().String())
		if t.Name() != "" {
			label = nameColor.Sprint(t.Name())
		}
		line := prefix + branch + label
		if d := t.Description(); d != "" {
			line += " " + dim.Sprint(d)
		}
		fmt.Fprintln(w, line)

		children := t.Children()
		for i, c := range children {
			walk(c, prefix+next, i == len(children)-1, false)
		}
	}

	roots := g.Roots()
	for i, name := range roots {
		if t := g.GetTask(name); t != nil {
			walk(t, "", true, true)
		}
		if i < len(roots)-1 {
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintf(w, "\n%d task(s)\n", g.Size())
}
