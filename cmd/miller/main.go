// Command miller is the CLI embedder referenced throughout spec.md §6: a
// thin wrapper around the internal/miller public API, wiring index,
// search, and status subcommands to a single open workspace.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/anortham/miller/internal/config"
	"github.com/anortham/miller/internal/debug"
	"github.com/anortham/miller/internal/miller"
	"github.com/anortham/miller/internal/types"
	"github.com/anortham/miller/internal/version"
)

func loadWorkspaceConfig(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}

	cfg, err := config.LoadKDL(absRoot)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if includes := c.StringSlice("include"); len(includes) > 0 {
		cfg.Include = includes
	}
	if excludes := c.StringSlice("exclude"); len(excludes) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludes...)
	}
	if c.Bool("no-semantic") {
		cfg.EnableSemanticSearch = false
	}
	if c.Bool("watch") {
		cfg.EnableWatcher = true
	}
	return cfg, nil
}

func parseSymbolKinds(raw []string) []types.SymbolKind {
	if len(raw) == 0 {
		return nil
	}
	kinds := make([]types.SymbolKind, len(raw))
	for i, k := range raw {
		kinds[i] = types.SymbolKind(strings.ToLower(k))
	}
	return kinds
}

func printResults(results []miller.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	if len(results) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%-8s %6.3f %s  %s:%d\n", r.SearchMethod, r.Score, r.Symbol.Name, r.Symbol.FilePath, r.Symbol.Position.StartLine)
	}
	return nil
}

func indexCommand(c *cli.Context) error {
	cfg, err := loadWorkspaceConfig(c)
	if err != nil {
		return err
	}
	m, err := miller.Initialize(cfg)
	if err != nil {
		return err
	}
	defer m.Shutdown()

	debug.LogIndexing("indexing workspace %s\n", cfg.WorkspacePath)
	if err := m.IndexWorkspace(context.Background()); err != nil {
		return err
	}

	stats, err := m.GetWorkspaceStats()
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d files, %d symbols (%s)\n", stats.TotalFiles, stats.TotalSymbols, strings.Join(stats.Languages, ", "))
	return nil
}

func searchCommand(c *cli.Context) error {
	query := c.Args().First()
	if query == "" {
		return cli.Exit("search requires a query argument", 1)
	}
	cfg, err := loadWorkspaceConfig(c)
	if err != nil {
		return err
	}
	m, err := miller.Initialize(cfg)
	if err != nil {
		return err
	}
	defer m.Shutdown()

	if c.Bool("reindex") {
		if err := m.IndexWorkspace(context.Background()); err != nil {
			return err
		}
	}

	opts := miller.Options{
		MaxResults:  c.Int("limit"),
		Language:    c.String("language"),
		SymbolKinds: parseSymbolKinds(c.StringSlice("kind")),
		FilePattern: c.String("file-pattern"),
	}

	mode := c.String("mode")
	var results []miller.Result
	switch mode {
	case "structural":
		results = m.SearchCode(query, opts)
	case "semantic":
		results, err = m.SemanticSearch(query, opts)
	default:
		if c.Bool("cross-layer") {
			opts.Mode = miller.ModeCrossLayer
		}
		results, err = m.HybridSearch(query, opts)
	}
	if err != nil {
		return err
	}
	return printResults(results, c.Bool("json"))
}

func statusCommand(c *cli.Context) error {
	cfg, err := loadWorkspaceConfig(c)
	if err != nil {
		return err
	}
	m, err := miller.Initialize(cfg)
	if err != nil {
		return err
	}
	defer m.Shutdown()

	health := m.HealthCheck()
	stats, err := m.GetWorkspaceStats()
	if err != nil {
		return err
	}

	fmt.Printf("store ok: %v   vectors ok: %v\n", health.StoreOK, health.VectorsOK)
	fmt.Printf("parsers loaded: %s\n", strings.Join(health.ParsersLoaded, ", "))
	if len(health.ParsersFailed) > 0 {
		for lang, reason := range health.ParsersFailed {
			fmt.Printf("parser failed: %s (%s)\n", lang, reason)
		}
	}
	fmt.Printf("files: %d   symbols: %d   embeddings: %d\n", stats.TotalFiles, stats.TotalSymbols, stats.Semantic.TotalEmbeddings)
	for _, d := range health.Diagnostics {
		fmt.Printf("diagnostic[%s] %s: %s\n", d.Stage, d.FilePath, d.Message)
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:                   "miller",
		Usage:                  "Multi-language code intelligence engine",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Workspace root to operate on",
				Value:   ".",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Include files matching glob patterns",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns",
			},
			&cli.BoolFlag{
				Name:  "no-semantic",
				Usage: "Disable semantic embedding and search",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Enable the file watcher for this invocation",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Index the workspace",
				Action: indexCommand,
			},
			{
				Name:    "search",
				Aliases: []string{"s"},
				Usage:   "Search the indexed workspace",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum results",
						Value:   20,
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Search mode: structural, semantic, hybrid",
						Value: "hybrid",
					},
					&cli.StringFlag{
						Name:  "language",
						Usage: "Restrict results to one language",
					},
					&cli.StringSliceFlag{
						Name:  "kind",
						Usage: "Restrict results to symbol kinds (function, class, ...)",
					},
					&cli.StringFlag{
						Name:  "file-pattern",
						Usage: "Restrict results to files whose path contains this text",
					},
					&cli.BoolFlag{
						Name:  "cross-layer",
						Usage: "Run hybrid search in cross-layer mode",
					},
					&cli.BoolFlag{
						Name:  "reindex",
						Usage: "Reindex the workspace before searching",
					},
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output results as JSON",
					},
				},
				Action: searchCommand,
			},
			{
				Name:   "status",
				Usage:  "Report health and workspace statistics",
				Action: statusCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "miller: %v\n", err)
		os.Exit(1)
	}
}
