package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	app := &cli.App{
		Name: "miller",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Value: "."},
			&cli.StringSliceFlag{Name: "include"},
			&cli.StringSliceFlag{Name: "exclude"},
			&cli.BoolFlag{Name: "no-semantic"},
			&cli.BoolFlag{Name: "watch"},
		},
		Commands: []*cli.Command{
			{Name: "index", Action: indexCommand},
			{
				Name: "search",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20},
					&cli.StringFlag{Name: "mode", Value: "hybrid"},
					&cli.StringFlag{Name: "language"},
					&cli.StringSliceFlag{Name: "kind"},
					&cli.StringFlag{Name: "file-pattern"},
					&cli.BoolFlag{Name: "cross-layer"},
					&cli.BoolFlag{Name: "reindex"},
					&cli.BoolFlag{Name: "json"},
				},
				Action: searchCommand,
			},
			{Name: "status", Action: statusCommand},
		},
	}
	return app
}

func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "widget.go"),
		[]byte("package widget\n\nfunc RenderWidget(id string) string {\n\treturn id\n}\n"), 0o644))
	return dir
}

func TestIndexCommandReportsCounts(t *testing.T) {
	dir := setupWorkspace(t)
	app := newApp()
	err := app.Run([]string{"miller", "--root", dir, "--no-semantic", "index"})
	require.NoError(t, err)
}

func TestSearchCommandRequiresQuery(t *testing.T) {
	dir := setupWorkspace(t)
	app := newApp()
	err := app.Run([]string{"miller", "--root", dir, "search"})
	require.Error(t, err)
}

func TestSearchCommandFindsIndexedSymbol(t *testing.T) {
	dir := setupWorkspace(t)
	app := newApp()
	require.NoError(t, app.Run([]string{"miller", "--root", dir, "--no-semantic", "index"}))
	err := app.Run([]string{"miller", "--root", dir, "--no-semantic", "search", "--mode", "structural", "RenderWidget"})
	require.NoError(t, err)
}

func TestStatusCommandRunsClean(t *testing.T) {
	dir := setupWorkspace(t)
	app := newApp()
	require.NoError(t, app.Run([]string{"miller", "--root", dir, "--no-semantic", "index"}))
	err := app.Run([]string{"miller", "--root", dir, "--no-semantic", "status"})
	require.NoError(t, err)
}
