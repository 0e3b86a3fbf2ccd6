package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/DeusData/codebase-inheritors/internal/config"
	"github.com/DeusData/codebase-inheritors/internal/store"
	"github.com/DeusData/codebase-inheritors/internal/tools"
	"github.com/DeusData/codebase-inheritors/internal/watcher"
)

var version = "dev"

// app holds the state shared by every subcommand.
type app struct {
	configPath string
	dir        string
	driver     string
	workspace  string
	watch      []string

	cfg    *config.Config
	router *store.StoreRouter
	srv    *tools.Server
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "codebase-inheritors",
		Short:         "Class hierarchy inheritors search over an MCP server",
		Long:          "Loads class hierarchy manifests into SQLite workspaces and answers inheritor searches.\nWithout a subcommand the MCP server is served on stdio.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.router != nil {
				a.router.CloseAll()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	root.SetVersionTemplate("codebase-inheritors {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ./"+config.FileName+")")
	flags.StringVar(&a.dir, "dir", "", "database directory (default ~/.cache/codebase-inheritors)")
	flags.StringVar(&a.driver, "driver", "", "SQLite driver: sqlite (pure Go) or sqlite3 (cgo)")
	flags.StringVarP(&a.workspace, "workspace", "w", tools.DefaultWorkspace, "workspace database name")
	root.Flags().StringSliceVar(&a.watch, "watch", nil, "manifest files or directories to load and reload on change")

	root.AddCommand(
		a.serveCmd(),
		a.loadCmd(),
		a.scanCmd(),
		a.inheritorsCmd(),
		a.hierarchyCmd(),
		a.searchCmd(),
		a.projectsCmd(),
		a.deleteCmd(),
		a.workspacesCmd(),
		a.callCmd(),
	)
	return root
}

// init loads the configuration, installs the logger and opens the router.
func (a *app) init() error {
	if a.configPath != "" {
		a.cfg = config.LoadFile(a.configPath)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getwd: %w", err)
		}
		a.cfg = config.Load(cwd)
	}
	// stdout carries the MCP protocol and command output
	slog.SetDefault(a.cfg.NewLogger(os.Stderr))

	dir := a.dir
	if dir == "" {
		dir = a.cfg.Store.Dir
	}
	if dir == "" {
		var err error
		if dir, err = store.DefaultDir(); err != nil {
			return err
		}
	}
	driver := a.driver
	if driver == "" {
		driver = a.cfg.EffectiveDriver()
	}
	r, err := store.NewRouterWithDir(dir, driver)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.router = r
	a.srv = tools.NewServer(r, a.cfg, version)
	return nil
}

func (a *app) serve(ctx context.Context) error {
	slog.Info("server.start", "version", version, "dir", a.router.Dir(), "workspace", a.workspace)
	if len(a.watch) > 0 {
		if err := a.load(ctx, a.watch); err != nil {
			slog.Warn("server.initial_load", "err", err)
		}
		go watcher.New(a.load, a.watch...).Run(ctx)
	}
	if err := a.srv.MCPServer().Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		slog.Error("server.err", "err", err)
		return err
	}
	return nil
}

// load reloads manifests into the selected workspace.
func (a *app) load(ctx context.Context, paths []string) error {
	res, err := a.srv.CallTool(ctx, "load_hierarchy", map[string]any{
		"workspace": a.workspace,
		"paths":     paths,
	})
	if err != nil {
		return err
	}
	if res.IsError {
		return errors.New(resultText(res))
	}
	return nil
}
