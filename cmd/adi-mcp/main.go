package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/adi-family/llm-code-indexer-mcp/internal/config"
	"github.com/adi-family/llm-code-indexer-mcp/internal/engine"
	"github.com/adi-family/llm-code-indexer-mcp/internal/logging"
	"github.com/adi-family/llm-code-indexer-mcp/internal/mcp"
	"github.com/adi-family/llm-code-indexer-mcp/internal/storage"
)

var (
	version   = mcp.Version
	buildTime = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "adi-mcp: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("%s %s (built %s)\n", mcp.ServerName, c.App.Version, buildTime)
		fmt.Printf("storage: %s driver, %s build\n", storage.DriverName, storage.BuildMode)
	}

	return &cli.App{
		Name:    mcp.ServerName,
		Usage:   "MCP server exposing a local code index over stdio",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "project",
				Aliases: []string{"p"},
				Usage:   "project root opened when initialize carries no rootUri",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "index database path (default <project>/.adi/index.db)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "re-index changed files while serving",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file loaded before reading the environment",
				Value: ".env",
			},
		},
		Action: serveCommand,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve the protocol on stdin/stdout (default)",
				Action: serveCommand,
			},
			{
				Name:   "index",
				Usage:  "index the project and exit",
				Action: indexCommand,
			},
			{
				Name:   "status",
				Usage:  "print index status as JSON",
				Action: statusCommand,
			},
		},
	}
}

// setup resolves the environment with flag overrides and builds the logger
func setup(c *cli.Context) (*config.Env, *zap.Logger, error) {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return nil, nil, err
	}
	env, err := config.LoadEnv()
	if err != nil {
		return nil, nil, err
	}
	if c.IsSet("db") {
		env.DBPath = c.String("db")
	}
	if c.IsSet("log-level") {
		env.LogLevel = c.String("log-level")
	}
	if c.IsSet("watch") {
		env.Watch = c.Bool("watch")
	}

	logger, err := logging.New(env.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return env, logger, nil
}

func serveCommand(c *cli.Context) error {
	env, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opener := engine.NewOpener(engine.Options{Env: env, Logger: logger.Named("engine")})
	server := mcp.NewServer(opener,
		mcp.WithLogger(logger.Named("mcp")),
		mcp.WithProjectPath(c.String("project")),
		mcp.WithVersion(c.App.Version),
	)
	defer func() {
		if err := server.Close(); err != nil {
			logger.Warn("failed to close engine", zap.Error(err))
		}
	}()

	logger.Info("server ready, listening on stdio", zap.String("version", c.App.Version))

	// Serve blocks on stdin, so a signal is observed here rather than by Serve
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("input closed, stopping")
		return nil
	}
}

// openEngine opens the --project root for a one-shot command
func openEngine(c *cli.Context) (engine.Engine, *zap.Logger, error) {
	env, logger, err := setup(c)
	if err != nil {
		return nil, nil, err
	}
	eng, err := engine.Open(c.Context, c.String("project"), engine.Options{Env: env, Logger: logger.Named("engine")})
	if err != nil {
		return nil, nil, err
	}
	return eng, logger, nil
}

func indexCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	c.Context = ctx

	eng, logger, err := openEngine(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() { _ = eng.Close() }()

	progress, err := eng.Index(ctx)
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}
	fmt.Println(mcp.IndexSummary(progress))
	return nil
}

func statusCommand(c *cli.Context) error {
	eng, logger, err := openEngine(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() { _ = eng.Close() }()

	status, err := eng.Status(c.Context)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}

