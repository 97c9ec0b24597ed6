// Package cmd provides the CLI commands for confluence-flow.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"

	"github.com/Inna0915/obsidian-confluence-flow/internal/confluence"
	"github.com/Inna0915/obsidian-confluence-flow/internal/store"
	"github.com/Inna0915/obsidian-confluence-flow/internal/sync"
	"github.com/Inna0915/obsidian-confluence-flow/internal/version"
)

// konfig is the global koanf instance, loaded from CFLOW_* environment
// variables before any command runs.
var konfig = koanf.New(".")

// verboseFlag is the shared verbose flag for all commands.
var verboseFlag = &cli.BoolFlag{
	Name:  "verbose",
	Usage: "Enable verbose logging",
}

// setupLogging configures the global logger based on the verbose flag
// and CFLOW_LOG_FORMAT (text or json).
func setupLogging(cmd *cli.Command) {
	level := slog.LevelInfo
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("CFLOW_LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: level})
	}

	slog.SetDefault(slog.New(handler))

	if level == slog.LevelDebug {
		slog.Debug("verbose logging enabled")
	}
}

// NewApp creates the CLI application.
func NewApp() *cli.Command {
	return &cli.Command{
		Name:    "confluence-flow",
		Usage:   "Mirror a Confluence page tree into a local Markdown vault",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "Confluence base URL",
				Sources: cli.EnvVars("CFLOW_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "user",
				Usage:   "Confluence user (email for cloud instances)",
				Sources: cli.EnvVars("CFLOW_USER"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Confluence API token",
				Sources: cli.EnvVars("CFLOW_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Path to the local vault",
				Aliases: []string{"d"},
				Value:   "vault",
				Sources: cli.EnvVars("CFLOW_VAULT"),
			},
			&cli.StringFlag{
				Name:    "base",
				Usage:   "Sync base folder inside the vault",
				Value:   "Confluence",
				Sources: cli.EnvVars("CFLOW_BASE_FOLDER"),
			},
			&cli.StringFlag{
				Name:    "roots",
				Usage:   "Root page IDs (comma, newline or whitespace separated)",
				Sources: cli.EnvVars("CFLOW_ROOT_PAGES"),
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "Worker pool size for the syncing phase",
				Value:   5,
				Sources: cli.EnvVars("CFLOW_CONCURRENCY"),
			},
			verboseFlag,
		},
		Before: func(ctx context.Context, _ *cli.Command) (context.Context, error) {
			// Load environment variables with CFLOW_ prefix
			if err := konfig.Load(env.Provider(".", env.Opt{
				Prefix: "CFLOW_",
				TransformFunc: func(k, v string) (string, any) {
					return strings.ToLower(strings.TrimPrefix(k, "CFLOW_")), v
				},
			}), nil); err != nil {
				return ctx, fmt.Errorf("load env: %w", err)
			}

			return ctx, nil
		},
		Commands: []*cli.Command{
			syncCommand(),
			pageCommand(),
			testCommand(),
			statusCommand(),
			resetCommand(),
		},
	}
}

// syncCommand creates the sync subcommand.
func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run one full sync pass over all configured root pages",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Clear all sync state first and resync everything",
			},
			verboseFlag,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd)
			return ctx, nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			syncer, state, err := setupSyncer(cmd)
			if err != nil {
				return err
			}

			if cmd.Bool("force") {
				slog.Info("clearing sync state for full resync")
				if err := state.ClearAll(); err != nil {
					return fmt.Errorf("clear state: %w", err)
				}
			}

			result, err := syncer.RunPass(ctx)
			if err != nil {
				return fmt.Errorf("sync pass: %w", err)
			}

			displaySyncResult(result)
			return nil
		},
	}
}

// pageCommand creates the page subcommand for single-page resync.
func pageCommand() *cli.Command {
	return &cli.Command{
		Name:      "page",
		Usage:     "Resync a single tracked page",
		ArgsUsage: "<page_id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Override the recorded local file path",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Resync even when the remote version is unchanged",
			},
			verboseFlag,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd)
			return ctx, nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			pageID := cmd.Args().First()

			syncer, _, err := setupSyncer(cmd)
			if err != nil {
				return err
			}

			if err := syncer.SyncOne(ctx, pageID, cmd.String("path"), cmd.Bool("force")); err != nil {
				return fmt.Errorf("sync page: %w", err)
			}

			displayPageSynced(pageID)
			return nil
		},
	}
}

// testCommand creates the test subcommand.
func testCommand() *cli.Command {
	return &cli.Command{
		Name:  "test",
		Usage: "Validate connectivity and credentials",
		Flags: []cli.Flag{
			verboseFlag,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd)
			return ctx, nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}

			client := confluence.NewClient(cfg.BaseURL, cfg.User, cfg.Token)
			if err := client.TestConnection(ctx); err != nil {
				return fmt.Errorf("connection test failed: %w", err)
			}

			displayConnectionOK(cfg.BaseURL)
			return nil
		},
	}
}

// statusCommand creates the status subcommand.
func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show sync state: tracked pages, synced roots and watermark",
		Flags: []cli.Flag{
			verboseFlag,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd)
			return ctx, nil
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			state, err := openState(cmd)
			if err != nil {
				return err
			}

			displayStatus(state)
			return nil
		},
	}
}

// resetCommand creates the reset subcommand.
func resetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Clear all sync state (records, synced roots, watermark)",
		Flags: []cli.Flag{
			verboseFlag,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd)
			return ctx, nil
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			state, err := openState(cmd)
			if err != nil {
				return err
			}

			if err := state.ClearAll(); err != nil {
				return fmt.Errorf("clear state: %w", err)
			}

			displayStateCleared()
			return nil
		},
	}
}

// buildConfig assembles the immutable configuration snapshot from flags
// and the CFLOW_* environment.
func buildConfig(cmd *cli.Command) (sync.Config, error) {
	cfg := sync.Config{
		BaseURL:      strings.TrimSuffix(cmd.String("url"), "/"),
		User:         cmd.String("user"),
		Token:        cmd.String("token"),
		BasePath:     cmd.String("base"),
		RootPages:    sync.ParseRootPages(cmd.String("roots")),
		Concurrency:  cmd.Int("concurrency"),
		IssueBaseURL: konfig.String("jira_url"),
	}

	if err := cfg.Validate(); err != nil {
		return sync.Config{}, err
	}
	return cfg.WithDefaults(), nil
}

// openState opens the state store under the configured vault.
func openState(cmd *cli.Command) (*sync.StateStore, error) {
	statePath := sync.StateFilePath(cmd.String("vault"))
	state, err := sync.NewStateStore(statePath, sync.WithStateLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	return state, nil
}

// setupSyncer wires the client, vault, state store and syncer.
func setupSyncer(cmd *cli.Command) (*sync.Syncer, *sync.StateStore, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	vault, err := store.NewLocalVault(cmd.String("vault"), store.WithLogger(slog.Default()))
	if err != nil {
		return nil, nil, fmt.Errorf("create vault: %w", err)
	}

	state, err := openState(cmd)
	if err != nil {
		return nil, nil, err
	}

	client := confluence.NewClient(cfg.BaseURL, cfg.User, cfg.Token)
	syncer := sync.NewSyncer(client, vault, state, cfg, sync.WithSyncerLogger(slog.Default()))

	return syncer, state, nil
}
