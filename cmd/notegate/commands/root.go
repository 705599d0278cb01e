package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/hllvc/notegate/internal/app"
	"github.com/hllvc/notegate/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "notegate",
		Usage: "Microsoft account sign-in and OneNote access check",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "acquire a Graph access token and list OneNote notebooks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "auth--storage",
				Usage: "refresh token storage backend (file|env|keyring)",
				Value: string(app.DefaultConfigAuthStorage),
			},
			&cli.StringFlag{
				Name:  "auth--file",
				Usage: "path to the refresh token file",
			},
			&cli.StringFlag{
				Name:  "auth--env-key",
				Usage: "environment variable holding the refresh token",
			},
			&cli.StringFlag{
				Name:  "auth--keyring-user",
				Usage: "keyring account name for the refresh token",
			},
			&cli.StringFlag{
				Name:  "authority--client-id",
				Usage: "application (client) ID of the app registration",
			},
			&cli.StringFlag{
				Name:  "authority--tenant",
				Usage: "tenant to authenticate against",
				Value: app.DefaultConfigTenant,
			},
			&cli.StringFlag{
				Name:  "graph--base-url",
				Usage: "Microsoft Graph base URL",
				Value: app.DefaultConfigGraphURL,
			},
		},
		Action: loginAction,
	}
}

func loginAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	err = observability.Instrument(cfg.LogLevel, string(cfg.LogFormat))
	if err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting", "storage", cfg.Auth.Storage, "tenant", cfg.Authority.Tenant)

	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	return nil
}
