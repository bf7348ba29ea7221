package main

import (
	"fmt"

	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"github.com/scoutme/client/assets"
	"github.com/scoutme/client/internal/config"
	"github.com/scoutme/client/internal/logging"

	client "github.com/scoutme/client/app"
)

const serviceName = "scoutme"

// NewRootCmd creates the scoutme command, which runs the desktop client.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scoutme",
		Short: "ScoutMe - Plateforme de recrutement sportif",
		Long: `ScoutMe desktop client. Configuration is read from defaults, an
optional YAML file (--config), SCOUTME_* environment variables and flags.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logger := logging.Setup(serviceName, version, cfg.Log.Format, cfg.Debug, cmd.ErrOrStderr())

			fyneApp := app.NewWithID(cfg.App.ID)
			fyneApp.SetIcon(assets.Icon())

			a, err := client.New(cfg, fyneApp, logger)
			if err != nil {
				logger.Error("failed to start client", "error", err)
				return err
			}
			logger.Info("client starting", "api", cfg.API.URL, "storage", cfg.Storage.Backend)
			return a.Run(cmd.Context())
		},
	}
	config.RegisterFlags(cmd.Flags())

	cmd.AddCommand(NewConfigCmd())
	return cmd
}

// NewConfigCmd prints the effective configuration.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := config.Dump(cmd.Flags())
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}
