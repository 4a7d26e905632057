package main

import (
	"fmt"

	"github.com/academvault/discussions/internal/config"
	"github.com/academvault/discussions/migrations"
	"github.com/academvault/discussions/pkg/auth"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	tokenUser  string
	tokenName  string

	rootCmd = &cobra.Command{
		Use:          "discussions",
		Short:        "AcademVault discussions service",
		SilenceUsage: true,
		RunE:         runServe, // serve is the default
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the WebSocket hub and the outbox dispatcher",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}
	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(func(cfg *config.Config, log *zap.Logger) error {
				return migrations.Run(cfg.Database.URL(), log)
			})
		},
	}
	migrateDownCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(func(cfg *config.Config, log *zap.Logger) error {
				return migrations.Rollback(cfg.Database.URL(), log)
			})
		},
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token for a user id",
		RunE:  runToken,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config.yaml (optional)")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (uuid)")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name claim")
	_ = tokenCmd.MarkFlagRequired("user")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

// withConfig loads config and a logger for one-shot commands
func withConfig(fn func(cfg *config.Config, log *zap.Logger) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	return fn(cfg, log)
}

func runToken(cmd *cobra.Command, args []string) error {
	userID, err := uuid.Parse(tokenUser)
	if err != nil {
		return fmt.Errorf("--user: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	jm := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	token, err := jm.GenerateToken(userID, tokenName)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
