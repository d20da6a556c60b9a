package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "meritledger/internal/jwt_token"
	"meritledger/internal/platform/database"
	"meritledger/pkg/domain"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := commonRun()
			if err != nil {
				return err
			}
			if !cfg.UsePostgres() {
				return errors.New("migrate requires MERIT_STORAGE_BACKEND=postgres")
			}
			db, err := database.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.RunMigrations(db); err != nil {
				return err
			}
			logger.Info("database migrations applied")
			return nil
		},
	}
}

func tokenCommand() *cobra.Command {
	var (
		principal string
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a principal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := commonRun()
			if err != nil {
				return err
			}
			p, err := domain.ParsePrincipal(principal)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Server.TokenTTL
			}
			svc := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer)
			token, err := svc.GenerateAccessToken(p, ttl)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&principal, "principal", "", "principal the token authenticates (0x-prefixed)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to MERIT_TOKEN_TTL")
	_ = cmd.MarkFlagRequired("principal")
	return cmd
}

func bootstrapCommand() *cobra.Command {
	var admin string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Grant DEFAULT_ADMIN on an empty role registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := commonRun()
			if err != nil {
				return err
			}
			if !cfg.UsePostgres() {
				return errors.New("bootstrap requires MERIT_STORAGE_BACKEND=postgres; the memory backend uses MERIT_BOOTSTRAP_ADMIN")
			}
			cfg.Server.BootstrapAdmin = admin
			a, err := buildApp(cmd.Context(), cfg, logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()
			logger.Info("role registry bootstrapped", "admin", admin)
			return nil
		},
	}
	cmd.Flags().StringVar(&admin, "admin", "", "principal to grant DEFAULT_ADMIN")
	_ = cmd.MarkFlagRequired("admin")
	return cmd
}
