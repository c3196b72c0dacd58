package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/hackgods/health-first-scheduling/internal/config"
	"github.com/hackgods/health-first-scheduling/internal/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the scheduling database schema",
	}
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "Overall timeout for the command")

	rootCmd.AddCommand(upCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func connect(cmd *cobra.Command) (*pgxpool.Pool, context.Context, context.CancelFunc, error) {
	timeout, _ := cmd.Flags().GetDuration("timeout")

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: int32(cfg.PostgresMaxConn), AppName: "migrate"})
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, ctx, cancel, nil
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, ctx, cancel, err := connect(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer pool.Close()

			n, err := db.NewMigrator(pool).Up(ctx)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Println("No pending migrations.")
				return nil
			}
			fmt.Printf("Applied %d migration(s).\n", n)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, ctx, cancel, err := connect(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer pool.Close()

			statuses, err := db.NewMigrator(pool).Status(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("%-8s %-40s %-8s %s\n", "VERSION", "NAME", "APPLIED", "AT")
			for _, st := range statuses {
				at := "-"
				if st.AppliedAt != nil {
					at = st.AppliedAt.Format(time.RFC3339)
				}
				fmt.Printf("%-8d %-40s %-8t %s\n", st.Version, st.Name, st.Applied, at)
			}
			return nil
		},
	}
}
