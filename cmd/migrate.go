package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atendai/atendai/db"
	"github.com/atendai/atendai/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return db.Migrate(cfg.DatabaseURL)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
