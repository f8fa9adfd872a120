package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var migrateDrop bool

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateDrop, "drop", false, "drop the tables before creating them")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [records...]",
	Short: "Create the tables of the schema's records",
	Long: `Migrate creates the missing tables of the named records and of every record they
reach. Without arguments every record with a table is migrated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		a, err := newApp(cfg, logOutput)
		if err != nil {
			return err
		}
		defer a.Close()

		records := args
		if len(records) == 0 {
			records = a.roots
		}
		if len(records) == 0 {
			return fmt.Errorf("schema %s declares no tables", cfg.Schema)
		}

		ctx := cmd.Context()
		if migrateDrop {
			if err := a.db.DropTables(ctx, a.registry, records...); err != nil {
				return err
			}
		}
		if err := a.db.AutoMigrate(ctx, a.registry, records...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrated %d record(s)\n", len(records))
		return nil
	},
}
