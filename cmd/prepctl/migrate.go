package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbh, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer dbh.Close()
		log.Info().Str("driver", cfg.DBDriver).Msg("schema ready")
		return nil
	},
}
