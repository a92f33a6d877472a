package main

import (
	"github.com/spf13/cobra"

	"learnagent/config"
	"learnagent/internal/store"
)

func migrateCMD() *cobra.Command {
	var cfgPath string

	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Apply turn store migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			st, err := store.Open(cfg.Storage.SQLite.Path)
			if err != nil {
				return err
			}
			return st.Close()
		},
	}
	migrate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return migrate
}
