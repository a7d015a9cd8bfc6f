package main

import (
	"fmt"
	"os"

	"github.com/coachline/coachline/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var appConfig config.AppConfig

var rootCmd = &cobra.Command{
	Use:           "coachline",
	Short:         "Coachline coaching platform server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&appConfig.ConfigPath, "config", "c", "", "config file (default $CONFIG_PATH or ./config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
}
