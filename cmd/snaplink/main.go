package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snaplink/snaplink/cmd"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "snaplink",
		Short: "A CLI snapshot deduplicator",
		Long: `A CLI application that hard-links identical files between backup snapshots
to reclaim disk space without changing file content or directory layout.
`,
	}

	// Parse persistent flags
	rootCmd.PersistentFlags().StringVar(&cmd.FlagConfigFolder, "config-dir", cmd.FlagConfigFolder, "Config folder")
	rootCmd.PersistentFlags().StringVarP(&cmd.FlagConfigFile, "config", "c", cmd.FlagConfigFile, "Config file")
	rootCmd.PersistentFlags().StringVarP(&cmd.FlagLogFile, "log", "l", cmd.FlagLogFile, "Log file")
	rootCmd.PersistentFlags().CountVarP(&cmd.FlagLogLevel, "verbose", "v", "Verbose level")

	rootCmd.PersistentFlags().BoolVarP(&cmd.FlagDryRun, "dry-run", "n", false, "Dry run mode")

	rootCmd.AddCommand(cmd.LinkCommand())
	rootCmd.AddCommand(cmd.UpdateCommand())
	rootCmd.AddCommand(cmd.VersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
