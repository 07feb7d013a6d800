package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/withme/withme/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"            _ _   _     __  __\n" +
		" __      __(_) |_| |__ |  \\/  | ___\n" +
		" \\ \\ /\\ / /| | __| '_ \\| |\\/| |/ _ \\\n" +
		"  \\ V  V / | | |_| | | | |  | |  __/\n" +
		"   \\_/\\_/  |_|\\__|_| |_|_|  |_|\\___|\n"
)

var rootCmd = &cobra.Command{
	Use:   "withme",
	Short: "withMe - AI companion backend",
	Long:  color.CyanString(logo) + "\nCompanion state engine and image pipeline.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(deviceCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(configureCmd)
}
