package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/withme/withme/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ withMe Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 withMe Status")
		fmt.Printf("Version: %s\n", version)

		configPath, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Println("Config:   ✓ Found (" + configPath + ")")
			} else {
				fmt.Println("Config:   ✗ Not found (run 'withme configure' first)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Println("Config:   ? Unable to load:", err)
			return
		}

		if cfg.Providers.OpenAI.APIKey != "" {
			fmt.Println("LLM:      ✓ API key found")
		} else {
			fmt.Println("LLM:      ✗ No API key (replies use local fallback)")
		}
		if cfg.Providers.Fal.APIKey != "" {
			fmt.Println("Imaging:  ✓ API key found")
		} else {
			fmt.Println("Imaging:  ✗ No API key (jobs use deterministic fallback assets)")
		}
		if cfg.Queue.Brokers != "" {
			fmt.Printf("Queue:    ✓ Kafka (%s)\n", cfg.Queue.Brokers)
		} else {
			fmt.Println("Queue:    ✗ No brokers configured")
		}
		if cfg.Storage.SupabaseURL != "" {
			fmt.Println("Storage:  ✓ Supabase configured")
		} else {
			fmt.Println("Storage:  ✗ Not configured (raw provider URLs are kept)")
		}

		if _, err := os.Stat(cfg.Paths.DBPath); err == nil {
			fmt.Println("Store:    ✓ " + cfg.Paths.DBPath)
		} else {
			fmt.Println("Store:    ✗ Not created yet (" + cfg.Paths.DBPath + ")")
		}

		fmt.Println("Status:   Ready")
	},
}
