package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/withme/withme/internal/config"
)

var configureOpenAIKey string
var configureOpenAIBase string
var configureModel string
var configureFalKey string
var configureKafkaBrokers string
var configureSupabaseURL string
var configureSupabaseKey string
var configureFCMKey string
var configureSlackToken string
var configureSlackChannel string
var configureJSON bool

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Apply configuration updates",
	RunE:  runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureOpenAIKey, "openai-key", "", "Set providers.openai.apiKey")
	configureCmd.Flags().StringVar(&configureOpenAIBase, "openai-base", "", "Set providers.openai.apiBase")
	configureCmd.Flags().StringVar(&configureModel, "model", "", "Set model.name")
	configureCmd.Flags().StringVar(&configureFalKey, "fal-key", "", "Set providers.fal.apiKey")
	configureCmd.Flags().StringVar(&configureKafkaBrokers, "kafka-brokers", "", "Set queue.brokers (comma-separated host:port)")
	configureCmd.Flags().StringVar(&configureSupabaseURL, "supabase-url", "", "Set storage.supabaseUrl")
	configureCmd.Flags().StringVar(&configureSupabaseKey, "supabase-key", "", "Set storage.serviceKey")
	configureCmd.Flags().StringVar(&configureFCMKey, "fcm-key", "", "Set notify.fcmServerKey")
	configureCmd.Flags().StringVar(&configureSlackToken, "slack-token", "", "Set notify.slackToken")
	configureCmd.Flags().StringVar(&configureSlackChannel, "slack-channel", "", "Set notify.slackChannel")
	configureCmd.Flags().BoolVar(&configureJSON, "json", false, "Output machine-readable JSON summary")
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var updated []string
	set := func(field string, target *string, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		*target = strings.TrimSpace(value)
		updated = append(updated, field)
	}

	set("providers.openai.apiKey", &cfg.Providers.OpenAI.APIKey, configureOpenAIKey)
	set("providers.openai.apiBase", &cfg.Providers.OpenAI.APIBase, configureOpenAIBase)
	set("model.name", &cfg.Model.Name, configureModel)
	set("providers.fal.apiKey", &cfg.Providers.Fal.APIKey, configureFalKey)
	set("queue.brokers", &cfg.Queue.Brokers, configureKafkaBrokers)
	set("storage.supabaseUrl", &cfg.Storage.SupabaseURL, configureSupabaseURL)
	set("storage.serviceKey", &cfg.Storage.ServiceKey, configureSupabaseKey)
	set("notify.fcmServerKey", &cfg.Notify.FCMServerKey, configureFCMKey)
	set("notify.slackToken", &cfg.Notify.SlackToken, configureSlackToken)
	set("notify.slackChannel", &cfg.Notify.SlackChannel, configureSlackChannel)

	if len(updated) > 0 {
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}

	if configureJSON {
		out, _ := json.Marshal(map[string]any{"updated": updated})
		fmt.Println(string(out))
		return nil
	}

	printHeader("⚙️ withMe Configure")
	if len(updated) == 0 {
		fmt.Println("Nothing to update. Pass flags to set values (see --help).")
		return nil
	}
	for _, field := range updated {
		fmt.Println("Updated " + field)
	}
	return nil
}
