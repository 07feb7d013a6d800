package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/withme/withme/internal/config"
	"github.com/withme/withme/internal/store"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Administer companion agents",
}

var agentCreateUser string
var agentCreateName string
var agentCreatePersona string
var agentCreateTimezone string
var agentCreateRomance bool
var agentCreateInitiation float64

var agentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a custom agent for a user",
	RunE:  runAgentCreate,
}

var agentScenarioAgent string
var agentScenarioTrack string
var agentScenarioTitle string

var agentScenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Seed or retitle one of an agent's scenario tracks",
	RunE:  runAgentScenario,
}

func init() {
	agentCreateCmd.Flags().StringVar(&agentCreateUser, "user", "", "User ID the agent belongs to")
	agentCreateCmd.MarkFlagRequired("user")
	agentCreateCmd.Flags().StringVar(&agentCreateName, "name", "Daniel", "Agent display name")
	agentCreateCmd.Flags().StringVar(&agentCreatePersona, "persona", "", "Persona description used in the system prompt")
	agentCreateCmd.Flags().StringVar(&agentCreateTimezone, "timezone", "UTC", "IANA timezone for availability windows")
	agentCreateCmd.Flags().BoolVar(&agentCreateRomance, "romance", true, "Allow romantic framing and image requests")
	agentCreateCmd.Flags().Float64Var(&agentCreateInitiation, "initiation", 0.4, "Chance the agent initiates after a daily event (0-1)")

	agentScenarioCmd.Flags().StringVar(&agentScenarioAgent, "agent", "", "Agent ID")
	agentScenarioCmd.MarkFlagRequired("agent")
	agentScenarioCmd.Flags().StringVar(&agentScenarioTrack, "track", "", "Scenario track (A, B, C, or D)")
	agentScenarioCmd.MarkFlagRequired("track")
	agentScenarioCmd.Flags().StringVar(&agentScenarioTitle, "title", "", "Scenario title")
	agentScenarioCmd.MarkFlagRequired("title")

	agentCmd.AddCommand(agentCreateCmd)
	agentCmd.AddCommand(agentScenarioCmd)
}

func openConfiguredStore() (*store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(cfg.Paths.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func runAgentCreate(cmd *cobra.Command, args []string) error {
	printHeader("🧬 withMe Agent")

	st, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.GetOrCreateUser(agentCreateUser, ""); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	agent, err := st.CreateAgent(&store.Agent{
		UserID:             agentCreateUser,
		Name:               agentCreateName,
		Persona:            agentCreatePersona,
		RomanceAllowed:     agentCreateRomance,
		InitiationTendency: agentCreateInitiation,
		Affinity:           0.3,
		Timezone:           agentCreateTimezone,
	})
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	fmt.Printf("Created agent %s (%s) for user %s\n", agent.Name, agent.ID, agent.UserID)
	fmt.Println("Scenario tracks A-D seeded with defaults; retitle with 'withme agent scenario'.")
	return nil
}

func runAgentScenario(cmd *cobra.Command, args []string) error {
	printHeader("🧬 withMe Agent")

	track := strings.ToUpper(strings.TrimSpace(agentScenarioTrack))
	switch track {
	case "A", "B", "C", "D":
	default:
		return fmt.Errorf("track must be one of A, B, C, D")
	}

	st, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer st.Close()

	agent, err := st.GetAgent(agentScenarioAgent)
	if err != nil {
		return fmt.Errorf("get agent: %w", err)
	}
	if agent == nil {
		return fmt.Errorf("agent %s not found", agentScenarioAgent)
	}
	if err := st.SeedScenario(agent.ID, track, agentScenarioTitle); err != nil {
		return fmt.Errorf("seed scenario: %w", err)
	}

	fmt.Printf("Scenario [%s] for %s set to %q\n", track, agent.Name, agentScenarioTitle)
	return nil
}
