package cli

import (
	"fmt"
	"strings"

	"sidekick/internal/db"

	"github.com/spf13/cobra"
)

var showRounds bool

var showCmd = &cobra.Command{
	Use:   "show <ask-id>",
	Short: "Show a recorded question and its reply",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showRounds, "rounds", false, "include the prompt and raw response of every round")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.ResolveAskID(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	ask, err := store.GetAsk(cmd.Context(), id)
	if err != nil {
		return err
	}
	rounds, err := store.ListRounds(cmd.Context(), id)
	if err != nil {
		return err
	}

	if jsonOut {
		if rounds == nil {
			rounds = []db.Round{}
		}
		printJSON(struct {
			Ask    db.Ask     `json:"ask"`
			Rounds []db.Round `json:"rounds"`
		}{Ask: ask, Rounds: rounds})
		return nil
	}

	kv := func(k, v string) {
		fmt.Printf("%-10s %s\n", k+":", v)
	}
	kv("Ask", ask.ID)
	kv("Provider", ask.Provider)
	kv("Tools", fmt.Sprintf("%v", ask.ToolsEnabled))
	kv("Status", ask.Status)
	if ask.ErrorKind != "" {
		kv("Error", fmt.Sprintf("%s: %s", ask.ErrorKind, ask.ErrorMessage))
	}
	kv("Rounds", fmt.Sprintf("%d", len(rounds)))
	kv("Duration", fmt.Sprintf("%.1fs", float64(ask.DurationMS)/1000))
	kv("Created", ask.CreatedAt)
	fmt.Println()
	fmt.Println("Question:")
	fmt.Println(ask.Question)
	fmt.Println()
	fmt.Println("Reply:")
	fmt.Println(strings.TrimRight(ask.ReplyText, "\n"))

	if showRounds {
		for _, r := range rounds {
			fmt.Println()
			fmt.Printf("── round %d (%s, %d tool call(s), %.1fs) ──\n", r.Round, r.Status, r.ToolCalls, float64(r.DurationMS)/1000)
			fmt.Println("Prompt:")
			fmt.Println(strings.TrimRight(r.PromptText, "\n"))
			fmt.Println("Response:")
			if r.ErrorMessage != "" {
				fmt.Println(r.ErrorMessage)
			} else {
				fmt.Println(strings.TrimRight(r.ResponseText, "\n"))
			}
		}
	}
	return nil
}
