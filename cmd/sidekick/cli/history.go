package cli

import (
	"fmt"
	"strings"
	"time"

	"sidekick/internal/db"

	"github.com/spf13/cobra"
)

var (
	historyLimit     int
	historyPruneDays int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previously asked questions",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of questions to show (0 for all)")
	historyCmd.Flags().IntVar(&historyPruneDays, "prune-days", 0, "delete questions older than this many days first")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if historyLimit < 0 {
		return fmt.Errorf("invalid --limit %d; expected >= 0", historyLimit)
	}
	if historyPruneDays < 0 {
		return fmt.Errorf("invalid --prune-days %d; expected >= 0", historyPruneDays)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if historyPruneDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -historyPruneDays)
		n, err := store.DeleteAsksBefore(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
		if !jsonOut {
			fmt.Printf("Pruned %d question(s) older than %d day(s).\n", n, historyPruneDays)
		}
	}

	asks, err := store.ListAsks(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if jsonOut {
		if asks == nil {
			asks = []db.Ask{}
		}
		printJSON(asks)
		return nil
	}
	if len(asks) == 0 {
		fmt.Println("No questions yet. Run 'sk ask' or 'sk tui' to start.")
		return nil
	}

	fmt.Printf("%-10s %-10s %-8s %-7s %-8s %-50s %s\n", "ASK", "STATUS", "PROVIDER", "ROUNDS", "TIME", "QUESTION", "CREATED")
	fmt.Println(strings.Repeat("-", 120))
	failed := 0
	for _, a := range asks {
		if a.Status == "failed" {
			failed++
		}
		rounds, err := store.ListRounds(cmd.Context(), a.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%-10s %-10s %-8s %-7d %-8s %-50s %s\n",
			db.ShortID(a.ID), a.Status, a.Provider, len(rounds),
			fmt.Sprintf("%.1fs", float64(a.DurationMS)/1000),
			truncate(a.Question, 50), a.CreatedAt)
	}
	fmt.Printf("Total: %d questions (%d failed)\n", len(asks), failed)
	return nil
}
