package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"sidekick/internal/agent"
	"sidekick/internal/appctx"
	"sidekick/internal/config"
	"sidekick/internal/db"
	"sidekick/internal/llm"
	"sidekick/internal/worker"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	verbose bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:     "sk",
	Short:   "Sidekick: ask a local codex or gemini agent about your data and scripts",
	Version: config.Version,
	Long: "Sidekick sends questions to a locally installed LLM agent CLI (codex or gemini). " +
		"The model may request read-only snapshots of the dataset, script, command log and last model " +
		"before it answers. Proposed scripts are only written when you ask for it.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output JSON")
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

// loadConfig resolves the config file.
// Priority: --config flag > ./sidekick.toml > ~/.config/sidekick/config.toml > defaults.
func loadConfig() (*config.Config, error) {
	return config.LoadDefault(cfgPath)
}

func openStore(cfg *config.Config) (*db.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	// Clean up orphaned WAL sidecar files if the main DB was deleted.
	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		_ = os.Remove(cfg.DBPath + "-shm")
		_ = os.Remove(cfg.DBPath + "-wal")
	}
	return db.Open(cfg.DBPath)
}

// assistant bundles what a command needs to ask questions.
type assistant struct {
	pool    *worker.Pool
	session *worker.Session
	source  *appctx.FileSource
}

// startAssistant wires the invoker, agent loop and worker pool. history may
// be nil to skip recording asks.
func startAssistant(ctx context.Context, cfg *config.Config, history worker.History) *assistant {
	inv := llm.NewInvoker(cfg.InvokerOptions())
	pool := worker.NewPool(cfg.Assistant.Workers, agent.NewLoop(inv), history)
	pool.Start(ctx)
	source := cfg.ContextSource()
	return &assistant{
		pool:    pool,
		session: worker.NewSession(pool, source),
		source:  source,
	}
}

func (a *assistant) close() {
	a.session.Close()
	a.pool.Stop()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// renderMarkdown renders text for the terminal via glamour, falling back to
// the text itself.
func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
