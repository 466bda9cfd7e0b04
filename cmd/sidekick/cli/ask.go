package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"sidekick/internal/appctx"
	"sidekick/internal/db"
	"sidekick/internal/llm"
	"sidekick/internal/worker"

	"github.com/spf13/cobra"
)

var (
	askProvider  string
	askNoTools   bool
	askDataset   bool
	askLastError bool
	askScript    bool
	askSelection string
	askRaw       bool
	askInsertOut string
	askNoHistory bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask the assistant a single question",
	Long: "Ask the assistant a single question and print its reply. " +
		"Use '-' as the question to read it from stdin.",
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askProvider, "provider", "p", "", "provider: codex or gemini (default from config)")
	askCmd.Flags().BoolVar(&askNoTools, "no-tools", false, "do not let the model request context tools")
	askCmd.Flags().BoolVar(&askDataset, "dataset", false, "include the dataset summary in the prompt")
	askCmd.Flags().BoolVar(&askLastError, "last-error", false, "include the last error in the prompt")
	askCmd.Flags().BoolVar(&askScript, "script", false, "include the script in the prompt")
	askCmd.Flags().StringVar(&askSelection, "selection", "", "script line range to include, e.g. 10-25")
	askCmd.Flags().BoolVar(&askRaw, "raw", false, "print the reply without markdown rendering")
	askCmd.Flags().StringVar(&askInsertOut, "insert-out", "", "write the proposed script to this file")
	askCmd.Flags().BoolVar(&askNoHistory, "no-history", false, "do not record this question in history")
	rootCmd.AddCommand(askCmd)
}

type askOutput struct {
	ID         string `json:"id"`
	Provider   string `json:"provider"`
	Reply      string `json:"reply"`
	Insert     string `json:"insert,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Rounds     int    `json:"rounds"`
	DurationMS int64  `json:"duration_ms"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	question, err := readQuestion(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	provider := cfg.DefaultProvider()
	if askProvider != "" {
		p, err := llm.ParseProvider(askProvider)
		if err != nil {
			return err
		}
		if p != llm.ProviderNone {
			provider = p
		}
	}

	dataset, lastError, script := cfg.Assistant.IncludeDataset, cfg.Assistant.IncludeLastError, cfg.Assistant.IncludeScript
	if cmd.Flags().Changed("dataset") {
		dataset = askDataset
	}
	if cmd.Flags().Changed("last-error") {
		lastError = askLastError
	}
	if cmd.Flags().Changed("script") {
		script = askScript
	}
	tools := cfg.Assistant.Tools && !askNoTools

	var history worker.History
	if !askNoHistory {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		history = store
	}

	ctx := cmd.Context()
	a := startAssistant(ctx, cfg, history)
	defer a.close()

	if askSelection != "" {
		sel, err := appctx.ParseLineRange(askSelection)
		if err != nil {
			return fmt.Errorf("--selection: %w", err)
		}
		a.source.Selection = sel
	}

	id, err := a.session.Ask(worker.Request{
		Question:     question,
		Provider:     provider,
		ToolsEnabled: tools,
		Sections:     a.source.Sections(dataset, lastError, script),
	})
	if err != nil {
		return err
	}

	var res worker.Result
	select {
	case c := <-a.session.Completions():
		r, ok := a.session.Accept(c)
		if !ok {
			return fmt.Errorf("ask %s: completion rejected", db.ShortID(id))
		}
		res = r
	case <-ctx.Done():
		return ctx.Err()
	}

	if askInsertOut != "" && res.Err == nil && res.Insert != "" {
		if err := os.WriteFile(askInsertOut, []byte(res.Insert), 0o644); err != nil {
			return fmt.Errorf("write insert: %w", err)
		}
		if !jsonOut {
			fmt.Fprintf(os.Stderr, "Proposed script written to %s\n", askInsertOut)
		}
	}

	if jsonOut {
		printJSON(askOutput{
			ID:         res.ID,
			Provider:   res.Provider.String(),
			Reply:      res.Reply,
			Insert:     res.Insert,
			Error:      errString(res.Err),
			ErrorKind:  llm.KindName(res.Err),
			Rounds:     len(res.Rounds),
			DurationMS: res.Duration.Milliseconds(),
		})
		return res.Err
	}
	if res.Err != nil {
		return res.Err
	}

	switch {
	case askRaw:
		fmt.Print(res.Reply)
		if !strings.HasSuffix(res.Reply, "\n") {
			fmt.Println()
		}
	default:
		fmt.Print(renderMarkdown(res.Reply))
	}
	return nil
}

// readQuestion joins the arguments, or reads stdin when the only argument
// is "-".
func readQuestion(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read question from stdin: %w", err)
		}
		args = []string{string(b)}
	}
	q := strings.TrimSpace(strings.Join(args, " "))
	if q == "" {
		return "", errors.New("empty question")
	}
	return q, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
