package cli

import (
	"fmt"
	"os"

	"sidekick/internal/llm"

	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the provider executables and settings are usable",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type providerCheck struct {
	Provider   string `json:"provider"`
	Executable string `json:"executable,omitempty"`
	OK         bool   `json:"ok"`
	Problem    string `json:"problem,omitempty"`
}

type doctorReport struct {
	Config         string          `json:"config"`
	Database       string          `json:"database"`
	LogFile        string          `json:"log_file"`
	Default        string          `json:"default_provider"`
	TimeoutSec     int             `json:"timeout_sec"`
	TimeoutUtility string          `json:"timeout_utility"`
	Unsafe         bool            `json:"unsafe"`
	Providers      []providerCheck `json:"providers"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	inv := llm.NewInvoker(cfg.InvokerOptions())

	report := doctorReport{
		Config:         cfg.Path,
		Database:       cfg.DBPath,
		LogFile:        cfg.LogFile,
		Default:        inv.DefaultProvider().String(),
		TimeoutSec:     int(inv.Timeout().Seconds()),
		TimeoutUtility: inv.TimeoutUtility(),
		Unsafe:         inv.Unsafe(),
	}
	usable := 0
	for _, p := range llm.Providers {
		check := providerCheck{Provider: p.String()}
		exe, err := inv.Resolve(p)
		switch {
		case err != nil:
			check.Problem = err.Error()
		default:
			check.Executable = exe
			if info, statErr := os.Stat(exe); statErr != nil {
				check.Problem = fmt.Sprintf("stat %s: %v", exe, statErr)
			} else if info.IsDir() {
				check.Problem = exe + " is a directory"
			} else {
				check.OK = true
				usable++
			}
		}
		report.Providers = append(report.Providers, check)
	}

	if jsonOut {
		printJSON(report)
	} else {
		printDoctor(report)
	}
	if usable == 0 {
		return fmt.Errorf("no usable provider found")
	}
	return nil
}

func printDoctor(r doctorReport) {
	kv := func(k, v string) {
		fmt.Printf("%-17s %s\n", k, v)
	}
	config := r.Config
	if config == "" {
		config = "(none, using defaults)"
	}
	kv("config", config)
	kv("database", r.Database)
	kv("log file", r.LogFile)
	kv("default provider", r.Default)
	kv("timeout", fmt.Sprintf("%ds", r.TimeoutSec))
	utility := r.TimeoutUtility
	if utility == "" {
		utility = "(unavailable, in-process deadline only)"
	}
	kv("timeout utility", utility)
	if r.Unsafe {
		kv("codex sandbox", "DISABLED (unsafe mode)")
	} else {
		kv("codex sandbox", "read-only")
	}
	fmt.Println()
	for _, c := range r.Providers {
		if c.OK {
			fmt.Printf("  ok    %-7s %s\n", c.Provider, c.Executable)
		} else {
			fmt.Printf("  FAIL  %-7s %s\n", c.Provider, c.Problem)
		}
	}
}
