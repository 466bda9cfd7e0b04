package cli

import (
	"fmt"

	"sidekick/internal/config"

	"github.com/spf13/cobra"
)

var configInitLocal bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the sidekick config",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use",
	RunE:  runConfigPath,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config after defaults and environment overrides",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitLocal, "local", false, "write ./"+config.LocalConfigName+" instead of the per-user config")
	configCmd.AddCommand(configPathCmd, configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := config.Locate(cfgPath)
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Println("(none, using defaults)")
		return nil
	}
	fmt.Println(path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if jsonOut {
		printJSON(cfg)
		return nil
	}
	out, err := cfg.Encode()
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := cfgPath
	switch {
	case path != "":
	case configInitLocal:
		path = config.LocalConfigName
	default:
		global, err := config.GlobalConfigPath()
		if err != nil {
			return fmt.Errorf("resolve config dir: %w", err)
		}
		path = global
	}
	if err := config.WriteTemplate(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
