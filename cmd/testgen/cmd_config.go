package main

import (
	"fmt"
	"os"

	"testgen/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configCmd groups configuration commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the testgen configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to " + config.DefaultPath,
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (file, defaults and environment)",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := resolveConfigPath(resolveWorkspace())

	if _, err := os.Stat(path); err == nil && !configForce {
		fmt.Printf("Config already exists: %s (use --force to overwrite)\n", path)
		return nil
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Printf("Wrote default config to %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(e.cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}
