package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"promptpilot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		redacted := *cfg
		if redacted.Provider.APIKey != "" {
			redacted.Provider.APIKey = "<set>"
		}
		if redacted.Provider.Fallback != nil && redacted.Provider.Fallback.APIKey != "" {
			fb := *redacted.Provider.Fallback
			fb.APIKey = "<set>"
			redacted.Provider.Fallback = &fb
		}
		data, err := yaml.Marshal(&redacted)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Println("wrote", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
