package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the CLI configuration file",
	Long: `Commands for the CLI's own configuration file, which holds the daemon
URL and API key so they do not have to be passed on every invocation.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file from the current flags",
	Long: `Write $HOME/.usher/config.yaml using the values resolved from the
current flags and environment. Refuses to overwrite an existing file
unless --force is given.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
}

// cliConfig is the on-disk shape of the CLI config file
type cliConfig struct {
	ServerURL string `yaml:"server_url"`
	APIKey    string `yaml:"api_key,omitempty"`
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to find home directory: %w", err)
		}
		path = filepath.Join(home, ".usher", "config.yaml")
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cliConfig{
		ServerURL: GetServerURL(),
		APIKey:    apiKey,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may hold the API key, keep it owner-only
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Printf("✓ Wrote %s\n", path)
	if apiKey == "" {
		fmt.Println("  No API key configured; add api_key to the file or set USHER_API_KEY")
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	maskedKey := ""
	if apiKey != "" {
		if len(apiKey) > 8 {
			maskedKey = apiKey[:8] + "..."
		} else {
			maskedKey = "****"
		}
	}

	if IsJSONOutput() {
		return printJSON(map[string]string{
			"config_file": viper.ConfigFileUsed(),
			"server_url":  GetServerURL(),
			"api_key":     maskedKey,
			"output":      outputFormat,
		})
	}

	source := viper.ConfigFileUsed()
	if source == "" {
		source = "(none)"
	}
	fmt.Printf("Config file: %s\n", source)
	fmt.Printf("Server URL:  %s\n", GetServerURL())
	if maskedKey == "" {
		fmt.Println("API key:     (not set)")
	} else {
		fmt.Printf("API key:     %s\n", maskedKey)
	}
	fmt.Printf("Output:      %s\n", outputFormat)
	return nil
}
