package cmd

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/usher/pkg/models"
)

var (
	validateURL   string
	validateToken string
)

// settingsCmd represents the settings command
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage daemon settings",
	Long: `Commands for reading and writing usherd settings, including the Plex
connection. Secret values are always shown masked.`,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings",
	RunE:  runSettingsList,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Create or update a setting",
	Long: `Create or update a setting. The Plex connection uses the keys
server_url and server_api_key.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Probe the Plex connection",
	Long: `Dial the media server and report whether it answers and accepts the
configured token. Pass --url and --token to probe values before saving
them; they are not persisted.`,
	RunE: runSettingsValidate,
}

var settingsExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export settings to a YAML file",
	Long: `Write the daemon's settings to a YAML file as a key-value map. Secret
values only leave the daemon masked and are skipped, so an exported file
can be checked in; set server_api_key again after importing.`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsExport,
}

var settingsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import settings from a YAML file",
	Long:  `Apply every key-value pair from a YAML file produced by settings export.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsImport,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsValidateCmd)
	settingsCmd.AddCommand(settingsExportCmd)
	settingsCmd.AddCommand(settingsImportCmd)

	settingsValidateCmd.Flags().StringVar(&validateURL, "url", "", "probe this server URL instead of the stored one")
	settingsValidateCmd.Flags().StringVar(&validateToken, "token", "", "probe this token instead of the stored one")
}

type settingResponse struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type settingsListResponse struct {
	Settings []settingResponse `json:"settings"`
	Count    int               `json:"count"`
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	var result settingsListResponse
	if err := apiGet("/settings", &result); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(result)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Key", "Value", "Updated")

	for _, s := range result.Settings {
		table.Append(s.Key, s.Value, s.UpdatedAt.Format("2006-01-02 15:04"))
	}

	table.Render()
	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	var result settingResponse
	if err := apiGet("/settings/"+args[0], &result); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(result)
	}

	fmt.Printf("%s = %s\n", result.Key, result.Value)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	payload := map[string]string{"value": args[1]}

	var result settingResponse
	if err := apiCall("PUT", "/settings/"+args[0], payload, http.StatusOK, &result); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(result)
	}

	fmt.Printf("✓ %s = %s\n", result.Key, result.Value)
	return nil
}

func runSettingsValidate(cmd *cobra.Command, args []string) error {
	payload := map[string]string{}
	if validateURL != "" {
		payload["server_url"] = validateURL
	}
	if validateToken != "" {
		payload["server_api_key"] = validateToken
	}

	var result struct {
		Reachable         bool   `json:"reachable"`
		TokenValid        bool   `json:"token_valid"`
		MachineIdentifier string `json:"machine_identifier,omitempty"`
		Version           string `json:"version,omitempty"`
		Claimed           bool   `json:"claimed,omitempty"`
		Error             string `json:"error,omitempty"`
	}
	if err := apiCall("POST", "/settings/validate", payload, http.StatusOK, &result); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(result)
	}

	if !result.Reachable {
		fmt.Println("✗ Media server unreachable")
		if result.Error != "" {
			fmt.Printf("  %s\n", result.Error)
		}
		os.Exit(1)
	}

	fmt.Println("✓ Media server reachable")
	fmt.Printf("  Machine ID: %s\n", result.MachineIdentifier)
	fmt.Printf("  Version:    %s\n", result.Version)
	if result.TokenValid {
		fmt.Println("✓ Token accepted")
	} else {
		fmt.Println("✗ Token rejected")
		if result.Error != "" {
			fmt.Printf("  %s\n", result.Error)
		}
		os.Exit(1)
	}
	return nil
}

func runSettingsExport(cmd *cobra.Command, args []string) error {
	var result settingsListResponse
	if err := apiGet("/settings", &result); err != nil {
		return err
	}

	values := make(map[string]string, len(result.Settings))
	skipped := 0
	for _, s := range result.Settings {
		if (models.Setting{Key: s.Key}).IsSecret() {
			skipped++
			continue
		}
		values[s.Key] = s.Value
	}

	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(args[0], data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", args[0], err)
	}

	fmt.Printf("✓ Exported %d settings to %s\n", len(values), args[0])
	if skipped > 0 {
		fmt.Printf("  %d secret settings skipped; set them again after importing\n", skipped)
	}
	return nil
}

func runSettingsImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	var values map[string]string
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		payload := map[string]string{"value": values[key]}
		if err := apiCall("PUT", "/settings/"+key, payload, http.StatusOK, nil); err != nil {
			return fmt.Errorf("failed to import %s: %w", key, err)
		}
		fmt.Printf("✓ %s\n", key)
	}

	fmt.Printf("Imported %d settings\n", len(keys))
	return nil
}
