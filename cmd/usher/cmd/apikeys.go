package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	keyName string
	keyRole string
)

// apikeysCmd represents the apikeys command
var apikeysCmd = &cobra.Command{
	Use:   "apikeys",
	Short: "Manage API keys",
	Long:  `Commands for issuing and revoking usherd API keys. Requires an admin key.`,
}

var apikeysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a new API key",
	Long: `Issue a new API key with the given role. The raw key is printed once
and cannot be recovered afterwards.`,
	RunE: runAPIKeysCreate,
}

var apikeysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	RunE:  runAPIKeysList,
}

var apikeysRevokeCmd = &cobra.Command{
	Use:   "revoke <key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeysRevoke,
}

func init() {
	rootCmd.AddCommand(apikeysCmd)
	apikeysCmd.AddCommand(apikeysCreateCmd)
	apikeysCmd.AddCommand(apikeysListCmd)
	apikeysCmd.AddCommand(apikeysRevokeCmd)

	apikeysCreateCmd.Flags().StringVar(&keyName, "name", "", "key name (required, e.g. 'ci' or 'dashboard')")
	apikeysCreateCmd.Flags().StringVar(&keyRole, "role", "viewer", "key role: admin, operator or viewer")
	apikeysCreateCmd.MarkFlagRequired("name")
}

type apiKeyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Key        string     `json:"key,omitempty"`
	Role       string     `json:"role"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

type apiKeysListResponse struct {
	Keys  []apiKeyResponse `json:"keys"`
	Count int              `json:"count"`
}

func runAPIKeysCreate(cmd *cobra.Command, args []string) error {
	payload := map[string]string{
		"name": keyName,
		"role": keyRole,
	}

	var result apiKeyResponse
	if err := apiCall("POST", "/apikeys", payload, http.StatusCreated, &result); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(result)
	}

	fmt.Printf("✓ API key %q created (role %s)\n\n", result.Name, result.Role)
	fmt.Printf("  %s\n\n", result.Key)
	fmt.Println("Store it now. The key is not shown again.")
	return nil
}

func runAPIKeysList(cmd *cobra.Command, args []string) error {
	var result apiKeysListResponse
	if err := apiGet("/apikeys", &result); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(result)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Role", "Created", "Last Used")

	for _, key := range result.Keys {
		lastUsed := "never"
		if key.LastUsedAt != nil {
			lastUsed = key.LastUsedAt.Format("2006-01-02 15:04")
		}
		table.Append(
			key.ID,
			key.Name,
			key.Role,
			key.CreatedAt.Format("2006-01-02 15:04"),
			lastUsed,
		)
	}

	table.Render()
	fmt.Printf("\nTotal keys: %d\n", result.Count)
	return nil
}

func runAPIKeysRevoke(cmd *cobra.Command, args []string) error {
	if err := apiCall("DELETE", "/apikeys/"+args[0], nil, http.StatusNoContent, nil); err != nil {
		return err
	}

	fmt.Printf("✓ API key %s revoked\n", args[0])
	return nil
}
