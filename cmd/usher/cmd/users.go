package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var keepRemote bool

// usersCmd represents the users command
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage tracked members",
	Long:  `Commands for listing and removing the Plex account members tracked by usherd.`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked members",
	RunE:  runUsersList,
}

var usersGetCmd = &cobra.Command{
	Use:   "get <user-id>",
	Short: "Show one member",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersGet,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Remove a member",
	Long: `Remove a member from the local database and, unless --keep-remote is
given, revoke their access on the Plex account. A member deleted locally
but kept remotely will be re-imported by the next sync.`,
	Args: cobra.ExactArgs(1),
	RunE: runUsersDelete,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersGetCmd)
	usersCmd.AddCommand(usersDeleteCmd)

	usersDeleteCmd.Flags().BoolVar(&keepRemote, "keep-remote", false, "delete the local record only, keep Plex access")
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	PlexID    string    `json:"plex_id"`
	Home      bool      `json:"home"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type usersListResponse struct {
	Users []userResponse `json:"users"`
	Count int            `json:"count"`
}

func runUsersList(cmd *cobra.Command, args []string) error {
	var result usersListResponse
	if err := apiGet("/users", &result); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(result)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Username", "Email", "Plex ID", "Home", "Synced")

	for _, user := range result.Users {
		email := user.Email
		if email == "" {
			email = "-"
		}
		table.Append(
			user.Username,
			email,
			user.PlexID,
			boolToYesNo(user.Home),
			user.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}

	table.Render()
	fmt.Printf("\nTotal members: %d\n", result.Count)
	return nil
}

func runUsersGet(cmd *cobra.Command, args []string) error {
	var result userResponse
	if err := apiGet("/users/"+args[0], &result); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(result)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")

	table.Append("ID", result.ID)
	table.Append("Username", result.Username)
	if result.Email != "" {
		table.Append("Email", result.Email)
	}
	table.Append("Plex ID", result.PlexID)
	table.Append("Home User", boolToYesNo(result.Home))
	table.Append("First Seen", result.CreatedAt.Format(time.RFC3339))
	table.Append("Last Synced", result.UpdatedAt.Format(time.RFC3339))

	table.Render()
	return nil
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	path := "/users/" + args[0]
	if keepRemote {
		path += "?remote=false"
	}

	if err := apiCall("DELETE", path, nil, http.StatusNoContent, nil); err != nil {
		return err
	}

	if keepRemote {
		fmt.Printf("✓ Member %s deleted locally (Plex access kept)\n", args[0])
	} else {
		fmt.Printf("✓ Member %s deleted and Plex access revoked\n", args[0])
	}
	return nil
}

func boolToYesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
