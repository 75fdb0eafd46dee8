package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// librariesCmd represents the libraries command
var librariesCmd = &cobra.Command{
	Use:   "libraries",
	Short: "Inspect media libraries",
	Long:  `Commands for viewing and refreshing the media server's library sections.`,
}

var librariesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List library sections from the last scan",
	RunE:  runLibrariesList,
}

var librariesScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Refresh the library snapshot from the media server",
	RunE:  runLibrariesScan,
}

func init() {
	rootCmd.AddCommand(librariesCmd)
	librariesCmd.AddCommand(librariesListCmd)
	librariesCmd.AddCommand(librariesScanCmd)
}

type libraryResponse struct {
	Key       string    `json:"key"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Agent     string    `json:"agent,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`
}

type librariesListResponse struct {
	Libraries []libraryResponse `json:"libraries"`
	Count     int               `json:"count"`
}

func renderLibraries(result librariesListResponse) error {
	if IsJSONOutput() {
		return printJSON(result)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Key", "Title", "Type", "Agent", "Scanned")

	for _, lib := range result.Libraries {
		agent := lib.Agent
		if agent == "" {
			agent = "-"
		}
		table.Append(
			lib.Key,
			lib.Title,
			lib.Type,
			agent,
			lib.ScannedAt.Format("2006-01-02 15:04"),
		)
	}

	table.Render()
	fmt.Printf("\nTotal sections: %d\n", result.Count)
	return nil
}

func runLibrariesList(cmd *cobra.Command, args []string) error {
	var result librariesListResponse
	if err := apiGet("/libraries", &result); err != nil {
		return err
	}
	return renderLibraries(result)
}

func runLibrariesScan(cmd *cobra.Command, args []string) error {
	var result librariesListResponse
	if err := apiCall("POST", "/libraries/scan", nil, http.StatusOK, &result); err != nil {
		return err
	}

	if !IsJSONOutput() {
		fmt.Println("✓ Library scan complete")
	}
	return renderLibraries(result)
}
