package cmd

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	followRun    bool
	historyLimit int
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Manage sync runs",
	Long:  `Commands for triggering and inspecting reconciliation runs against the Plex account.`,
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Trigger a sync run",
	Long:  `Trigger a reconciliation pass. The run executes in the background; use --follow to wait for it.`,
	RunE:  runSyncRun,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status [run]",
	Short: "Show a sync run",
	Long:  `Show one sync run by sequence number or UUID. Without an argument, shows the most recent run.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSyncStatus,
}

var syncHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent sync runs",
	RunE:  runSyncHistory,
}

var syncEventsCmd = &cobra.Command{
	Use:   "events <run>",
	Short: "Show the state history of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncEvents,
}

var syncCancelCmd = &cobra.Command{
	Use:   "cancel <run>",
	Short: "Cancel a sync run",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncCancel,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncRunCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncHistoryCmd)
	syncCmd.AddCommand(syncEventsCmd)
	syncCmd.AddCommand(syncCancelCmd)

	syncRunCmd.Flags().BoolVar(&followRun, "follow", false, "poll the run every 2 seconds until it finishes")
	syncHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
}

type runResponse struct {
	ID              string     `json:"id"`
	SequenceNumber  int        `json:"sequence_number,omitempty"`
	Trigger         string     `json:"trigger"`
	Status          string     `json:"status"`
	Imported        int        `json:"imported"`
	Removed         int        `json:"removed"`
	Matched         int        `json:"matched"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
}

type runsListResponse struct {
	Runs  []runResponse `json:"runs"`
	Count int           `json:"count"`
}

type eventResponse struct {
	RunID     string    `json:"run_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func isTerminalStatus(status string) bool {
	return status == "completed" || status == "failed" || status == "cancelled"
}

func fetchRun(idOrSeq string) (*runResponse, error) {
	var result runResponse
	if err := apiGet("/sync/runs/"+idOrSeq, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func displayRun(run *runResponse) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")

	table.Append("Run #", fmt.Sprintf("%d", run.SequenceNumber))
	table.Append("Trigger", run.Trigger)
	table.Append("Status", run.Status)
	table.Append("Imported", fmt.Sprintf("%d", run.Imported))
	table.Append("Removed", fmt.Sprintf("%d", run.Removed))
	table.Append("Matched", fmt.Sprintf("%d", run.Matched))
	table.Append("Created At", run.CreatedAt.Format(time.RFC3339))
	if run.StartedAt != nil {
		table.Append("Started At", run.StartedAt.Format(time.RFC3339))
	}
	if run.CompletedAt != nil {
		table.Append("Completed At", run.CompletedAt.Format(time.RFC3339))
	}
	if run.DurationSeconds > 0 {
		table.Append("Duration", fmt.Sprintf("%.2fs", run.DurationSeconds))
	}
	if run.Error != "" {
		table.Append("Error", run.Error)
	}

	table.Render()
}

func runSyncRun(cmd *cobra.Command, args []string) error {
	var run runResponse
	if err := apiCall("POST", "/sync", nil, http.StatusAccepted, &run); err != nil {
		return err
	}

	if !followRun {
		if IsJSONOutput() {
			return printJSON(run)
		}
		fmt.Printf("✓ Sync run #%d started\n", run.SequenceNumber)
		fmt.Printf("Follow it with: usher sync status %d\n", run.SequenceNumber)
		return nil
	}

	seq := strconv.Itoa(run.SequenceNumber)
	fmt.Printf("Following sync run #%d (press Ctrl+C to stop)...\n\n", run.SequenceNumber)
	for {
		current, err := fetchRun(seq)
		if err != nil {
			return err
		}

		if isTerminalStatus(current.Status) {
			if IsJSONOutput() {
				return printJSON(current)
			}
			displayRun(current)
			if current.Status != "completed" {
				return fmt.Errorf("sync run #%d %s", current.SequenceNumber, current.Status)
			}
			fmt.Printf("\n✓ Sync run #%d completed: %d imported, %d removed, %d matched\n",
				current.SequenceNumber, current.Imported, current.Removed, current.Matched)
			return nil
		}

		time.Sleep(2 * time.Second)
	}
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		run, err := fetchRun(args[0])
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(run)
		}
		displayRun(run)
		return nil
	}

	// No argument: show the newest run
	var result runsListResponse
	if err := apiGet("/sync/runs?limit=1", &result); err != nil {
		return err
	}
	if result.Count == 0 {
		fmt.Println("No sync runs yet")
		return nil
	}
	if IsJSONOutput() {
		return printJSON(result.Runs[0])
	}
	displayRun(&result.Runs[0])
	return nil
}

func runSyncHistory(cmd *cobra.Command, args []string) error {
	var result runsListResponse
	if err := apiGet(fmt.Sprintf("/sync/runs?limit=%d", historyLimit), &result); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(result)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Run #", "Trigger", "Status", "Imported", "Removed", "Matched", "Created")

	for _, run := range result.Runs {
		table.Append(
			fmt.Sprintf("%d", run.SequenceNumber),
			run.Trigger,
			run.Status,
			fmt.Sprintf("%d", run.Imported),
			fmt.Sprintf("%d", run.Removed),
			fmt.Sprintf("%d", run.Matched),
			run.CreatedAt.Format("2006-01-02 15:04"),
		)
	}

	table.Render()
	fmt.Printf("\nTotal runs: %d\n", result.Count)
	return nil
}

func runSyncEvents(cmd *cobra.Command, args []string) error {
	var result struct {
		RunID  string          `json:"run_id"`
		Events []eventResponse `json:"events"`
		Count  int             `json:"count"`
	}
	if err := apiGet("/sync/runs/"+args[0]+"/events", &result); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(result)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Time", "From", "To", "Note")

	for _, event := range result.Events {
		note := event.Note
		if note == "" {
			note = "-"
		}
		table.Append(
			event.Timestamp.Format("15:04:05"),
			event.From,
			event.To,
			note,
		)
	}

	table.Render()
	return nil
}

func runSyncCancel(cmd *cobra.Command, args []string) error {
	var run runResponse
	if err := apiCall("POST", "/sync/runs/"+args[0]+"/cancel", nil, http.StatusOK, &run); err != nil {
		return err
	}

	fmt.Printf("✓ Sync run #%d cancelled\n", run.SequenceNumber)
	return nil
}
