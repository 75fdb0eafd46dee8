package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// clientVersion is overridden at build time via -ldflags "-X ...cmd.clientVersion=..."
var clientVersion = "0.3.1"

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Show an operational snapshot of usherd: member counts, sync state and host load.`,
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("usher %s\n", clientVersion)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

type statusResponse struct {
	Version       string                 `json:"version"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Users         int                    `json:"users"`
	Libraries     int                    `json:"libraries"`
	Sync          map[string]interface{} `json:"sync"`
	Host          map[string]interface{} `json:"host"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	var result statusResponse
	if err := apiGet("/status", &result); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(result)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")

	table.Append("Server Version", result.Version)
	table.Append("Uptime", (time.Duration(result.UptimeSeconds) * time.Second).String())
	table.Append("Members", fmt.Sprintf("%d", result.Users))
	table.Append("Libraries", fmt.Sprintf("%d", result.Libraries))

	if byStatus, ok := result.Sync["runs_by_status"].(map[string]interface{}); ok {
		for _, status := range []string{"pending", "running", "completed", "failed", "cancelled"} {
			if n, ok := byStatus[status].(float64); ok && n > 0 {
				table.Append("Runs "+status, fmt.Sprintf("%.0f", n))
			}
		}
	}
	if active, ok := result.Sync["active_run"].(map[string]interface{}); ok {
		if seq, ok := active["sequence_number"].(float64); ok {
			table.Append("Active Run", fmt.Sprintf("#%.0f", seq))
		}
	}
	if sched, ok := result.Sync["scheduler"].(map[string]interface{}); ok {
		running := "stopped"
		if r, ok := sched["running"].(bool); ok && r {
			running = "running"
		}
		interval, _ := sched["interval"].(string)
		table.Append("Scheduler", fmt.Sprintf("%s (every %s)", running, interval))
	}

	if cpu, ok := result.Host["cpu_percent"].(float64); ok {
		table.Append("Host CPU", fmt.Sprintf("%.1f%%", cpu))
	}
	if used, ok := result.Host["memory_used_bytes"].(float64); ok {
		if total, ok := result.Host["memory_total_bytes"].(float64); ok && total > 0 {
			table.Append("Host Memory", fmt.Sprintf("%.1f / %.1f GB",
				used/(1<<30), total/(1<<30)))
		}
	}

	table.Render()
	return nil
}
