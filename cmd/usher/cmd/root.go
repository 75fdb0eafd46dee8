package cmd

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serverURL    string
	apiKey       string
	outputFormat string
	cfgFile      string
	insecure     bool
	timeout      time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "usher",
	Short: "CLI for the usher membership service",
	Long: `usher is a command line interface for the usher daemon, which keeps
a local database of Plex account members in sync with plex.tv.`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.usher/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "usherd API URL (default from config or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key (default from config or USHER_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
	rootCmd.PersistentFlags().BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(filepath.Join(home, ".usher"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	viper.BindEnv("api_key", "USHER_API_KEY")
	viper.BindEnv("server_url", "USHER_SERVER_URL")

	// Flags win over config file values
	if err := viper.ReadInConfig(); err == nil {
		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if apiKey == "" {
			apiKey = viper.GetString("api_key")
		}
	}
	if apiKey == "" {
		apiKey = viper.GetString("api_key")
	}
	if serverURL == "" {
		serverURL = viper.GetString("server_url")
	}
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
}

// GetServerURL returns the configured daemon URL with trailing slashes removed
func GetServerURL() string {
	return strings.TrimRight(serverURL, "/")
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

// GetHTTPClient returns an HTTP client honoring the timeout and TLS flags
func GetHTTPClient() *http.Client {
	client := &http.Client{Timeout: timeout}
	if insecure {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return client
}

// CreateAuthenticatedRequest creates an HTTP request with the API key attached
func CreateAuthenticatedRequest(method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}
	return req, nil
}

// apiGet performs a GET against the daemon and decodes the JSON response
// into out. Non-2xx answers come back as errors carrying the body.
func apiGet(path string, out interface{}) error {
	return apiCall("GET", path, nil, http.StatusOK, out)
}

// apiCall performs one request round trip. A nil out discards the body.
func apiCall(method, path string, payload interface{}, wantStatus int, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := CreateAuthenticatedRequest(method, GetServerURL()+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := GetHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to usherd: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// printJSON renders v as indented JSON on stdout
func printJSON(v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(output))
	return nil
}
