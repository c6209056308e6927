package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// logsResponse is returned by the log endpoints
type logsResponse struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
	Entries  []struct {
		Timestamp string         `json:"timestamp"`
		Level     string         `json:"level"`
		Message   string         `json:"message"`
		Fields    map[string]any `json:"fields"`
	} `json:"entries"`
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "View server logs (general, queue, access, error)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := "queue"
		if len(args) == 1 {
			category = args[0]
		}
		limit, _ := cmd.Flags().GetInt("limit")
		search, _ := cmd.Flags().GetString("search")
		date, _ := cmd.Flags().GetString("date")

		params := url.Values{}
		params.Set("limit", fmt.Sprint(limit))
		if date != "" {
			params.Set("date", date)
		}

		path := "/api/v1/logs/" + url.PathEscape(category)
		if search != "" {
			path += "/search"
			params.Set("q", search)
		}

		var resp logsResponse
		if err := client().get(path+"?"+params.Encode(), &resp); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, resp)
		}
		for _, e := range resp.Entries {
			fmt.Fprintf(out, "%s %-5s %s", e.Timestamp, e.Level, e.Message)
			for k, v := range e.Fields {
				fmt.Fprintf(out, " %s=%v", k, v)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().IntP("limit", "n", 50, "Number of entries")
	logsCmd.Flags().StringP("search", "s", "", "Only entries containing this text")
	logsCmd.Flags().StringP("date", "d", "", "Day to read (YYYY-MM-DD), defaults to today")
}
