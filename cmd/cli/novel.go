package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yourusername/chapterd/internal/domain"
)

var novelCmd = &cobra.Command{
	Use:   "novel",
	Short: "Manage novel chapter downloads",
}

var novelAddCmd = &cobra.Command{
	Use:   "add [chapter-id...]",
	Short: "Queue novel chapters for download",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return novelBatch(cmd, http.MethodPost, args)
	},
}

var novelRemoveCmd = &cobra.Command{
	Use:   "remove [chapter-id...]",
	Short: "Remove novel chapters from the queue",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return novelBatch(cmd, http.MethodDelete, args)
	},
}

var novelStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the novel download queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var status domain.NovelDownloadStatus
		if err := client().get("/api/v1/novel-downloads/status", &status); err != nil {
			return err
		}
		return printNovelStatus(cmd.OutOrStdout(), status)
	},
}

var novelExportCmd = &cobra.Command{
	Use:   "export [novel-id]",
	Short: "Download the downloaded chapters of a novel as an EPUB",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		novelID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid novel id %q", args[0])
		}
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = fmt.Sprintf("novel-%d.epub", novelID)
		}

		var data string
		if err := client().get(fmt.Sprintf("/api/v1/novel/%d/epub", novelID), &data); err != nil {
			return err
		}
		if err := os.WriteFile(output, []byte(data), 0644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
		return nil
	},
}

func novelBatch(cmd *cobra.Command, method string, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	var status domain.NovelDownloadStatus
	if err := client().do(method, "/api/v1/novel-downloads/batch", map[string][]uint{"chapterIds": ids}, &status); err != nil {
		return err
	}
	return printNovelStatus(cmd.OutOrStdout(), status)
}

func init() {
	novelExportCmd.Flags().StringP("output", "o", "", "Output file (default novel-<id>.epub)")
	novelCmd.AddCommand(novelAddCmd, novelRemoveCmd, novelStatusCmd, novelExportCmd)
}
