package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yourusername/chapterd/internal/domain"
)

func parseChapterKey(mangaArg, indexArg string) (domain.ChapterKey, error) {
	mangaID, err := strconv.ParseUint(mangaArg, 10, 64)
	if err != nil {
		return domain.ChapterKey{}, fmt.Errorf("invalid manga id %q", mangaArg)
	}
	index, err := strconv.Atoi(indexArg)
	if err != nil {
		return domain.ChapterKey{}, fmt.Errorf("invalid chapter index %q", indexArg)
	}
	return domain.ChapterKey{MangaID: uint(mangaID), ChapterIndex: index}, nil
}

func parseIDs(args []string) ([]uint, error) {
	ids := make([]uint, len(args))
	for i, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chapter id %q", arg)
		}
		ids[i] = uint(id)
	}
	return ids, nil
}

func chapterPath(key domain.ChapterKey) string {
	return fmt.Sprintf("/api/v1/download/%d/chapter/%d", key.MangaID, key.ChapterIndex)
}

// statusCommand builds a command that hits a control endpoint and prints the
// returned queue
func statusCommand(use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var status domain.DownloadStatus
			if err := client().get(path, &status); err != nil {
				return err
			}
			return printDownloadStatus(cmd.OutOrStdout(), status)
		},
	}
}

var (
	statusCmd = statusCommand("status", "Show the download queue", "/api/v1/downloads/status")
	startCmd  = statusCommand("start", "Start the downloader", "/api/v1/downloads/start")
	stopCmd   = statusCommand("stop", "Stop the downloader", "/api/v1/downloads/stop")
	clearCmd  = statusCommand("clear", "Stop the downloader and empty the queue", "/api/v1/downloads/clear")
)

var addCmd = &cobra.Command{
	Use:   "add [manga-id] [chapter-index]",
	Short: "Queue a chapter for download",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseChapterKey(args[0], args[1])
		if err != nil {
			return err
		}

		var status domain.DownloadStatus
		if err := client().get(chapterPath(key), &status); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Queued chapter %s\n", key)
		return printDownloadStatus(cmd.OutOrStdout(), status)
	},
}

// batchResponse is returned by the batch queue endpoint
type batchResponse struct {
	Queued int                   `json:"queued"`
	Errors []string              `json:"errors"`
	Status domain.DownloadStatus `json:"status"`
}

var addBatchCmd = &cobra.Command{
	Use:   "add-batch [chapter-id...]",
	Short: "Queue several chapters by chapter id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}

		var resp batchResponse
		if err := client().do(http.MethodPost, "/api/v1/download/batch", map[string][]uint{"chapterIds": ids}, &resp); err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Queued %d chapter(s)\n", resp.Queued)
		for _, e := range resp.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "  skipped: %s\n", e)
		}
		return printDownloadStatus(cmd.OutOrStdout(), resp.Status)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove [manga-id] [chapter-index]",
	Short: "Remove a chapter from the queue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseChapterKey(args[0], args[1])
		if err != nil {
			return err
		}

		var status domain.DownloadStatus
		if err := client().do(http.MethodDelete, chapterPath(key), nil, &status); err != nil {
			return err
		}
		return printDownloadStatus(cmd.OutOrStdout(), status)
	},
}

var reorderCmd = &cobra.Command{
	Use:   "reorder [manga-id] [chapter-index] [position]",
	Short: "Move a queued chapter to a new position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseChapterKey(args[0], args[1])
		if err != nil {
			return err
		}
		to, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid position %q", args[2])
		}

		var status domain.DownloadStatus
		path := fmt.Sprintf("%s/reorder/%d", chapterPath(key), to)
		if err := client().do(http.MethodPatch, path, nil, &status); err != nil {
			return err
		}
		return printDownloadStatus(cmd.OutOrStdout(), status)
	},
}
