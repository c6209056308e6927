package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/yourusername/chapterd/internal/domain"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDownloadStatus(w io.Writer, status domain.DownloadStatus) error {
	if jsonOutput {
		return writeJSON(w, status)
	}

	fmt.Fprintf(w, "Downloader: %s (%d queued)\n", status.Status, len(status.Queue))
	if len(status.Queue) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCHAPTER\tMANGA\tNAME\tSTATE\tPROGRESS\tTRIES")
	for i, d := range status.Queue {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%3.0f%%\t%d\n",
			i,
			d.Key(),
			truncate(d.MangaTitle, 30),
			truncate(d.ChapterName, 30),
			d.State,
			d.Progress*100,
			d.Tries)
	}
	return tw.Flush()
}

func printNovelStatus(w io.Writer, status domain.NovelDownloadStatus) error {
	if jsonOutput {
		return writeJSON(w, status)
	}

	state := "Stopped"
	if status.Running {
		state = "Started"
	}
	fmt.Fprintf(w, "Novel downloader: %s (%d queued)\n", state, len(status.Queue))
	if len(status.Queue) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCHAPTER ID\tNOVEL\tNAME\tSTATE\tTRIES\tERROR")
	for i, n := range status.Queue {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%d\t%s\n",
			i,
			n.ChapterID,
			truncate(n.NovelTitle, 30),
			truncate(n.ChapterName, 30),
			n.State,
			n.Tries,
			truncate(n.Error, 40))
	}
	return tw.Flush()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
