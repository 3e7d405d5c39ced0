// Package cli holds output formatting for reexctl.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/reex/reexd/internal/models"
)

func FormatJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func FormatFoldersTable(folders []models.Folder) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPATH\tSHELL\tCOMMANDS\tREMOTE URL")

	for _, f := range folders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			shortID(f.ID.String()),
			f.Name,
			f.Path,
			f.ShellPath,
			len(f.Commands),
			orDash(f.RemoteTaskURL),
		)
	}

	return w.Flush()
}

func FormatCommandsTable(commands []models.Command) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTEMPLATE\tPLACEHOLDERS")

	for _, c := range commands {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			shortID(c.ID.String()),
			c.Name,
			c.Cmd,
			orDash(strings.Join(c.Placeholders(), ", ")),
		)
	}

	return w.Flush()
}

func FormatRecordsTable(records []models.ExecutionRecord) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tCOMMAND\tEXIT\tORIGIN\tTASK")

	for _, r := range records {
		origin := "manual"
		taskID := "-"
		if r.IsRemote {
			origin = "remote"
		}
		if r.RemoteCommandID != nil {
			taskID = fmt.Sprintf("%d", *r.RemoteCommandID)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Command,
			formatExitCode(r.ExitCode),
			origin,
			taskID,
		)
	}

	return w.Flush()
}

func formatExitCode(code int32) string {
	switch code {
	case models.ExitLaunchFailure:
		return "launch failed"
	case models.ExitPreempted:
		return "preempted"
	default:
		return fmt.Sprintf("%d", code)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
