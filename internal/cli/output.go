package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/runoshun/boardsync/internal/domain"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSave reports a save outcome: the tag first, then the remote failure
// that kept the change from syncing, if any.
func printSave(w io.Writer, res domain.SaveResult, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "%s %s\n", saveTag(res.Status), fmt.Sprintf(format, args...))
	if res.Err != nil {
		_, _ = fmt.Fprintln(w, styleMuted.Render("  "+res.Err.Error()))
	}
}

func printStatus(w io.Writer, st domain.ConnectivityStatus) {
	_, _ = fmt.Fprintf(w, "%s %s\n", stateBadge(st.State), st.Message)
}

func newTable(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
