// Package report renders registry snapshots for consoles and logs.
package report

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/hupe1980/sessionmesh/core"
)

// WriteMatrix renders the snapshot as one row per field and one column per
// user: ids, login states (1/0), last request types, last outcomes and
// request counts.
func WriteMatrix(w io.Writer, sessions []core.UserSession) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	rows := []struct {
		label string
		cell  func(core.UserSession) string
	}{
		{"User IDs:", func(s core.UserSession) string { return strconv.Itoa(s.ID) }},
		{"Login States:", func(s core.UserSession) string { return boolDigit(s.LoggedIn) }},
		{"Request Types:", func(s core.UserSession) string { return s.LastRequestType.String() }},
		{"Outcomes:", func(s core.UserSession) string { return s.LastRequestStatus.String() }},
		{"Request Counts:", func(s core.UserSession) string { return strconv.Itoa(s.RequestCount) }},
	}
	for _, row := range rows {
		if _, err := fmt.Fprint(tw, row.label); err != nil {
			return err
		}
		for _, s := range sessions {
			if _, err := fmt.Fprint(tw, "\t", row.cell(s)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(tw, "\t"); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WriteTable renders the snapshot with one row per user.
func WriteTable(w io.Writer, sessions []core.UserSession) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "USER\tLOGGED IN\tLAST REQUEST\tOUTCOME\tREQUESTS"); err != nil {
		return err
	}
	for _, s := range sessions {
		if _, err := fmt.Fprintf(tw, "%d\t%t\t%s\t%s\t%d\n", s.ID, s.LoggedIn, s.LastRequestType, s.LastRequestStatus, s.RequestCount); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
