// Package richlist renders the holder payout preview as a markdown
// table for terminal output.
package richlist

import (
	"fmt"
	"sort"
	"strings"

	"payout-engine/internal/payout"
)

// Table renders the plan entries sorted by holding, largest first.
// Accounts are left-aligned, numbers right-aligned, payments fixed to
// four decimal places. Holdings compare numerically, so 9 sorts below
// 100.
func Table(plan *payout.Plan) string {
	entries := make([]payout.Entry, len(plan.Entries))
	copy(entries, plan.Entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SourceBalance.GreaterThan(entries[j].SourceBalance)
	})

	header := [3]string{"Account", "Holding", "Payment"}
	widths := [3]int{len(header[0]), len(header[1]), len(header[2])}

	rows := make([][3]string, 0, len(entries))
	for _, e := range entries {
		row := [3]string{e.Account, e.SourceBalance.String(), e.Amount.StringFixed(4)}
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
		rows = append(rows, row)
	}

	var table strings.Builder
	table.WriteString(fmt.Sprintf("| %-*s | %*s | %*s |\n",
		widths[0], header[0], widths[1], header[1], widths[2], header[2]))
	table.WriteString(fmt.Sprintf("| :%s | %s: | %s: |\n",
		strings.Repeat("-", widths[0]-1),
		strings.Repeat("-", widths[1]-1),
		strings.Repeat("-", widths[2]-1)))
	for _, row := range rows {
		table.WriteString(fmt.Sprintf("| %-*s | %*s | %*s |\n",
			widths[0], row[0], widths[1], row[1], widths[2], row[2]))
	}
	return table.String()
}
