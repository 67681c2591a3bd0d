package bench

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// Render writes the report as a human-readable table.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "benchmark %s: %s %s\n", r.RunID, r.Ticker, r.Range)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Layout", "Rows", "Best", "Median", "P95", "Max"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, res := range r.Results {
		table.Append([]string{
			res.Layout.String(),
			strconv.Itoa(res.Rows),
			res.Best.String(),
			res.Median.String(),
			res.P95.String(),
			res.Max.String(),
		})
	}

	table.Render()
}
