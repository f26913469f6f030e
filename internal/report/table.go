package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/wonny/picker/internal/screener"
)

// RenderTable writes up to limit picks as an aligned console table. A
// limit of zero shows everything.
func RenderTable(w io.Writer, picks []screener.Pick, limit int) {
	if limit <= 0 || limit > len(picks) {
		limit = len(picks)
	}
	shown := picks[:limit]

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Code", "Name", "Close", "Chg%", "Strategies", "Score", "Stop", "Target"})
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)

	for i, pick := range shown {
		table.Append([]string{
			strconv.Itoa(i + 1),
			pick.InstrumentID,
			pick.Name,
			fmt.Sprintf("%.2f", pick.Close),
			fmt.Sprintf("%+.2f", pick.ChangePct),
			strings.Join(pick.MatchedStrategies, ","),
			fmt.Sprintf("%.1f", pick.AvgScore),
			fmt.Sprintf("-%.0f%%", pick.StopLoss*100),
			fmt.Sprintf("+%.0f%%", pick.TakeProfit*100),
		})
	}

	if len(shown) > 0 {
		avgScore := lo.SumBy(shown, func(p screener.Pick) float64 {
			return p.AvgScore
		}) / float64(len(shown))
		table.SetFooter([]string{
			"", "", "", "", "",
			fmt.Sprintf("%d picks", len(picks)),
			fmt.Sprintf("%.1f", avgScore),
			"", "",
		})
	}

	table.Render()
}
