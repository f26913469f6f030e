package report

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/wonny/picker/internal/screener"
)

const (
	messageTopN      = 10
	shortMessageTopN = 5

	divider = "━━━━━━━━━━━━━━━━━━\n"
)

// MessageTitle is the subject line for one scan's notification.
func MessageTitle(result *screener.Result) string {
	return fmt.Sprintf("选股结果 %s (%d只)", result.Date.Format("2006-01-02"), len(result.Picks))
}

// FormatMessage builds the full push-notification body: header, top ten
// picks with consensus badges, risk footer.
func FormatMessage(result *screener.Result) string {
	date := result.Date.Format("2006-01-02")
	if len(result.Picks) == 0 {
		return fmt.Sprintf("📊 【选股结果】%s\n\n未找到符合条件的股票 ❌", date)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 【选股结果】%s\n\n", date)
	fmt.Fprintf(&b, "✅ 共找到 %d 只符合条件的股票\n\n", len(result.Picks))

	b.WriteString(divider)
	b.WriteString("🏆 TOP10 推荐股票：\n")
	b.WriteString(divider)
	b.WriteString("\n")

	for _, pick := range topPicks(result.Picks, messageTopN) {
		fmt.Fprintf(&b, "%s %s (%s)\n", badge(pick.StrategyCount), pick.Name, pick.InstrumentID)
		fmt.Fprintf(&b, "   💰 价格: ¥%.2f  📈 %+.2f%%\n", pick.Close, pick.ChangePct)
		if len(pick.MatchedStrategies) > 0 {
			fmt.Fprintf(&b, "   🎯 策略: %s\n", strings.Join(prettyStrategies(pick.MatchedStrategies), ", "))
		}
		fmt.Fprintf(&b, "   ⭐ 评分: %.1f/100\n", pick.AvgScore)
		fmt.Fprintf(&b, "   🛡️ 止损: -%.1f%%  |  🎯 止盈: +%.1f%%\n\n", pick.StopLoss*100, pick.TakeProfit*100)
	}

	b.WriteString(divider)
	b.WriteString("⚠️  风险提示：\n")
	b.WriteString("• 本系统仅供参考，不构成投资建议\n")
	b.WriteString("• 股市有风险，投资需谨慎\n")
	b.WriteString("• 建议结合多维度分析判断\n")
	b.WriteString("• 严格执行止损纪律\n")
	b.WriteString(divider)

	return b.String()
}

// FormatShortMessage is the compact variant for small notification panes.
func FormatShortMessage(result *screener.Result) string {
	if len(result.Picks) == 0 {
		return fmt.Sprintf("📊 %s 选股结果：无符合条件的股票", result.Date.Format("2006-01-02"))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 【%s】找到 %d 只\n\n", result.Date.Format("01-02"), len(result.Picks))

	for _, pick := range topPicks(result.Picks, shortMessageTopN) {
		marker := "✓"
		if pick.StrategyCount >= 2 {
			marker = "🔥"
		}
		fmt.Fprintf(&b, "%s %s\n", marker, pick.Name)
		fmt.Fprintf(&b, "   ¥%.2f  %+.2f%%\n", pick.Close, pick.ChangePct)
		fmt.Fprintf(&b, "   止损:%d%%  止盈:%d%%\n\n", int(pick.StopLoss*100), int(pick.TakeProfit*100))
	}

	b.WriteString("⚠️ 仅供参考，严格止损")
	return b.String()
}

// badge grades a pick by how many strategies agreed on it.
func badge(strategyCount int) string {
	switch {
	case strategyCount >= 3:
		return "🔥"
	case strategyCount == 2:
		return "⭐"
	default:
		return "✓"
	}
}

func topPicks(picks []screener.Pick, n int) []screener.Pick {
	if len(picks) <= n {
		return picks
	}
	return picks[:n]
}

// prettyStrategies turns registry names into display form: ma_trend
// becomes Ma Trend.
func prettyStrategies(names []string) []string {
	return lo.Map(names, func(name string, _ int) string {
		words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
		for i, w := range words {
			if w != "" {
				words[i] = strings.ToUpper(w[:1]) + w[1:]
			}
		}
		return strings.Join(words, " ")
	})
}
