package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/picker/internal/screener"
)

func sampleResult() *screener.Result {
	return &screener.Result{
		Status:    screener.StatusOK,
		Date:      time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Picks:     samplePicks(),
		Evaluated: 120,
		Skipped:   3,
	}
}

func TestMessageTitle(t *testing.T) {
	assert.Equal(t, "选股结果 2024-01-15 (2只)", MessageTitle(sampleResult()))
}

func TestFormatMessage(t *testing.T) {
	msg := FormatMessage(sampleResult())

	assert.Contains(t, msg, "【选股结果】2024-01-15")
	assert.Contains(t, msg, "共找到 2 只符合条件的股票")
	assert.Contains(t, msg, "TOP10 推荐股票")

	// Two agreeing strategies earn the star badge.
	assert.Contains(t, msg, "⭐ 万科A (000002)")
	assert.Contains(t, msg, "✓ 贵州茅台 (600519)")

	assert.Contains(t, msg, "价格: ¥8.88")
	assert.Contains(t, msg, "📈 -0.89%")
	assert.Contains(t, msg, "策略: Ma Trend, Breakout")
	assert.Contains(t, msg, "评分: 82.3/100")
	assert.Contains(t, msg, "止损: -5.0%")
	assert.Contains(t, msg, "止盈: +18.0%")

	assert.Contains(t, msg, "风险提示")
	assert.Contains(t, msg, "不构成投资建议")
}

func TestFormatMessageEmpty(t *testing.T) {
	result := &screener.Result{
		Status: screener.StatusOK,
		Date:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}

	msg := FormatMessage(result)
	assert.Contains(t, msg, "【选股结果】2024-01-15")
	assert.Contains(t, msg, "未找到符合条件的股票")
	assert.NotContains(t, msg, "TOP10")
}

func TestFormatMessageTopTen(t *testing.T) {
	result := sampleResult()
	result.Picks = nil
	for i := 0; i < 15; i++ {
		pick := samplePicks()[0]
		pick.InstrumentID = string(rune('a' + i))
		result.Picks = append(result.Picks, pick)
	}

	msg := FormatMessage(result)
	assert.Contains(t, msg, "共找到 15 只")
	assert.Equal(t, 10, strings.Count(msg, "价格:"), "only the top ten are listed")
}

func TestFormatShortMessage(t *testing.T) {
	msg := FormatShortMessage(sampleResult())

	assert.Contains(t, msg, "【01-15】找到 2 只")
	assert.Contains(t, msg, "🔥 万科A")
	assert.Contains(t, msg, "✓ 贵州茅台")
	assert.Contains(t, msg, "¥8.88")
	assert.Contains(t, msg, "止损:5%")
	assert.Contains(t, msg, "止盈:18%")
	assert.Contains(t, msg, "仅供参考")
}

func TestFormatShortMessageEmpty(t *testing.T) {
	result := &screener.Result{Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)}

	msg := FormatShortMessage(result)
	assert.Contains(t, msg, "2024-01-15 选股结果：无符合条件的股票")
}

func TestBadge(t *testing.T) {
	tests := []struct {
		count int
		want  string
	}{
		{1, "✓"},
		{2, "⭐"},
		{3, "🔥"},
		{5, "🔥"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, badge(tt.count), "count %d", tt.count)
	}
}

func TestPrettyStrategies(t *testing.T) {
	got := prettyStrategies([]string{"ma_trend", "breakout", "oversold_rebound"})
	assert.Equal(t, []string{"Ma Trend", "Breakout", "Oversold Rebound"}, got)
}
