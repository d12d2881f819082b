package prediction

const (
	NoHistoryText   = "暂时没有AI历史记录，可以稍后再试哦～"
	NoYesterdayText = "昨天暂无AI记录，可以稍后再试哦～"
	NoPicksText     = "明天暂无AI精选比赛，稍后再试试。"

	historyFormat = "📊 AI历史预测准确率: %.1f%%\n\n" +
		"🗓️ AI7天内预测准确率: %.1f%%\n\n" +
		"🌙 AI昨日预测准确率: %.1f%%\n\n" +
		"🎯 AI最近10场预测:\n%s"
	noRecentText = "暂无记录"

	yesterdayHeaderFormat = "📊 AI昨日预测准确率: %.1f%%\n\n"
	yesterdayLineFormat   = "%d. %s vs %s %s"

	pickBlockFormat = "⚽️ 第%d场: %s vs %s\n" +
		"🕒 比赛时间: %s\n" +
		"🏆 预测结果: %s\n" +
		"🎯 把握: %d%%\n" +
		"💡 核心观点: %s\n" +
		"🔗 更多详情: %s%d"

	markSuccess = "✅"
	markFailure = "❌"

	recentCount = 10
)
