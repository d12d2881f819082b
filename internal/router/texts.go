package router

import "github.com/Vovarama1992/support-relay/internal/models"

const (
	WelcomeText = "欢迎使用客服机器人。\n" +
		"我们提供AI比赛推荐与基本面分析。\n" +
		"重点覆盖：英超、西甲、意甲、德甲、法甲、欧冠、世界杯。\n" +
		"请选择您所在的国家, 我们将为您用更准确的时间提供推荐。\n"

	KeyboardPrompt  = "请选择地区"
	PlaceholderText = "小助手正在加紧思考ing, 请稍后..."
	CallbackAckText = "已记录选择"

	commandMenu = "👇 可以点击左下方 menu 或直接发送以下指令\n" +
		"🤖 /ai_pick - 查看 AI 今日推荐\n" +
		"📊 /ai_history - 查看 AI 历史记录\n" +
		"🆘 /help - 寻求人工客服协助"
)

var countryAcks = map[models.Country]string{
	models.CountryPH: "已选择菲律宾",
	models.CountryUS: "已选择美国",
}

// CountryOptions is the country-selection keyboard.
var CountryOptions = []models.KeyboardOption{
	{Label: "🇵🇭 菲律宾", Data: string(models.CountryPH)},
	{Label: "🇺🇸 美国", Data: string(models.CountryUS)},
}

// CountryAck is the confirmation sent after a country choice.
func CountryAck(c models.Country) string {
	return countryAcks[c] + "\n\n" + commandMenu
}
