package i18n

// ZhCNMessages 简体中文消息目录
// ZhCNMessages is the Simplified Chinese message catalog
var ZhCNMessages = map[string]string{
	// 页面标题
	"page.submit":    "作业录入",
	"page.grade":     "成绩录入",
	"page.roster":    "班级学生",
	"page.export":    "导出报告",
	"page.assistant": "AI助手",

	// 侧边栏
	"sidebar.task":    "当前任务",
	"sidebar.stats":   "今日统计",
	"sidebar.context": "上下文",
	"sidebar.model":   "模型",
	"sidebar.unknown": "未知学号",

	// 状态栏
	"status.ready":       "就绪",
	"status.streaming":   "生成中...",
	"status.cancelled":   "已取消生成",
	"status.busy":        "助手正在处理上一条请求",
	"status.no_api_key":  "请先配置 API Key 以使用AI功能",
	"status.bad_page":    "当前页面不支持学号录入",
	"stats.line":         "总人数:%d, 已交:%d, 未交:%d",
	"status.task_reset":  "今日任务已重置为全新状态",
	"status.all_cleared": "所有数据已清除",

	// 录入反馈
	"submit.ok":      "学生 %s 已标记为已交",
	"submit.unknown": "学号 %s 不在花名册",
	"grade.ok":       "学生 %s 成绩已设置为 %s",
	"grade.unknown":  "学号 %s 不在花名册",
	"unsubmit.ok":    "学生 %s 已恢复为未交",

	// 导入导出
	"export.ok":        "报告已导出到 %s",
	"export.empty":     "没有可导出的数据",
	"import.ok":        "已导入 %d 名学生",
	"import.bad_row":   "第 %d 行格式错误",
	"import.need_path": "用法: /import <CSV文件路径>",

	// 输入
	"input.placeholder": "输入6位学号直接录入，或用自然语言提问...",
	"input.hint":        "回车发送 · esc 中断 · tab 切换页面",

	// 彩蛋
	"egg.title": "🎉 彩蛋",
	"egg.body":  "你发现了 AssignFlow 的彩蛋！\n祝你使用愉快！",

	// 错误
	"error.provider": "模型服务错误: %s",
	"error.storage":  "数据库错误: %s",
	"error.generic":  "出错了: %s",

	// REPL 命令说明
	"cmd.help":      "显示可用命令",
	"cmd.stats":     "今日提交统计",
	"cmd.missing":   "列出未交学生",
	"cmd.submitted": "列出已交学生",
	"cmd.students":  "列出全部学生",
	"cmd.tasks":     "列出历史任务",
	"cmd.newtask":   "重置今日任务",
	"cmd.grade":     "设置成绩: /grade <学号> <成绩>",
	"cmd.unsubmit":  "撤销提交: /unsubmit <学号>",
	"cmd.import":    "从CSV导入花名册",
	"cmd.export":    "导出当前任务报告CSV",
	"cmd.models":    "列出可用模型",
	"cmd.reset":     "清空助手对话",
	"cmd.clear":     "清除所有数据（不可恢复）",
	"cmd.quit":      "退出",
}
