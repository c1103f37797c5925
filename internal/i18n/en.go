package i18n

// EnMessages English message catalog
var EnMessages = map[string]string{
	// Page titles
	"page.submit":    "Submissions",
	"page.grade":     "Grades",
	"page.roster":    "Roster",
	"page.export":    "Export",
	"page.assistant": "Assistant",

	// Sidebar
	"sidebar.task":    "Current Task",
	"sidebar.stats":   "Today",
	"sidebar.context": "Context",
	"sidebar.model":   "Model",
	"sidebar.unknown": "Unknown IDs",

	// Status bar
	"status.ready":       "Ready",
	"status.streaming":   "Streaming...",
	"status.cancelled":   "Generation cancelled",
	"status.busy":        "Assistant is still handling the previous request",
	"status.no_api_key":  "Configure an API key to use the assistant",
	"status.bad_page":    "This page does not accept student ids",
	"stats.line":         "Total: %d, Submitted: %d, Missing: %d",
	"status.task_reset":  "Today's task has been reset",
	"status.all_cleared": "All data cleared",

	// Entry feedback
	"submit.ok":      "Student %s marked as submitted",
	"submit.unknown": "Student id %s is not on the roster",
	"grade.ok":       "Grade for student %s set to %s",
	"grade.unknown":  "Student id %s is not on the roster",
	"unsubmit.ok":    "Student %s reverted to missing",

	// Import / export
	"export.ok":        "Report exported to %s",
	"export.empty":     "Nothing to export",
	"import.ok":        "Imported %d students",
	"import.bad_row":   "Malformed row %d",
	"import.need_path": "Usage: /import <csv path>",

	// Input
	"input.placeholder": "Type a 6-digit id to record, or ask in natural language...",
	"input.hint":        "enter to send · esc to interrupt · tab to switch page",

	// Easter egg
	"egg.title": "🎉 Easter Egg",
	"egg.body":  "You found the AssignFlow easter egg!\nEnjoy!",

	// Errors
	"error.provider": "Provider error: %s",
	"error.storage":  "Storage error: %s",
	"error.generic":  "Something went wrong: %s",

	// REPL command help
	"cmd.help":      "Show available commands",
	"cmd.stats":     "Today's submission stats",
	"cmd.missing":   "List students still missing",
	"cmd.submitted": "List students who submitted",
	"cmd.students":  "List all students",
	"cmd.tasks":     "List past tasks",
	"cmd.newtask":   "Reset today's task",
	"cmd.grade":     "Set a grade: /grade <id> <grade>",
	"cmd.unsubmit":  "Undo a submission: /unsubmit <id>",
	"cmd.import":    "Import roster from CSV",
	"cmd.export":    "Export current task report as CSV",
	"cmd.models":    "List available models",
	"cmd.reset":     "Clear the assistant conversation",
	"cmd.clear":     "Delete all data (irreversible)",
	"cmd.quit":      "Quit",
}
