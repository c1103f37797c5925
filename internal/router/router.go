package router

import (
	"strings"
	"unicode"
)

// Kind 输入分类
// Kind classifies one line of user input
type Kind int

const (
	// KindStudentID 定长纯数字学号，直接走快速录入
	// KindStudentID is a fixed-width numeric id for the quick-entry path
	KindStudentID Kind = iota
	// KindEasterEgg 彩蛋口令
	// KindEasterEgg is the easter-egg keyword
	KindEasterEgg
	// KindAssistant 其余输入交给 AI 助手
	// KindAssistant routes everything else to the assistant
	KindAssistant
)

const easterEggWord = "assignflow"

// Router 按花名册学号位数对输入分流
// Router dispatches input by the roster's fixed student-id width
type Router struct {
	idLength int
}

func New(idLength int) *Router {
	if idLength <= 0 {
		idLength = 6
	}
	return &Router{idLength: idLength}
}

// Classify 对一条输入分类；返回清洗后的文本
// Classify categorizes one input line and returns the trimmed text
func (r *Router) Classify(input string) (Kind, string) {
	text := strings.TrimSpace(input)
	if strings.EqualFold(text, easterEggWord) {
		return KindEasterEgg, text
	}
	if len(text) == r.idLength && allDigits(text) {
		return KindStudentID, text
	}
	return KindAssistant, text
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
