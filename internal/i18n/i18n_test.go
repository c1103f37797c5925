package i18n

import "testing"

func TestNewEnglish(t *testing.T) {
	i := New("en")
	if i.Locale() != "en" {
		t.Fatalf("Locale()=%q, want en", i.Locale())
	}
	if got := i.T("page.submit"); got != "Submissions" {
		t.Fatalf("T(page.submit)=%q", got)
	}
}

func TestNewChinese(t *testing.T) {
	i := New("zh-CN")
	if i.Locale() != "zh-CN" {
		t.Fatalf("Locale()=%q, want zh-CN", i.Locale())
	}
	if got := i.T("page.submit"); got != "作业录入" {
		t.Fatalf("T(page.submit)=%q", got)
	}
}

func TestNewChineseFromLang(t *testing.T) {
	i := New("zh_CN.UTF-8")
	if i.Locale() != "zh-CN" {
		t.Fatalf("Locale()=%q, want zh-CN", i.Locale())
	}
	if got := i.T("page.roster"); got != "班级学生" {
		t.Fatalf("T(page.roster)=%q", got)
	}
}

func TestTWithArgs(t *testing.T) {
	i := New("zh-CN")
	got := i.T("stats.line", 30, 20, 10)
	if got != "总人数:30, 已交:20, 未交:10" {
		t.Fatalf("T(stats.line)=%q", got)
	}
}

func TestTMissingKeyReturnsKey(t *testing.T) {
	i := New("en")
	if got := i.T("nonexistent.key"); got != "nonexistent.key" {
		t.Fatalf("T missing=%q", got)
	}
}

func TestCatalogsCoverSameKeys(t *testing.T) {
	for k := range ZhCNMessages {
		if _, ok := EnMessages[k]; !ok {
			t.Errorf("key %q missing from EnMessages", k)
		}
	}
	for k := range EnMessages {
		if _, ok := ZhCNMessages[k]; !ok {
			t.Errorf("key %q missing from ZhCNMessages", k)
		}
	}
}

func TestNormalizeLocale(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"en_US.UTF-8", "en"},
		{"zh_CN.UTF-8", "zh-CN"},
		{"zh_TW", "zh-CN"},
		{"en", "en"},
		{"", "zh-CN"},
		{"fr_FR", "fr-FR"},
	}
	for _, tt := range tests {
		if got := normalizeLocale(tt.input); got != tt.want {
			t.Errorf("normalizeLocale(%q)=%q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDetectLocaleEnvOverride(t *testing.T) {
	t.Setenv("ASSIGNFLOW_LANG", "en_US.UTF-8")
	if got := DetectLocale(); got != "en" {
		t.Fatalf("DetectLocale()=%q, want en", got)
	}
}

func TestGlobalSingleton(t *testing.T) {
	if Global() != Global() {
		t.Fatal("Global() must return the same instance")
	}
}
