package services

import (
	"strings"
	"testing"

	"feedbackapp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{"english", "The schedule keeps changing without notice", "en"},
		{"thai", "เงินเดือนออกช้ามาก", "th"},
		{"russian", "Зарплату задерживают второй месяц", "ru"},
		{"chinese", "工资太低了", "zh"},
		{"arabic", "الراتب منخفض جدا", "ar"},
		{"empty", "", "en"},
		{"mixed thai wins", "pay เงินเดือน", "th"},
		{"thai beats earlier cyrillic", "Зарплата เงินเดือน", "th"},
		{"cyrillic beats earlier cjk", "工资 зарплата", "ru"},
		{"cjk beats earlier arabic", "الراتب 工资", "zh"},
		{"digits only", "12345", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectLanguage(tt.message))
		})
	}
}

func TestKeywordTags(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected []string
	}{
		{"salary english", "My salary is too low", []string{models.TagSalary}},
		{"salary thai", "เงินเดือนน้อยเกินไป", []string{models.TagSalary}},
		{"no match", "everything is fine here", []string{models.TagOther}},
		{"case insensitive", "SALARY problems", []string{models.TagSalary}},
		{
			"multiple tags",
			"my manager changed the schedule and cut my pay",
			[]string{models.TagSalary, models.TagManagement, models.TagSchedule},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KeywordTags(tt.message))
		})
	}
}

func TestKeywordTagsCap(t *testing.T) {
	// Hits salary, store, product, management and schedule keywords but only
	// three tags may be assigned.
	msg := "pay at the store for this product, manager ignored the schedule"
	tags := KeywordTags(msg)
	require.Len(t, tags, 3)
	for _, tag := range tags {
		assert.True(t, models.IsAllowedTag(tag))
	}
}

func TestFallbackSummary(t *testing.T) {
	short := "short message"
	assert.Equal(t, short, FallbackSummary(short))

	long := strings.Repeat("a", 200)
	summary := FallbackSummary(long)
	assert.Len(t, summary, 150)
	assert.True(t, strings.HasSuffix(summary, "..."))
	assert.Equal(t, strings.Repeat("a", 147), summary[:147])

	exact := strings.Repeat("b", 150)
	assert.Equal(t, exact, FallbackSummary(exact))
}

func TestFallbackEnrich_English(t *testing.T) {
	result := FallbackEnrich("The pay is late again")

	assert.Equal(t, "en", result.DetectedLanguage)
	assert.Equal(t, "The pay is late again", result.TranslationEN)
	assert.Equal(t, "[Требуется перевод] The pay is late again", result.TranslationRU)
	assert.Equal(t, "The pay is late again", result.Summary)
	assert.Equal(t, []string{models.TagSalary}, result.Tags)
}

func TestFallbackEnrich_NonEnglish(t *testing.T) {
	result := FallbackEnrich("เงินเดือนออกช้า")

	assert.Equal(t, "th", result.DetectedLanguage)
	assert.Equal(t, "[Auto-translation unavailable] เงินเดือนออกช้า", result.TranslationEN)
	assert.Equal(t, "[Требуется перевод] เงินเดือนออกช้า", result.TranslationRU)
	assert.Equal(t, []string{models.TagSalary}, result.Tags)
}
