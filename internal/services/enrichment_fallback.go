package services

import (
	"strings"

	"feedbackapp/internal/config"
	"feedbackapp/internal/models"
)

// tagKeywords maps each tag to the lowercase keywords that trigger it. Thai
// variants are included because a large share of submissions arrive in Thai.
// Order follows models.AllowedTags so tag output is deterministic.
var tagKeywords = []struct {
	tag      string
	keywords []string
}{
	{models.TagSalary, []string{"salary", "pay", "wage", "money", "bonus", "compensation", "เงินเดือน", "ค่าจ้าง", "โบนัส"}},
	{models.TagStore, []string{"store", "shop", "branch", "location", "ร้าน", "สาขา"}},
	{models.TagProduct, []string{"product", "item", "goods", "quality", "สินค้า", "คุณภาพ"}},
	{models.TagConflict, []string{"conflict", "argument", "fight", "bully", "harass", "ทะเลาะ", "ขัดแย้ง"}},
	{models.TagLegal, []string{"legal", "law", "contract", "lawsuit", "กฎหมาย", "สัญญา"}},
	{models.TagManagement, []string{"manager", "management", "boss", "supervisor", "ผู้จัดการ", "หัวหน้า"}},
	{models.TagSchedule, []string{"schedule", "shift", "hours", "overtime", "ตาราง", "กะ", "โอที"}},
	{models.TagSafety, []string{"safety", "danger", "accident", "injury", "ความปลอดภัย", "อุบัติเหตุ"}},
	{models.TagTraining, []string{"training", "onboarding", "learn", "course", "อบรม", "ฝึก"}},
	{models.TagEquipment, []string{"equipment", "tool", "machine", "broken", "repair", "อุปกรณ์", "เครื่องมือ", "ซ่อม"}},
	{models.TagCustomer, []string{"customer", "client", "service", "ลูกค้า", "บริการ"}},
	{models.TagPolicy, []string{"policy", "rule", "regulation", "นโยบาย", "กฎ"}},
	{models.TagCommunication, []string{"communication", "announce", "inform", "meeting", "สื่อสาร", "ประชุม"}},
	{models.TagHygiene, []string{"hygiene", "clean", "dirty", "sanitation", "ความสะอาด", "สกปรก"}},
}

// DetectLanguage guesses the language of a message from its script. Scripts
// are checked in a fixed priority so mixed-script messages resolve the same
// way every time: Thai wins over Cyrillic, Cyrillic over CJK, CJK over
// Arabic. Latin-script text defaults to English.
func DetectLanguage(message string) string {
	var hasThai, hasCyrillic, hasCJK, hasArabic bool
	for _, r := range message {
		switch {
		case r >= 0x0E00 && r <= 0x0E7F:
			hasThai = true
		case r >= 0x0400 && r <= 0x04FF:
			hasCyrillic = true
		case r >= 0x4E00 && r <= 0x9FFF:
			hasCJK = true
		case r >= 0x0600 && r <= 0x06FF:
			hasArabic = true
		}
	}
	switch {
	case hasThai:
		return "th"
	case hasCyrillic:
		return "ru"
	case hasCJK:
		return "zh"
	case hasArabic:
		return "ar"
	default:
		return "en"
	}
}

// KeywordTags assigns up to MaxTagsPerRecord tags by keyword matching,
// falling back to the Other tag when nothing matches.
func KeywordTags(message string) []string {
	lowered := strings.ToLower(message)

	var tags []string
	for _, entry := range tagKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lowered, kw) {
				tags = append(tags, entry.tag)
				break
			}
		}
		if len(tags) >= config.MaxTagsPerRecord {
			break
		}
	}

	if len(tags) == 0 {
		tags = []string{models.TagOther}
	}
	return tags
}

// FallbackSummary truncates a message for inbox display. Truncation counts
// runes so multibyte scripts are never cut mid-character.
func FallbackSummary(message string) string {
	message = strings.TrimSpace(message)
	runes := []rune(message)
	if len(runes) <= config.MaxSummaryLength {
		return message
	}
	return string(runes[:config.MaxSummaryLength-3]) + "..."
}

// FallbackEnrich produces an enrichment result without calling any remote
// classifier. Translations are placeholders since no translation backend is
// available locally.
func FallbackEnrich(message string) *models.EnrichmentResult {
	lang := DetectLanguage(message)

	translationEN := message
	if lang != "en" {
		translationEN = "[Auto-translation unavailable] " + message
	}

	return &models.EnrichmentResult{
		DetectedLanguage: lang,
		TranslationEN:    translationEN,
		TranslationRU:    "[Требуется перевод] " + message,
		Summary:          FallbackSummary(message),
		Tags:             KeywordTags(message),
	}
}
