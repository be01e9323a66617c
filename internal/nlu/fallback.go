package nlu

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Deterministic Portuguese-language extractors. These are the recovery path
// when the LLM collaborator times out or fails, and the fast path for fields
// where a regex is more reliable than a model (email, yes/no keywords).

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)

var nameWordRegex = regexp.MustCompile(`^\p{L}+$`)

// Common replies that look like 2-5 alphabetic words but are not names.
var nameRejectWords = []string{
	"não", "nao", "agora não", "agora nao", "ainda não", "ainda nao",
	"depois", "talvez", "sem tempo", "mais tarde", "tenho pressa",
	"só quero", "quero saber", "me fala", "pode ser", "obrigado",
	"por favor", "com certeza", "claro", "sim", "ok",
	"quero", "reuniao", "reunião", "consultoria", "agendar", "marcar",
}

var yesRegex = regexp.MustCompile(`(?i)\b(sim|quero|claro|bora|vamos|pode|gostaria|agendar|marcar|aceito|ok|com certeza|por favor)\b`)

var noRegex = regexp.MustCompile(`(?i)\b(não|nao|agora não|agora nao|depois|talvez|ainda não|ainda nao|obrigado mas|no momento)\b`)

var schedulingIntentRegex = regexp.MustCompile(`(?i)\b(agendar|agendamento|marcar|remarcar|reunião|reuniao|consultoria)\b`)

var cancelKeywords = []string{"cancelar", "cancela", "desmarcar", "desistir"}

// Matches "17/02 às 14h", "18/02/2026 10", "25/12 as 9h".
var fallbackDateTimeRegex = regexp.MustCompile(`(?i)(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\s*(?:às?|as)?\s*(\d{1,2})h?`)

// ExtractEmail finds the first email address in text.
func ExtractEmail(text string) (string, bool) {
	match := emailRegex.FindString(text)
	if match == "" {
		return "", false
	}
	return strings.ToLower(match), true
}

// ExtractName recognizes a full name: 2-5 alphabetic words, no digits or
// punctuation, none of the common non-name replies.
func ExtractName(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	lowered := strings.ToLower(trimmed)

	if strings.ContainsAny(trimmed, "?@") {
		return "", false
	}
	for _, r := range trimmed {
		if unicode.IsDigit(r) {
			return "", false
		}
	}
	for _, reject := range nameRejectWords {
		if strings.Contains(lowered, reject) {
			return "", false
		}
	}

	words := strings.Fields(trimmed)
	if len(words) < 2 || len(words) > 5 {
		return "", false
	}
	for _, w := range words {
		if !nameWordRegex.MatchString(w) {
			return "", false
		}
	}

	return titleCase(trimmed), true
}

// ExtractInterest recognizes a need/interest phrase: at least 3 words and
// 15 characters, and not an email message.
func ExtractInterest(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if strings.Contains(trimmed, "@") {
		return "", false
	}
	if len(strings.Fields(trimmed)) < 3 {
		return "", false
	}
	if len(trimmed) < 15 {
		return "", false
	}
	return trimmed, true
}

// DetectYesNo classifies an accept/decline reply by keyword. ok is false when
// no signal is present; text carrying both signals resolves to decline.
func DetectYesNo(text string) (yes bool, ok bool) {
	hasYes := yesRegex.MatchString(text)
	hasNo := noRegex.MatchString(text)

	switch {
	case hasNo:
		// "no" wins ambiguous messages.
		return false, true
	case hasYes:
		return true, true
	default:
		return false, false
	}
}

// HasSchedulingIntent reports whether text explicitly asks to book a meeting.
func HasSchedulingIntent(text string) bool {
	return schedulingIntentRegex.MatchString(text)
}

// WantsToCancel reports whether text asks to cancel an existing booking.
func WantsToCancel(text string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range cancelKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// FallbackDateTime parses the narrow "dd/mm[/yyyy] [às]HHh" pattern in loc.
// The year defaults to the current one when omitted.
func FallbackDateTime(text string, now time.Time, loc *time.Location) (time.Time, bool) {
	m := fallbackDateTimeRegex.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	day := atoi(m[1])
	month := atoi(m[2])
	hour := atoi(m[4])

	year := now.In(loc).Year()
	if m[3] != "" {
		year = atoi(m[3])
		if year < 100 {
			year += 2000
		}
	}

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 {
		return time.Time{}, false
	}

	return time.Date(year, time.Month(month), day, hour, 0, 0, 0, loc), true
}

// ClassifyFallback is the deterministic stand-in for intent classification.
func ClassifyFallback(text string) Intent {
	if HasSchedulingIntent(text) {
		return IntentSchedule
	}

	if yes, ok := DetectYesNo(text); ok {
		if yes {
			return IntentAccept
		}
		return IntentDecline
	}

	if strings.Contains(text, "?") {
		return IntentQuestion
	}

	return IntentUnknown
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
