// Package reception implements the reception role's slot collector: a small
// state machine that gathers the fields a scheduling operation needs, one
// question at a time, while accepting fields in any order. It never talks to
// the calendar itself; once the slots are complete and confirmed the dialog
// engine dispatches a cross-role request.
package reception

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/raphaelgruber/secretary-go/internal/models"
)

var (
	dateRe     = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	clockRe    = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	hourWordRe = regexp.MustCompile(`\b(\d{1,2})h(\d{2})?\b`)
)

var insuranceWords = []string{"insurance", "health plan", "convenio", "convênio"}

var selfPayWords = []string{"self-pay", "self pay", "private", "out of pocket", "cash", "particular"}

var affirmativeWords = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "sure": true,
	"ok": true, "okay": true, "confirm": true, "confirmed": true,
	"correct": true, "right": true, "sim": true,
}

var negativeWords = map[string]bool{
	"no": true, "n": true, "nope": true, "wrong": true,
	"nao": true, "não": true, "change": true,
}

// ExtractDate finds a DD/MM/YYYY date in the utterance, normalized to two
// digit day and month. Returns "" when absent or unparseable.
func ExtractDate(s string, loc *time.Location) string {
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	normalized := fmt.Sprintf("%02d/%02d/%s", day, month, m[3])
	if _, err := time.ParseInLocation("02/01/2006", normalized, loc); err != nil {
		return ""
	}
	return normalized
}

// extractTime finds an HH:MM time, also accepting the "14h" and "14h30"
// spoken forms.
func extractTime(s string) string {
	if m := clockRe.FindStringSubmatch(s); m != nil {
		return normalizeClock(m[1], m[2])
	}
	if m := hourWordRe.FindStringSubmatch(s); m != nil {
		minute := m[2]
		if minute == "" {
			minute = "00"
		}
		return normalizeClock(m[1], minute)
	}
	return ""
}

func normalizeClock(hour, minute string) string {
	h, _ := strconv.Atoi(hour)
	m, _ := strconv.Atoi(minute)
	if h > 23 || m > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

var weekdayWords = map[string]string{
	"monday": "Monday", "tuesday": "Tuesday", "wednesday": "Wednesday",
	"thursday": "Thursday", "friday": "Friday",
	"saturday": "Saturday", "sunday": "Sunday",
	"segunda": "Monday", "terca": "Tuesday", "terça": "Tuesday",
	"quarta": "Wednesday", "quinta": "Thursday", "sexta": "Friday",
	"sabado": "Saturday", "sábado": "Saturday", "domingo": "Sunday",
}

// ExtractWeekday finds a weekday mention in the utterance and returns its
// canonical English name, or "" when absent.
func ExtractWeekday(s string) string {
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.TrimSuffix(strings.Trim(word, ".,!?"), "s")
		if day, ok := weekdayWords[word]; ok {
			return day
		}
	}
	return ""
}

// extractCategory detects an insurance or self-pay mention.
func extractCategory(s string) string {
	lower := strings.ToLower(s)
	for _, w := range insuranceWords {
		if strings.Contains(lower, w) {
			return models.CategoryInsurance
		}
	}
	for _, w := range selfPayWords {
		if strings.Contains(lower, w) {
			return models.CategorySelfPay
		}
	}
	return ""
}

// extractName treats the utterance as a patient name when it looks like one:
// two or more capitalized words, no digits.
func extractName(s string) string {
	name := strings.TrimSpace(s)
	if name == "" || len(name) > 80 || strings.ContainsAny(name, "0123456789") {
		return ""
	}
	words := strings.Fields(name)
	if len(words) < 2 {
		return ""
	}
	for _, w := range words {
		if !unicode.IsUpper([]rune(w)[0]) {
			return ""
		}
	}
	return name
}

func isAffirmative(s string) bool {
	return matchesWordSet(s, affirmativeWords)
}

func isNegative(s string) bool {
	return matchesWordSet(s, negativeWords)
}

func matchesWordSet(s string, set map[string]bool) bool {
	for _, word := range strings.Fields(strings.ToLower(s)) {
		if set[strings.Trim(word, ".,!?")] {
			return true
		}
	}
	return false
}
