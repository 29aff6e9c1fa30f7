// Package slotchoice detects which proposed appointment slot a caller
// picked from free text, port-for-port of
// original_source/backend/slot_choice.py's rule ladder (spec.md §4.6).
// Deliberately stdlib-only (regexp/strings): this is the same category of
// deterministic locale classifier as the teacher's own
// internal/conversation/faq_cache.go, which reaches for regexp rather than
// an NLP dependency for an equivalent problem.
package slotchoice

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aurorabook/concierge/internal/session"
)

var dayToWeekday = map[string]time.Weekday{
	"lundi":     time.Monday,
	"mardi":     time.Tuesday,
	"mercredi":  time.Wednesday,
	"jeudi":     time.Thursday,
	"vendredi":  time.Friday,
	"samedi":    time.Saturday,
	"dimanche":  time.Sunday,
}

var yesOnly = map[string]bool{
	"oui": true, "ouais": true, "ouaip": true, "daccord": true, "d'accord": true,
	"ok": true, "okay": true, "parfait": true, "c'est ça": true, "c est ça": true,
}

var (
	reCollapseApostropheSpace = regexp.MustCompile(`[\s']+`)
	reStripPunct              = regexp.MustCompile(`[.,;!?°]+`)
	reCollapseSpace           = regexp.MustCompile(`\s+`)

	reDay      = regexp.MustCompile(`(?i)\b(lundi|mardi|mercredi|jeudi|vendredi|samedi|dimanche)\b`)
	reTimeFull = regexp.MustCompile(`\b(\d{1,2})\s*[h:]\s*(\d{0,2})\b`)
	reTimeHour = regexp.MustCompile(`\b(\d{1,2})\s*h\b`)

	reFirst       = regexp.MustCompile(`^(le\s+)?(premier|un)\s*$`)
	reSecond      = regexp.MustCompile(`^(le\s+)?(deuxième|deuxieme|deux|second)\s*$`)
	reThird       = regexp.MustCompile(`^(le\s+)?(troisième|troisieme|trois)\s*$`)
	reOuiFirst    = regexp.MustCompile(`^oui\s+(1|un|premier)\s*$`)
	reOuiSecond   = regexp.MustCompile(`^oui\s+(2|deux|deuxième|deuxieme|second)\s*$`)
	reOuiThird    = regexp.MustCompile(`^oui\s+(3|trois|troisième|troisieme)\s*$`)
	reLeDigit     = regexp.MustCompile(`^le\s*[123]\s*$`)
	reLeDigitPick = regexp.MustCompile(`[123]`)

	reMarkerFirst  = regexp.MustCompile(`^(choix|option|creneau|créneau|numero|numéro)\s+(1|un|premier)\s*$`)
	reMarkerSecond = regexp.MustCompile(`^(choix|option|creneau|créneau|numero|numéro)\s+(2|deux|deuxième|deuxieme|second)\s*$`)
	reMarkerThird  = regexp.MustCompile(`^(choix|option|creneau|créneau|numero|numéro)\s+(3|trois|troisième|troisieme)\s*$`)
)

var markerPrefixes = []string{"choix", "option", "creneau", "créneau", "numero", "numéro", "n"}

func normalize(t string) string {
	if t == "" {
		return ""
	}
	s := strings.ToLower(strings.TrimSpace(t))
	s = reCollapseApostropheSpace.ReplaceAllString(s, " ")
	s = reStripPunct.ReplaceAllString(s, " ")
	s = reCollapseSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

type dayTime struct {
	weekday     time.Weekday
	hour, minute int
}

func parseDayTime(text string) (dayTime, bool) {
	t := normalize(text)
	dm := reDay.FindStringSubmatch(t)
	if dm == nil {
		return dayTime{}, false
	}
	weekday, ok := dayToWeekday[strings.ToLower(dm[1])]
	if !ok {
		return dayTime{}, false
	}

	var hour, minute int
	if tm := reTimeFull.FindStringSubmatch(t); tm != nil {
		hour, _ = strconv.Atoi(tm[1])
		if tm[2] != "" {
			minute, _ = strconv.Atoi(tm[2])
		}
	} else if tm := reTimeHour.FindStringSubmatch(t); tm != nil {
		hour, _ = strconv.Atoi(tm[1])
		minute = 0
	} else {
		return dayTime{}, false
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return dayTime{}, false
	}
	return dayTime{weekday: weekday, hour: hour, minute: minute}, true
}

func slotToDayTime(slot session.PendingSlot) (dayTime, bool) {
	if slot.StartISO != "" {
		if ts, err := time.Parse(time.RFC3339, slot.StartISO); err == nil {
			return dayTime{weekday: ts.Weekday(), hour: ts.Hour(), minute: ts.Minute()}, true
		}
	}
	if slot.Day != "" {
		if weekday, ok := dayToWeekday[strings.ToLower(slot.Day)]; ok {
			return dayTime{weekday: weekday}, true
		}
	}
	return dayTime{}, false
}

// byDateTime matches day+time in text against pending, returning the
// 1-based index of the single matching slot, or ok=false if zero or more
// than one slot matches.
func byDateTime(text string, pending []session.PendingSlot) (int, bool) {
	if text == "" || len(pending) == 0 {
		return 0, false
	}
	target, ok := parseDayTime(text)
	if !ok {
		return 0, false
	}
	matches := 0
	idx := 0
	for i, slot := range pending {
		key, ok := slotToDayTime(slot)
		if !ok {
			continue
		}
		if key.weekday == target.weekday && key.hour == target.hour && key.minute == target.minute {
			matches++
			idx = i + 1
		}
	}
	if matches == 1 {
		return idx, true
	}
	return 0, false
}

// Detect implements the exact rule ladder of
// original_source/backend/slot_choice.py's detect_slot_choice_early:
// exact "1"/"2"/"3" text, bare affirmations rejected as ambiguous,
// ordinals, marker+digit, then a day+time cross-match against pending.
// A bare digit embedded in a longer sentence ("j'ai 2 questions") never
// matches — only the exact forms above do.
func Detect(text string, pending []session.PendingSlot) (idx int, ambiguous bool) {
	if strings.TrimSpace(text) == "" {
		return 0, false
	}
	t := normalize(text)

	if t == "1" || t == "2" || t == "3" {
		n, _ := strconv.Atoi(t)
		return n, false
	}

	if yesOnly[t] {
		return 0, true
	}

	switch {
	case reFirst.MatchString(t):
		return 1, false
	case reSecond.MatchString(t):
		return 2, false
	case reThird.MatchString(t):
		return 3, false
	case reOuiFirst.MatchString(t):
		return 1, false
	case reOuiSecond.MatchString(t):
		return 2, false
	case reOuiThird.MatchString(t):
		return 3, false
	case reLeDigit.MatchString(t):
		n, _ := strconv.Atoi(reLeDigitPick.FindString(t))
		return n, false
	case reMarkerFirst.MatchString(t):
		return 1, false
	case reMarkerSecond.MatchString(t):
		return 2, false
	case reMarkerThird.MatchString(t):
		return 3, false
	}

	for _, prefix := range markerPrefixes {
		if n, ok := matchMarkerDigit(t, prefix); ok {
			return n, false
		}
	}

	if len(pending) > 0 {
		if n, ok := byDateTime(text, pending); ok {
			return n, false
		}
	}

	return 0, false
}

func matchMarkerDigit(t, prefix string) (int, bool) {
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `\s*([123])\s*$`)
	m := re.FindStringSubmatch(t)
	if m == nil {
		return 0, false
	}
	n, _ := strconv.Atoi(m[1])
	return n, true
}
