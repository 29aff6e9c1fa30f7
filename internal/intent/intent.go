// Package intent detects the top-level overrides spec.md §4.8 step 4 names
// (CANCEL, MODIFY, HUMAN_TRANSFER, FAQ_QUESTION), which preempt whatever
// state the FSM is currently in. No dedicated intent-detection module
// exists in original_source (fsm2/transition.py is a one-line state
// setter, not a classifier) — this is authored fresh in the same
// deterministic substring/pattern idiom as the teacher's
// internal/conversation/faq_cache.go (regex + keyword-count fallback) and
// internal/triage's red-flag tables, per spec.md §4.8's own description
// and the ordering prompts_interruption.py documents ("intent override
// préempte tout, avant l'interruption positive de créneau").
package intent

import (
	"regexp"
	"strings"
)

// Kind is a top-level intent that preempts the FSM's current state.
type Kind string

const (
	KindNone          Kind = ""
	KindCancel        Kind = "cancel"
	KindModify        Kind = "modify"
	KindHumanTransfer Kind = "human_transfer"
	KindFAQQuestion   Kind = "faq_question"
)

var reCancel = regexp.MustCompile(`(?i)\b(annul(er|e|ation|é|ez)?|supprim(er|e)\s+(mon|le)\s+rendez-?vous)\b`)

var reModify = regexp.MustCompile(`(?i)\b(modifi(er|e|cation)|chang(er|e)\s+(mon|le|de)|repouss(er|e)|report(er|e)|reprogramm(er|e)|d[ée]plac(er|e))\b`)

var humanKeywords = []string{
	"parler à quelqu'un", "parler a quelqu'un",
	"un humain", "une personne", "un conseiller", "une conseillère",
	"parler à un agent", "parler a un agent", "agent humain",
	"transférer", "transferer", "me transférer", "me transferer",
	"quelqu'un d'autre", "un vrai", "une vraie personne",
	"standard téléphonique", "standard telephonique",
}

var faqKeywords = []string{
	"horaires", "heures d'ouverture", "ouvert", "fermé", "fermee",
	"adresse", "où êtes", "ou etes", "où se trouve", "ou se trouve",
	"combien ça coûte", "combien ca coute", "quel est le prix", "tarif", "tarifs", "prix",
	"c'est où", "c'est ou", "vous êtes où", "vous etes ou",
	"parking", "stationnement",
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Detect classifies a single user turn. CANCEL and MODIFY are checked
// before HUMAN_TRANSFER and FAQ_QUESTION, matching spec.md §4.8's handler
// priority for an explicit booking-lifecycle request over a vaguer
// "speak to someone"/informational ask.
func Detect(text string) Kind {
	t := normalize(text)
	if t == "" {
		return KindNone
	}

	if reCancel.MatchString(t) {
		return KindCancel
	}
	if reModify.MatchString(t) {
		return KindModify
	}
	for _, kw := range humanKeywords {
		if strings.Contains(t, kw) {
			return KindHumanTransfer
		}
	}
	for _, kw := range faqKeywords {
		if strings.Contains(t, kw) {
			return KindFAQQuestion
		}
	}
	if strings.Contains(t, "?") && looksLikeQuestion(t) {
		return KindFAQQuestion
	}
	return KindNone
}

var questionStarters = []string{"est-ce que", "qu'est-ce", "comment", "pourquoi", "quand", "quoi"}

// looksLikeQuestion narrows a bare "?" to the starters spec.md §4.6/§4.7's
// own "don't over-classify" caution echoes — a lone "?" from a noisy
// transcription should not itself preempt the booking flow.
func looksLikeQuestion(t string) bool {
	for _, s := range questionStarters {
		if strings.Contains(t, s) {
			return true
		}
	}
	return false
}
