// Package faq answers the bounded set of informational questions the FSM's
// FAQAnswer state handles (hours, address, pricing) without involving a
// model, mirroring the teacher's internal/conversation FAQ cache: a
// regex lookup table returning a canned response (an entry may also list
// keywords, but Answer matches on the pattern alone),
// generalized here from medspa treatment comparisons to tenant business
// facts interpolated from tenancy.Config.
package faq

import (
	"fmt"
	"regexp"
	"strings"
)

// Facts are the tenant-specific values a FAQ answer may interpolate.
type Facts struct {
	BusinessName string
	Hours        string // e.g. "du lundi au vendredi, 9h à 18h"
	Address      string
	Phone        string
}

type entry struct {
	pattern  *regexp.Regexp
	keywords []string
	answer   func(Facts) string
}

var entries = []entry{
	{
		pattern: regexp.MustCompile(`(?i)horaire|heures? d'ouverture|ouvert|ferm[ée]`),
		answer: func(f Facts) string {
			if f.Hours == "" {
				return "Je vais laisser quelqu'un de l'équipe vous communiquer nos horaires précis."
			}
			return fmt.Sprintf("Nous sommes ouverts %s.", f.Hours)
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)adresse|c'est o[uù]|vous [eê]tes o[uù]|se trouve`),
		answer: func(f Facts) string {
			if f.Address == "" {
				return "Je vais laisser quelqu'un de l'équipe vous communiquer notre adresse exacte."
			}
			return fmt.Sprintf("Nous sommes situés %s.", f.Address)
		},
	},
	{
		pattern:  regexp.MustCompile(`(?i)prix|tarif|co[uû]te|ça co[uû]te`),
		keywords: []string{"prix", "tarif", "coûte", "coute"},
		answer: func(Facts) string {
			return "Les tarifs dépendent du motif de consultation ; un membre de l'équipe pourra vous donner un prix précis."
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)parking|stationnement`),
		answer: func(Facts) string {
			return "Je n'ai pas cette information en détail, mais l'équipe pourra vous renseigner sur le stationnement à votre arrivée."
		},
	},
}

// Answer looks up a canned response for text, interpolating f. The second
// return value is false when nothing in the table matched, in which case
// the FSM falls back to a generic "je note votre question" acknowledgment.
func Answer(text string, f Facts) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return "", false
	}
	for _, e := range entries {
		if e.pattern != nil && e.pattern.MatchString(t) {
			return e.answer(f), true
		}
	}
	return "", false
}

// Fallback is returned when Answer finds no match — it acknowledges the
// question without fabricating an answer, then the FSM returns to booking.
func Fallback(businessName string) string {
	if businessName == "" {
		businessName = "l'équipe"
	}
	return fmt.Sprintf("Je note votre question, %s pourra vous répondre plus précisément.", businessName)
}
