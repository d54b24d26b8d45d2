package core

import "strings"

// Carrier-standard opt-out keywords. Matching is observational only: a
// detected keyword is audited but the message still routes normally.
// Suppression enforcement belongs to the carrier layer, not the relay.
var optOutKeywords = map[string]struct{}{
	"STOP":        {},
	"STOPALL":     {},
	"UNSUBSCRIBE": {},
	"CANCEL":      {},
	"END":         {},
	"QUIT":        {},
}

// IsOptOutMessage reports whether the body, after trimming and
// uppercasing, is exactly one of the opt-out keywords.
func IsOptOutMessage(body string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(body))
	if normalized == "" {
		return false
	}
	_, ok := optOutKeywords[normalized]
	return ok
}
