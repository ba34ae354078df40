package domain

import (
	"regexp"
	"strings"
)

// handlePattern matches the contact handle used to name sender/receiver in
// transactions: a 10-digit mobile number starting 6-9. A handle resolves to
// exactly one party identity for the lifetime of the system.
var handlePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

func ValidHandle(handle string) bool {
	return handlePattern.MatchString(handle)
}

// Party is one side of a ledger as stored on the aggregate: the stable
// identity plus the handle that labels this party inside transactions.
type Party struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
}

// PartyProfile is the display shape resolved through the party directory.
type PartyProfile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"mobile"`
	Avatar string `json:"avatar"`
}

// Initials derives the avatar fallback from a display name, e.g.
// "Asha Verma" -> "AV".
func Initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		r := []rune(word)
		b.WriteRune(r[0])
		if b.Len() >= 2 {
			break
		}
	}
	return strings.ToUpper(b.String())
}
