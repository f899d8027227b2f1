package identity

import (
	"regexp"
	"strings"

	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
)

const emailExpr = `[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`

var (
	// strictLine matches the requested follow-up format "Surname, GivenName, email".
	strictLine   = regexp.MustCompile(`(?i)^([^,]+),\s*([^,]+),\s*(` + emailExpr + `)$`)
	emailPattern = regexp.MustCompile(`(?i)` + emailExpr)
	labelPattern = regexp.MustCompile(`(?i)\b(nachname|familienname|vorname|name|e-?mail(?:-adresse)?)\s*:`)
)

// hint is a labeled value such as "Vorname: Hans" within one line.
type hint struct {
	field      domain.Field
	value      string
	start, end int
}

// MatchesStrictFormat reports whether text is exactly one
// "Surname, GivenName, email" line.
func MatchesStrictFormat(text string) bool {
	return strictLine.MatchString(strings.TrimSpace(text))
}

// ParseIdentityLine parses a single "Surname, GivenName, email" line.
func ParseIdentityLine(line string) (domain.Identity, bool) {
	m := strictLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return domain.Identity{}, false
	}
	return domain.Identity{
		Surname:   strings.TrimSpace(m[1]),
		GivenName: strings.TrimSpace(m[2]),
		Email:     strings.ToLower(m[3]),
	}, true
}

// NormalizeEmail returns the first email address in value, lowercased, or "".
func NormalizeEmail(value string) string {
	return strings.ToLower(emailPattern.FindString(value))
}

// Fallback is the deterministic extractor. It reads, in order: a strict
// identity line, labeled hints (Name:, Vorname:, E-Mail:), then any email
// address. Earlier sources win.
func Fallback(text string) domain.Identity {
	var id domain.Identity

	lines := strings.Split(text, "\n")
	for _, line := range lines {
		if parsed, ok := ParseIdentityLine(line); ok {
			id = id.Merge(parsed)
			break
		}
	}

	for _, line := range lines {
		for _, h := range labeledHints(line) {
			var partial domain.Identity
			switch h.field {
			case domain.FieldSurname:
				partial.Surname = h.value
			case domain.FieldGivenName:
				partial.GivenName = h.value
			case domain.FieldEmail:
				partial.Email = h.value
			}
			id = id.Merge(partial)
		}
	}

	return id.Merge(domain.Identity{Email: NormalizeEmail(text)})
}

// StripIdentity removes strict identity lines, labeled hints and email
// addresses from text, leaving the request body.
func StripIdentity(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if strictLine.MatchString(strings.TrimSpace(line)) {
			continue
		}

		hints := labeledHints(line)
		for i := len(hints) - 1; i >= 0; i-- {
			line = line[:hints[i].start] + line[hints[i].end:]
		}
		line = emailPattern.ReplaceAllString(line, "")

		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), ",;"))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// IsIdentityOnly reports whether text carries identity data and nothing else.
func IsIdentityOnly(text string) bool {
	if MatchesStrictFormat(text) {
		return true
	}
	return !Fallback(text).Empty() && StripIdentity(text) == ""
}

// labeledHints finds "Label: value" spans in line. A value runs until the
// next label, comma or semicolon. An E-Mail label only counts when its value
// holds an address, so "E-Mail: geht nicht" stays part of the request.
func labeledHints(line string) []hint {
	locs := labelPattern.FindAllStringSubmatchIndex(line, -1)

	var hints []hint
	for i, loc := range locs {
		end := len(line)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if j := strings.IndexAny(line[loc[1]:end], ",;"); j >= 0 {
			end = loc[1] + j
		}

		value := strings.TrimSpace(line[loc[1]:end])
		h := hint{value: value, start: loc[0], end: end}

		switch label := strings.ToLower(line[loc[2]:loc[3]]); {
		case label == "vorname":
			h.field = domain.FieldGivenName
		case strings.Contains(label, "mail"):
			h.field = domain.FieldEmail
			h.value = ""
			if m := emailPattern.FindStringIndex(line[loc[1]:end]); m != nil {
				h.value = strings.ToLower(line[loc[1]+m[0] : loc[1]+m[1]])
				h.end = loc[1] + m[1]
			}
		default:
			h.field = domain.FieldSurname
		}

		if h.value == "" {
			continue
		}
		hints = append(hints, h)
	}
	return hints
}
