package core

import (
	"fmt"
	"strings"
)

const (
	displayLengthSmall  = 4
	displayLengthMedium = 5
	displayLengthLarge  = 6
)

// DisplayLength returns the short id length for a collection of count
// documents.
func DisplayLength(count int) int {
	if count < 500 {
		return displayLengthSmall
	}
	if count < 1500 {
		return displayLengthMedium
	}
	return displayLengthLarge
}

// ShortID returns the lowercase tail of id used in listings. Store ids
// are ULIDs whose leading characters encode the timestamp, so the tail is
// the distinctive part.
func ShortID(id string, length int) string {
	if length <= 0 {
		return ""
	}
	if length > len(id) {
		length = len(id)
	}
	return strings.ToLower(id[len(id)-length:])
}

// ResolveID finds the id in ids that ref names. ref is a full id or a
// short tail, optionally prefixed with '#'; matching ignores case.
func ResolveID(ids []string, ref string) (string, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(ref), "#")
	if raw == "" {
		return "", fmt.Errorf("empty id")
	}

	var matches []string
	for _, id := range ids {
		if strings.EqualFold(id, raw) {
			return id, nil
		}
		if len(raw) >= 2 && strings.HasSuffix(strings.ToLower(id), strings.ToLower(raw)) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		if len(raw) < 2 {
			return "", fmt.Errorf("id too short: #%s", raw)
		}
		return "", fmt.Errorf("no document matches #%s", raw)
	case 1:
		return matches[0], nil
	default:
		refs := make([]string, 0, len(matches))
		for i, id := range matches {
			if i == 5 {
				break
			}
			refs = append(refs, "#"+ShortID(id, len(raw)+2))
		}
		return "", fmt.Errorf("ambiguous #%s. Matches: %s", raw, strings.Join(refs, ", "))
	}
}
