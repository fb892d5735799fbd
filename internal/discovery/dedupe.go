package discovery

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var fold = cases.Fold()

// normalizeKey reduces a name or address to a comparison key: NFKC, case
// folded, punctuation dropped, whitespace collapsed.
func normalizeKey(s string) string {
	s = fold.String(norm.NFKC.String(s))
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			space = true
		}
	}
	return b.String()
}

// deduper tracks places already seen by place ID and by normalized
// name+address.
type deduper struct {
	ids  map[string]struct{}
	keys map[string]struct{}
}

func newDeduper() *deduper {
	return &deduper{ids: make(map[string]struct{}), keys: make(map[string]struct{})}
}

// seen records a place and reports whether it was already recorded.
func (d *deduper) seen(placeID, name, address string) bool {
	key := normalizeKey(name) + "|" + normalizeKey(address)
	_, idSeen := d.ids[placeID]
	_, keySeen := d.keys[key]
	if placeID != "" {
		d.ids[placeID] = struct{}{}
	}
	d.keys[key] = struct{}{}
	return (placeID != "" && idSeen) || keySeen
}
