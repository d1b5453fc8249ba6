package normalize

import "strings"

const codeLabelSeparator = " - "

// label keeps the label half of a "code - label" value.
func label(value string) string {
	_, after, found := strings.Cut(value, codeLabelSeparator)
	if !found {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(after)
}
