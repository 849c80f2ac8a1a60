package textutil

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var strictPolicy = bluemonday.StrictPolicy()

// CleanLine normalizes user-entered free text before persistence: Unicode is
// NFC normalized, HTML markup is stripped, and interior whitespace collapses
// to single spaces.
func CleanLine(value string) string {
	value = norm.NFC.String(value)
	value = strictPolicy.Sanitize(value)
	return strings.Join(strings.Fields(value), " ")
}
