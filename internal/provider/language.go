package provider

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// NormalizeLanguage canonicalizes a user-supplied language hint to a BCP 47
// tag. Empty or "auto" means provider-side detection and maps to "".
func NormalizeLanguage(hint string) (string, error) {
	hint = strings.TrimSpace(hint)
	if hint == "" || strings.EqualFold(hint, "auto") {
		return "", nil
	}
	tag, err := language.Parse(hint)
	if err != nil {
		return "", fmt.Errorf("unrecognized language %q: %w", hint, err)
	}
	return tag.String(), nil
}

// LanguageName renders a normalized tag for humans ("en" -> "English").
// Unparseable or empty tags fall back to the raw string.
func LanguageName(code string) string {
	if code == "" {
		return "auto"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return code
	}
	return name
}
