package cycle

import (
	"strings"
	"unicode/utf8"
)

// validateIdentity rejects identities the state file cannot store exactly.
// Every format needs valid UTF-8; XML additionally excludes most control
// characters and the non-characters U+FFFE and U+FFFF.
func validateIdentity(uri, group string, format Format) error {
	if uri == "" {
		return invalidArgument("endpoint URI is empty").WithContext("group", group).Build()
	}
	if group == "" {
		return invalidArgument("endpoint group is empty").WithContext("endpoint", uri).Build()
	}
	for _, f := range []struct {
		name, value string
	}{
		{"endpoint", uri},
		{"group", group},
	} {
		if !utf8.ValidString(f.value) {
			return invalidArgument("endpoint identity is not valid UTF-8").
				WithContext("field", f.name).
				WithContext(f.name, strings.ToValidUTF8(f.value, "\uFFFD")).
				Build()
		}
		if format == FormatXML {
			if i := strings.IndexFunc(f.value, notXMLChar); i >= 0 {
				return invalidArgument("endpoint identity contains a character XML cannot hold").
					WithContext("field", f.name).
					WithContext("offset", i).
					Build()
			}
		}
	}
	return nil
}

// notXMLChar reports whether r falls outside the XML 1.0 Char production.
func notXMLChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return false
	case r < 0x20:
		return true
	case r >= 0xD800 && r <= 0xDFFF:
		return true
	case r == 0xFFFE, r == 0xFFFF:
		return true
	}
	return false
}
