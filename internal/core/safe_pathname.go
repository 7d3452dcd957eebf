package core

import (
	"regexp"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// MaxPathnameLength is the longest allowed pathname in UTF-16 code units.
const MaxPathnameLength = 1024

var (
	multiSlash = regexp.MustCompile(`/{2,}`)
	dotPart    = regexp.MustCompile(`^\.{1,2}$`)
)

// reservedNames are escaped with a leading "@" so they cannot collide with
// object property names in consumers that store files in plain objects.
var reservedNames = map[string]bool{
	"prototype":            true,
	"constructor":          true,
	"toString":             true,
	"toLocaleString":       true,
	"valueOf":              true,
	"hasOwnProperty":       true,
	"isPrototypeOf":        true,
	"propertyIsEnumerable": true,
	"__defineGetter__":     true,
	"__lookupGetter__":     true,
	"__defineSetter__":     true,
	"__lookupSetter__":     true,
	"__proto__":            true,
}

func isBadPathRune(r rune) bool {
	switch {
	case r == '*':
		return true
	case r <= 0x1F, r >= 0x7F && r <= 0x9F:
		return true
	case r >= 0xD800 && r <= 0xDFFF, r == utf8.RuneError:
		return true
	}
	return false
}

func cleanPathPart(part string) string {
	part = strings.Map(func(r rune) rune {
		if isBadPathRune(r) {
			return '_'
		}
		return r
	}, part)
	if dotPart.MatchString(part) {
		return strings.Repeat("_", len(part))
	}
	if reservedNames[part] {
		return "@" + part
	}
	return part
}

// CleanPathname returns the closest acceptable form of pathname.
func CleanPathname(pathname string) string {
	pathname = strings.TrimSpace(pathname)
	pathname = multiSlash.ReplaceAllString(pathname, "/")
	pathname = strings.TrimSuffix(pathname, "/")
	if strings.HasPrefix(pathname, "/") {
		pathname = "_" + pathname
	}
	if pathname == "" {
		return "_"
	}
	parts := strings.Split(pathname, "/")
	for i, part := range parts {
		parts[i] = cleanPathPart(part)
	}
	return strings.Join(parts, "/")
}

// IsCleanPathname reports whether pathname is already clean and short
// enough to use as a FileMap key.
func IsCleanPathname(pathname string) bool {
	return CleanPathname(pathname) == pathname && utf16Length(pathname) <= MaxPathnameLength
}

func utf16Length(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// pathnamesConflict reports whether one pathname would be a directory of
// the other.
func pathnamesConflict(a, b string) bool {
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}
