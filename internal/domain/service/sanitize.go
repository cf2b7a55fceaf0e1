package service

import "regexp"

// Плейсхолдеры, которыми заменяются чувствительные фрагменты описания операции
const (
	LiteralPlaceholder = "'?'"
	DatePlaceholder    = "<date>"
	IPPlaceholder      = "<ip>"
)

var (
	quotedLiteral = regexp.MustCompile(`'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"`)
	dateLiteral   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)?\b`)
	ipv4Literal   = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

// SanitizeOperation убирает из описания операции строковые литералы, даты и IPv4 адреса.
// Литералы заменяются первыми, поэтому дата внутри кавычек превращается в '?'.
func SanitizeOperation(description string) string {
	s := quotedLiteral.ReplaceAllString(description, LiteralPlaceholder)
	s = dateLiteral.ReplaceAllString(s, DatePlaceholder)
	return ipv4Literal.ReplaceAllString(s, IPPlaceholder)
}
