package normalizer

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// BuildSelector combines a node's tag with one attribute predicate per attribute,
// skipping excluded ones. Attributes with an empty value yield a presence predicate.
func BuildSelector(n *html.Node, excluded []string) string {
	var sb strings.Builder
	sb.WriteString(escapeIdent(n.Data))
	for _, attr := range n.Attr {
		if attr.Namespace != "" || isOneOf(attr.Key, excluded...) {
			continue
		}
		sb.WriteByte('[')
		sb.WriteString(escapeIdent(attr.Key))
		if attr.Val != "" {
			sb.WriteString(`="`)
			sb.WriteString(escapeString(attr.Val))
			sb.WriteByte('"')
		}
		sb.WriteByte(']')
	}
	return sb.String()
}

// escapeIdent escapes s as a CSS identifier.
func escapeIdent(s string) string {
	var sb strings.Builder
	for i, r := range s {
		switch {
		case r == 0:
			sb.WriteString(`\fffd `)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&sb, `\%x `, r)
		case i == 0 && r >= '0' && r <= '9':
			fmt.Fprintf(&sb, `\%x `, r)
		case i == 1 && r >= '0' && r <= '9' && s[0] == '-':
			fmt.Fprintf(&sb, `\%x `, r)
		case r >= 0x80, r == '-', r == '_',
			r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('\\')
			sb.WriteRune(r)
		}
	}
	if s == "-" {
		return `\-`
	}
	return sb.String()
}

// escapeString escapes s for use inside a double-quoted CSS string.
func escapeString(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == 0:
			sb.WriteString(`\fffd `)
		case r == '"' || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&sb, `\%x `, r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
