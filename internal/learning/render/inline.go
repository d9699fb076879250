package render

import (
	"strings"
)

const diagramMarker = "[Wikipedia Diagram:"

// parseInline tokenizes one line of text. Code spans and math are matched
// first at each position, so emphasis markers inside them stay literal.
func parseInline(s string) []inline {
	var out []inline
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, inline{kind: inlineText, text: buf.String()})
			buf.Reset()
		}
	}
	emit := func(n inline) {
		flush()
		out = append(out, n)
	}

	for i := 0; i < len(s); {
		rest := s[i:]
		switch {
		case strings.HasPrefix(rest, "```"):
			if j := strings.Index(rest[3:], "```"); j >= 0 {
				emit(inline{kind: inlineCode, text: rest[3 : 3+j]})
				i += j + 6
				continue
			}
		case rest[0] == '`':
			if j := strings.IndexByte(rest[1:], '`'); j > 0 {
				emit(inline{kind: inlineCode, text: rest[1 : 1+j]})
				i += j + 2
				continue
			}
		case strings.HasPrefix(rest, "$$"):
			if j := strings.Index(rest[2:], "$$"); j >= 0 && strings.TrimSpace(rest[2:2+j]) != "" {
				emit(inline{kind: inlineMathDisplay, text: strings.TrimSpace(rest[2 : 2+j])})
				i += j + 4
				continue
			}
		case strings.HasPrefix(rest, `\[`):
			if j := strings.Index(rest[2:], `\]`); j >= 0 {
				emit(inline{kind: inlineMathDisplay, text: strings.TrimSpace(rest[2 : 2+j])})
				i += j + 4
				continue
			}
		case strings.HasPrefix(rest, `\(`):
			if j := strings.Index(rest[2:], `\)`); j >= 0 {
				emit(inline{kind: inlineMath, text: strings.TrimSpace(rest[2 : 2+j])})
				i += j + 4
				continue
			}
		case rest[0] == '$':
			if j := closingDollar(rest); j > 0 {
				emit(inline{kind: inlineMath, text: rest[1:j]})
				i += j + 1
				continue
			}
		case strings.HasPrefix(rest, "**"):
			if j := strings.Index(rest[2:], "**"); j > 0 {
				emit(inline{kind: inlineStrong, children: parseInline(rest[2 : 2+j])})
				i += j + 4
				continue
			}
		case rest[0] == '*':
			if j := closingStar(rest); j > 0 {
				emit(inline{kind: inlineEm, children: parseInline(rest[1:j])})
				i += j + 1
				continue
			}
		case strings.HasPrefix(rest, diagramMarker):
			if j := strings.IndexByte(rest, ']'); j > 0 {
				if topic := strings.TrimSpace(rest[len(diagramMarker):j]); topic != "" {
					emit(inline{kind: inlineDiagram, text: topic})
					i += j + 1
					continue
				}
			}
		}
		buf.WriteByte(s[i])
		i++
	}
	flush()
	return out
}

// closingDollar returns the index of the "$" closing an inline math span
// opened at s[0], or -1. Both delimiters must hug non-space content and the
// closer may not be followed by a digit, which keeps "$5 and $10" as text.
func closingDollar(s string) int {
	if len(s) < 3 || isSpace(s[1]) || s[1] == '$' {
		return -1
	}
	j := strings.IndexByte(s[1:], '$')
	if j <= 0 {
		return -1
	}
	j++
	if isSpace(s[j-1]) {
		return -1
	}
	if j+1 < len(s) && isDigit(s[j+1]) {
		return -1
	}
	return j
}

func closingStar(s string) int {
	if len(s) < 3 || isSpace(s[1]) || s[1] == '*' {
		return -1
	}
	j := strings.IndexByte(s[1:], '*')
	if j <= 0 {
		return -1
	}
	j++
	if isSpace(s[j-1]) {
		return -1
	}
	return j
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' }
func isDigit(b byte) bool { return b >= '0' && b <= '9' }
