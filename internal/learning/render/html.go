package render

import (
	"crypto/sha256"
	"encoding/hex"
	"html"
	"regexp"
	"strconv"
	"strings"
)

var reEntity = regexp.MustCompile(`&(?:[a-zA-Z][a-zA-Z0-9]*|#[0-9]+|#[xX][0-9a-fA-F]+);`)

// escapeText escapes prose while leaving existing character references alone.
func escapeText(s string) string {
	locs := reEntity.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return html.EscapeString(s)
	}
	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		b.WriteString(html.EscapeString(s[prev:loc[0]]))
		b.WriteString(s[loc[0]:loc[1]])
		prev = loc[1]
	}
	b.WriteString(html.EscapeString(s[prev:]))
	return b.String()
}

func diagramPlaceholder(tag, topic string) string {
	return `<` + tag + ` class="diagram-container" data-diagram-topic="` + html.EscapeString(topic) +
		`"><span class="diagram-loading">Loading diagram...</span></` + tag + `>`
}

func mermaidKey(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:8])
}

func writeInlines(b *strings.Builder, nodes []inline, exercise bool) {
	for i, n := range nodes {
		switch n.kind {
		case inlineText:
			b.WriteString(escapeText(n.text))
		case inlineCode:
			b.WriteString("<code>")
			b.WriteString(html.EscapeString(n.text))
			b.WriteString("</code>")
		case inlineMath:
			b.WriteString(`<span class="math-inline">`)
			b.WriteString(html.EscapeString(n.text))
			b.WriteString("</span>")
		case inlineMathDisplay:
			b.WriteString(`<span class="math-display">`)
			b.WriteString(html.EscapeString(n.text))
			b.WriteString("</span>")
		case inlineStrong:
			// Later labels in an exercise ("**Answer:**") start their own line.
			if exercise && i > 0 && strings.HasSuffix(strings.TrimSpace(plainText(n.children)), ":") {
				b.WriteString("<br>")
			}
			b.WriteString("<strong>")
			writeInlines(b, n.children, false)
			b.WriteString("</strong>")
		case inlineEm:
			b.WriteString("<em>")
			writeInlines(b, n.children, false)
			b.WriteString("</em>")
		case inlineDiagram:
			b.WriteString(diagramPlaceholder("span", n.text))
		}
	}
}

func plainText(nodes []inline) string {
	var b strings.Builder
	for _, n := range nodes {
		if len(n.children) > 0 {
			b.WriteString(plainText(n.children))
			continue
		}
		b.WriteString(n.text)
	}
	return b.String()
}

func writeLines(b *strings.Builder, lines [][]inline, exercise bool) {
	for i, ln := range lines {
		if i > 0 {
			b.WriteString("<br>")
		}
		writeInlines(b, ln, exercise)
	}
}

func writeList(b *strings.Builder, l *list) {
	tag := "ul"
	if l.ordered {
		tag = "ol"
	}
	b.WriteString("<" + tag)
	if l.ordered && l.start > 1 {
		b.WriteString(` start="` + strconv.Itoa(l.start) + `"`)
	}
	b.WriteString(">")
	for _, it := range l.items {
		b.WriteString("<li>")
		writeInlines(b, it.content, false)
		if it.nested != nil {
			writeList(b, it.nested)
		}
		b.WriteString("</li>")
	}
	b.WriteString("</" + tag + ">")
}

func writeTable(b *strings.Builder, t *table) {
	b.WriteString(`<table class="content-table"><thead><tr>`)
	for _, c := range t.header {
		b.WriteString("<th>")
		writeInlines(b, c, false)
		b.WriteString("</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range t.rows {
		b.WriteString("<tr>")
		for _, c := range row {
			b.WriteString("<td>")
			writeInlines(b, c, false)
			b.WriteString("</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
}

// writeBlock renders one block. Every block starts at the beginning of a line
// so that rendered output parses back as raw HTML blocks.
func (r *Renderer) writeBlock(b *strings.Builder, blk block) {
	switch blk.kind {
	case blockParagraph:
		b.WriteString("<p>")
		writeLines(b, blk.lines, false)
		b.WriteString("</p>")
	case blockExercise:
		b.WriteString(`<div class="exercise">`)
		writeLines(b, blk.lines, true)
		b.WriteString("</div>")
	case blockHeading:
		h := "h" + strconv.Itoa(blk.level)
		b.WriteString("<" + h + ">")
		writeLines(b, blk.lines, false)
		b.WriteString("</" + h + ">")
	case blockQuote:
		b.WriteString("<blockquote>")
		writeLines(b, blk.lines, false)
		b.WriteString("</blockquote>")
	case blockCode:
		b.WriteString("<pre><code")
		if blk.lang != "" {
			b.WriteString(` class="language-` + html.EscapeString(blk.lang) + `"`)
		}
		b.WriteString(">")
		b.WriteString(html.EscapeString(blk.text))
		b.WriteString("</code></pre>")
	case blockMermaid:
		b.WriteString(r.mermaid.container(blk.text))
	case blockMath:
		b.WriteString(`<div class="math-display">`)
		b.WriteString(html.EscapeString(blk.text))
		b.WriteString("</div>")
	case blockList:
		writeList(b, blk.list)
	case blockTable:
		writeTable(b, blk.table)
	case blockDiagram:
		b.WriteString(diagramPlaceholder("div", blk.text))
	case blockSpacer:
		b.WriteString(`<div class="section-break"></div>`)
	case blockHTML:
		b.WriteString(blk.text)
	}
}
