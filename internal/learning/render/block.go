package render

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reOuterFence  = regexp.MustCompile("(?s)^```[ \t]*(markdown|md|html|text)?[ \t]*\n(.*?)\n?```$")
	reHeading     = regexp.MustCompile(`^(#{1,4})\s+(.+)$`)
	reQuote       = regexp.MustCompile(`^>\s?(.*)$`)
	reOrdered     = regexp.MustCompile(`^\s*(\d+)\.\s+(.*)$`)
	reBullet      = regexp.MustCompile(`^\s*[-•*]\s+(.*)$`)
	reRule        = regexp.MustCompile(`^-{3,}$`)
	reModuleTitle = regexp.MustCompile(`^(?:#{1,6}\s*)?(?:\*\*)?Module(?:\s+\d+)?\s*:`)
	reDiagramLine = regexp.MustCompile(`^\[Wikipedia Diagram:\s*([^\]]+?)\s*\]$`)
	reSepCell     = regexp.MustCompile(`^:?-+:?$`)
	reHTMLStart   = regexp.MustCompile(`^<(p|div|pre|ol|ul|table|blockquote|figure|section|h[1-6]|hr)[\s>/]`)
)

var voidTags = map[string]bool{"hr": true}

// stripOuterFence removes a single fence wrapping the whole document when it
// is tagged as prose (or not tagged at all). Anything else is real code.
func stripOuterFence(s string) string {
	t := strings.TrimSpace(s)
	m := reOuterFence.FindStringSubmatch(t)
	if m == nil {
		return s
	}
	inner := m[2]
	for _, ln := range strings.Split(inner, "\n") {
		if strings.HasPrefix(strings.TrimSpace(ln), "```") {
			return s
		}
	}
	return inner
}

type blockParser struct {
	lines  []string
	blocks []block
	para   []string
	list   *list
}

func parseBlocks(src string) []block {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = stripOuterFence(src)
	p := &blockParser{lines: strings.Split(src, "\n")}
	p.run()
	return p.blocks
}

func (p *blockParser) flushParagraph() {
	if len(p.para) == 0 {
		return
	}
	b := block{kind: blockParagraph}
	if strings.HasPrefix(strings.TrimSpace(p.para[0]), "**") {
		b.kind = blockExercise
	}
	for _, ln := range p.para {
		b.lines = append(b.lines, parseInline(strings.TrimSpace(ln)))
	}
	p.blocks = append(p.blocks, b)
	p.para = nil
}

func (p *blockParser) closeList() {
	if p.list == nil {
		return
	}
	p.blocks = append(p.blocks, block{kind: blockList, list: p.list})
	p.list = nil
}

func (p *blockParser) emit(b block) {
	p.flushParagraph()
	p.closeList()
	p.blocks = append(p.blocks, b)
}

func (p *blockParser) run() {
	n := len(p.lines)
	lastOrdered := 0
	for i := 0; i < n; {
		line := p.lines[i]
		t := strings.TrimSpace(line)

		if strings.HasPrefix(t, "```") {
			if b, next, ok := p.fence(i); ok {
				p.emit(b)
				i = next
				continue
			}
		}
		if m := reHTMLStart.FindStringSubmatch(t); m != nil && strings.HasPrefix(line, "<") {
			b, next := p.rawHTML(i, strings.ToLower(m[1]))
			p.emit(b)
			i = next
			continue
		}
		if strings.HasPrefix(t, "$$") || strings.HasPrefix(t, `\[`) {
			if b, next, ok := p.displayMath(i); ok {
				p.emit(b)
				i = next
				continue
			}
		}

		switch {
		case t == "":
			p.flushParagraph()
			p.closeList()
		case reRule.MatchString(t):
			p.emit(block{kind: blockSpacer})
		case reModuleTitle.MatchString(t):
		case reDiagramLine.MatchString(t):
			p.emit(block{kind: blockDiagram, text: reDiagramLine.FindStringSubmatch(t)[1]})
		case reHeading.MatchString(t):
			m := reHeading.FindStringSubmatch(t)
			p.emit(block{kind: blockHeading, level: len(m[1]), lines: [][]inline{parseInline(strings.TrimSpace(m[2]))}})
		case reQuote.MatchString(t):
			m := reQuote.FindStringSubmatch(t)
			p.emit(block{kind: blockQuote, lines: [][]inline{parseInline(strings.TrimSpace(m[1]))}})
		case strings.HasPrefix(t, "|") && i+1 < n && isTableSeparator(p.lines[i+1]):
			b, next := p.table(i)
			p.emit(b)
			i = next
			continue
		case reOrdered.MatchString(line):
			m := reOrdered.FindStringSubmatch(line)
			num, _ := strconv.Atoi(m[1])
			p.flushParagraph()
			if p.list != nil && !p.list.ordered {
				p.closeList()
			}
			if p.list == nil {
				start := 1
				// A numbered list split by a blank line or block keeps counting.
				if num > 1 && num == lastOrdered+1 {
					start = num
				}
				p.list = &list{ordered: true, start: start}
			}
			p.list.items = append(p.list.items, &listItem{content: parseInline(strings.TrimSpace(m[2]))})
			lastOrdered = num
		case reBullet.MatchString(line):
			m := reBullet.FindStringSubmatch(line)
			p.flushParagraph()
			item := &listItem{content: parseInline(strings.TrimSpace(m[1]))}
			if p.list != nil && p.list.ordered && len(p.list.items) > 0 {
				parent := p.list.items[len(p.list.items)-1]
				if parent.nested == nil {
					parent.nested = &list{}
				}
				parent.nested.items = append(parent.nested.items, item)
				break
			}
			if p.list == nil {
				p.list = &list{}
			}
			p.list.items = append(p.list.items, item)
		default:
			p.closeList()
			p.para = append(p.para, line)
		}
		i++
	}
	p.flushParagraph()
	p.closeList()
}

// fence consumes a fenced code block starting at line i. An opening fence
// with no closing fence is not a block.
func (p *blockParser) fence(i int) (block, int, bool) {
	open := strings.TrimSpace(p.lines[i])
	if len(open) > 6 && strings.HasSuffix(open, "```") {
		body := strings.TrimSpace(open[3 : len(open)-3])
		return block{kind: blockCode, text: body}, i + 1, true
	}
	lang := strings.ToLower(strings.TrimSpace(strings.Trim(open, "`")))
	for j := i + 1; j < len(p.lines); j++ {
		t := strings.TrimSpace(p.lines[j])
		if strings.HasPrefix(t, "```") && strings.Trim(t, "`") == "" {
			body := strings.Join(p.lines[i+1:j], "\n")
			kind := blockCode
			if lang == "mermaid" {
				kind = blockMermaid
				body = strings.TrimSpace(body)
			}
			return block{kind: kind, lang: lang, text: body}, j + 1, true
		}
	}
	return block{}, i, false
}

// rawHTML passes a block of markup through verbatim until the opening tag is
// balanced. Previously rendered output re-enters the pipeline this way.
func (p *blockParser) rawHTML(i int, tag string) (block, int) {
	if voidTags[tag] {
		return block{kind: blockHTML, text: p.lines[i]}, i + 1
	}
	openRe := regexp.MustCompile(`(?i)<` + tag + `(?:\s[^>]*)?>`)
	closeRe := regexp.MustCompile(`(?i)</` + tag + `\s*>`)
	depth := 0
	j := i
	for ; j < len(p.lines); j++ {
		depth += len(openRe.FindAllStringIndex(p.lines[j], -1))
		depth -= len(closeRe.FindAllStringIndex(p.lines[j], -1))
		if depth <= 0 {
			break
		}
	}
	if j >= len(p.lines) {
		j = len(p.lines) - 1
	}
	return block{kind: blockHTML, text: strings.Join(p.lines[i:j+1], "\n")}, j + 1
}

// displayMath handles $$...$$ and \[...\] occupying whole lines, possibly
// spanning several of them. A line with trailing prose after the closer is
// left to the inline pass.
func (p *blockParser) displayMath(i int) (block, int, bool) {
	t := strings.TrimSpace(p.lines[i])
	open, closer := "$$", "$$"
	if strings.HasPrefix(t, `\[`) {
		open, closer = `\[`, `\]`
	}
	body := t[len(open):]
	if k := strings.Index(body, closer); k >= 0 {
		if strings.TrimSpace(body[k+len(closer):]) != "" || strings.TrimSpace(body[:k]) == "" {
			return block{}, i, false
		}
		return block{kind: blockMath, text: strings.TrimSpace(body[:k])}, i + 1, true
	}
	parts := []string{body}
	for j := i + 1; j < len(p.lines); j++ {
		ln := strings.TrimSpace(p.lines[j])
		if k := strings.Index(ln, closer); k >= 0 {
			if strings.TrimSpace(ln[k+len(closer):]) != "" {
				return block{}, i, false
			}
			parts = append(parts, ln[:k])
			text := strings.TrimSpace(strings.Join(parts, " "))
			if text == "" {
				return block{}, i, false
			}
			return block{kind: blockMath, text: strings.Join(strings.Fields(text), " ")}, j + 1, true
		}
		if ln == "" {
			return block{}, i, false
		}
		parts = append(parts, ln)
	}
	return block{}, i, false
}

func (p *blockParser) table(i int) (block, int) {
	t := &table{}
	for _, c := range splitRow(p.lines[i]) {
		t.header = append(t.header, parseInline(c))
	}
	j := i + 2
	for ; j < len(p.lines); j++ {
		row := strings.TrimSpace(p.lines[j])
		if !strings.HasPrefix(row, "|") {
			break
		}
		var cells [][]inline
		for _, c := range splitRow(row) {
			cells = append(cells, parseInline(c))
		}
		t.rows = append(t.rows, cells)
	}
	return block{kind: blockTable, table: t}, j
}

func splitRow(line string) []string {
	t := strings.TrimSpace(line)
	t = strings.TrimPrefix(t, "|")
	t = strings.TrimSuffix(t, "|")
	var parts []string
	start := 0
	for i := 0; i < len(t); i++ {
		switch t[i] {
		case '`':
			// A pipe inside a closed code span belongs to the cell.
			if end := strings.IndexByte(t[i+1:], '`'); end >= 0 {
				i += end + 1
			}
		case '|':
			parts = append(parts, strings.TrimSpace(t[start:i]))
			start = i + 1
		}
	}
	return append(parts, strings.TrimSpace(t[start:]))
}

func isTableSeparator(line string) bool {
	t := strings.TrimSpace(line)
	if !strings.HasPrefix(t, "|") && !strings.Contains(t, "|") {
		return false
	}
	cells := splitRow(t)
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if !reSepCell.MatchString(c) {
			return false
		}
	}
	return true
}
