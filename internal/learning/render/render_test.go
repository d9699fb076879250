package render

import (
	"strings"
	"testing"
)

const sampleLesson = "## Intro\n" +
	"Some *text* with `code` and $x^2$.\n" +
	"Second line.\n" +
	"\n" +
	"1. a\n" +
	"- b\n" +
	"2. c\n" +
	"\n" +
	"| H1 | H2 |\n" +
	"|----|----|\n" +
	"| a | b |\n" +
	"| c | d |\n" +
	"\n" +
	"```go\n" +
	"if a < b {\n" +
	"\n" +
	"}\n" +
	"```\n" +
	"---\n" +
	"> quoted **bold**\n" +
	"[Wikipedia Diagram: Cell]\n" +
	"```mermaid\n" +
	"graph TD; A-->B\n" +
	"```\n" +
	"$$\n" +
	"E = mc^2\n" +
	"$$\n" +
	"**Exercise 1:** Write a loop. **Hint:** use for\n"

func TestRenderIsIdempotent(t *testing.T) {
	r := New(Options{})
	once := r.Render(sampleLesson)
	twice := r.Render(once)
	if once != twice {
		t.Fatalf("render not idempotent:\nonce=%s\ntwice=%s", once, twice)
	}
	for _, leftover := range []string{"```", "**", "$$", "[Wikipedia Diagram", "\x00"} {
		if strings.Contains(once, leftover) {
			t.Fatalf("leftover token %q in output:\n%s", leftover, once)
		}
	}
}

func TestRenderEmpty(t *testing.T) {
	if got := RenderContent("   \n"); got != "" {
		t.Fatalf("RenderContent(blank): got=%q", got)
	}
}

func TestFencedCodeIsNotParsedAsList(t *testing.T) {
	got := RenderContent("Example:\n```\n1. not a list\n- nor this\n```")
	if strings.Contains(got, "<ol") || strings.Contains(got, "<li>") {
		t.Fatalf("code body parsed as list: %s", got)
	}
	if !strings.Contains(got, "<pre><code>1. not a list\n- nor this</code></pre>") {
		t.Fatalf("code block missing: %s", got)
	}
}

func TestUnclosedFenceIsText(t *testing.T) {
	got := RenderContent("```go\nx := 1")
	if strings.Contains(got, "<pre>") {
		t.Fatalf("unclosed fence became code: %s", got)
	}
}

func TestBulletsNestInsideOrderedList(t *testing.T) {
	got := RenderContent("1. a\n- b\n- b2\n2. c")
	want := "<ol><li>a<ul><li>b</li><li>b2</li></ul></li><li>c</li></ol>"
	if got != want {
		t.Fatalf("nested list:\ngot=%s\nwant=%s", got, want)
	}
}

func TestResumedOrderedListKeepsNumbering(t *testing.T) {
	got := RenderContent("1. a\n\n2. b")
	if !strings.Contains(got, `<ol start="2"><li>b</li></ol>`) {
		t.Fatalf("resumed list: %s", got)
	}
}

func TestUnclosedListClosesAtEnd(t *testing.T) {
	got := RenderContent("- a\n- b")
	if got != "<ul><li>a</li><li>b</li></ul>" {
		t.Fatalf("bullet list: got=%s", got)
	}
}

func TestTable(t *testing.T) {
	got := RenderContent("| H1 | H2 |\n|:---|---:|\n| a | b |\n| c | d |")
	if n := strings.Count(got, "<th>"); n != 2 {
		t.Fatalf("header cells: got=%d in %s", n, got)
	}
	body := got[strings.Index(got, "<tbody>"):]
	if n := strings.Count(body, "<tr>"); n != 2 {
		t.Fatalf("body rows: got=%d in %s", n, got)
	}
}

func TestTableCellKeepsPipeInsideCode(t *testing.T) {
	got := RenderContent("| Expr | N |\n|---|---|\n| `x|y` | 2 |")
	body := got[strings.Index(got, "<tbody>"):]
	if n := strings.Count(body, "<td>"); n != 2 {
		t.Fatalf("body cells: got=%d in %s", n, got)
	}
	if !strings.Contains(body, "<td><code>x|y</code></td>") {
		t.Fatalf("code cell: got=%s", body)
	}
	if cells := splitRow("| `open | b |"); len(cells) != 2 {
		t.Fatalf("unclosed backtick: got=%q", cells)
	}
}

func TestPipeLinesWithoutSeparatorAreText(t *testing.T) {
	got := RenderContent("| just | text |\n| more | text |")
	if strings.Contains(got, "<table") {
		t.Fatalf("table without separator: %s", got)
	}
}

func TestExerciseLabelsBreak(t *testing.T) {
	got := RenderContent("**Q:** What is Go? **Answer:** A language")
	want := `<div class="exercise"><strong>Q:</strong> What is Go? <br><strong>Answer:</strong> A language</div>`
	if got != want {
		t.Fatalf("exercise:\ngot=%s\nwant=%s", got, want)
	}
}

func TestMath(t *testing.T) {
	got := RenderContent(`Area is $\pi r^2$ and \(a+b\).`)
	if strings.Count(got, `<span class="math-inline">`) != 2 {
		t.Fatalf("inline math: %s", got)
	}
	got = RenderContent("It costs $5 and $10 today.")
	if strings.Contains(got, "math") {
		t.Fatalf("currency became math: %s", got)
	}
	got = RenderContent("\\[\n\\int_0^1 x\\,dx\n\\]")
	if got != `<div class="math-display">\int_0^1 x\,dx</div>` {
		t.Fatalf("display math: %s", got)
	}
}

func TestModuleTitlesDropped(t *testing.T) {
	got := RenderContent("Module 2: Types\n## **Module: Extra**\nReal text")
	if strings.Contains(got, "Module") {
		t.Fatalf("module line kept: %s", got)
	}
	if got != "<p>Real text</p>" {
		t.Fatalf("got=%s", got)
	}
}

func TestSectionBreakAndDiagram(t *testing.T) {
	got := RenderContent("a\n---\n[Wikipedia Diagram: Mitochondrion]")
	if !strings.Contains(got, `<div class="section-break"></div>`) {
		t.Fatalf("section break missing: %s", got)
	}
	if !strings.Contains(got, `<div class="diagram-container" data-diagram-topic="Mitochondrion">`) {
		t.Fatalf("diagram block missing: %s", got)
	}
	inline := RenderContent("See [Wikipedia Diagram: Atom] here")
	if !strings.Contains(inline, `<span class="diagram-container" data-diagram-topic="Atom">`) {
		t.Fatalf("inline diagram missing: %s", inline)
	}
}

func TestOuterFenceStripped(t *testing.T) {
	got := RenderContent("```markdown\n# Title\ntext\n```")
	if got != "<h1>Title</h1>\n<p>text</p>" {
		t.Fatalf("outer fence: got=%s", got)
	}
	got = RenderContent("```python\nprint(1)\n```")
	if !strings.Contains(got, `<code class="language-python">`) {
		t.Fatalf("code document stripped: %s", got)
	}
}

func TestTextIsEscapedAndScriptsRemoved(t *testing.T) {
	got := RenderContent("if a<b && c &amp; d\n\n<div>ok<script>alert(1)</script></div>")
	if !strings.Contains(got, "a&lt;b &amp;&amp; c &amp; d") {
		t.Fatalf("escaping: %s", got)
	}
	if strings.Contains(got, "script") || strings.Contains(got, "alert") {
		t.Fatalf("script survived: %s", got)
	}
}

func TestMermaidCacheKeyedBySource(t *testing.T) {
	r := New(Options{})
	src := "```mermaid\ngraph TD; A-->B\n```"
	a := r.Render("x\n" + src)
	b := r.Render("y\n" + src)
	if r.MermaidCacheLen() != 1 {
		t.Fatalf("cache len: got=%d", r.MermaidCacheLen())
	}
	ka := a[strings.Index(a, "data-diagram-key"):]
	kb := b[strings.Index(b, "data-diagram-key"):]
	if ka != kb {
		t.Fatalf("same source rendered differently:\n%s\n%s", a, b)
	}
	if !strings.Contains(a, "A--&gt;B") {
		t.Fatalf("mermaid source not escaped: %s", a)
	}
}
