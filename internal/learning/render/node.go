package render

// The transformer parses generated text into blocks, each carrying already
// tokenized inline content, and only then renders. Code, math and raw HTML
// are leaves: once tokenized nothing downstream looks inside them again.

type blockKind int

const (
	blockParagraph blockKind = iota
	blockExercise
	blockHeading
	blockQuote
	blockCode
	blockMermaid
	blockMath
	blockList
	blockTable
	blockDiagram
	blockSpacer
	blockHTML
)

type block struct {
	kind  blockKind
	level int
	lang  string
	// text holds literal content: code, mermaid source, math, raw HTML, diagram topic.
	text  string
	lines [][]inline
	list  *list
	table *table
}

type list struct {
	ordered bool
	start   int
	items   []*listItem
}

type listItem struct {
	content []inline
	nested  *list
}

type table struct {
	header [][]inline
	rows   [][][]inline
}

type inlineKind int

const (
	inlineText inlineKind = iota
	inlineCode
	inlineMath
	inlineMathDisplay
	inlineStrong
	inlineEm
	inlineDiagram
)

type inline struct {
	kind     inlineKind
	text     string
	children []inline
}
