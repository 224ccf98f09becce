package presenter

import (
	"strings"
	"unicode"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Span is a run of advice text, either plain or strong.
type Span struct {
	Text   string
	Strong bool
}

// The advice grammar is deliberately tiny: paragraphs, and "**...**" for
// strong emphasis. No other markdown or HTML construct is recognised, so
// anything else in the text is shown literally.
var adviceParser = parser.NewParser(
	parser.WithBlockParsers(util.Prioritized(parser.NewParagraphParser(), 100)),
	parser.WithInlineParsers(util.Prioritized(starParser{}, 100)),
)

var kindStarRun = ast.NewNodeKind("StarRun")

// starRun is a matched pair of '*' delimiters. Level 2 is strong emphasis;
// level 1 is not supported and is written back with its delimiters.
type starRun struct {
	ast.BaseInline
	Level int
}

func (n *starRun) Kind() ast.NodeKind {
	return kindStarRun
}

func (n *starRun) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}

type starDelimiter struct{}

func (starDelimiter) IsDelimiter(b byte) bool {
	return b == '*'
}

func (starDelimiter) CanOpenCloser(opener, closer *parser.Delimiter) bool {
	return opener.Char == closer.Char
}

func (starDelimiter) OnMatch(consumes int) ast.Node {
	return &starRun{Level: consumes}
}

type starParser struct{}

func (starParser) Trigger() []byte {
	return []byte{'*'}
}

func (starParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	before := block.PrecendingCharacter()
	line, segment := block.PeekLine()
	node := parser.ScanDelimiter(line, before, 1, starDelimiter{})
	if node == nil {
		return nil
	}
	node.Segment = segment.WithStop(segment.Start + node.OriginalLength)
	block.Advance(node.OriginalLength)
	pc.PushDelimiter(node)
	return node
}

// ParseAdvice expands "**bold**" in untrusted advice text. Control
// characters are dropped first so the text cannot carry terminal escape
// sequences.
func ParseAdvice(advice string) []Span {
	clean := dedent(stripControl(advice))
	if strings.TrimSpace(clean) == "" {
		return nil
	}
	source := []byte(clean)
	doc := adviceParser.Parse(text.NewReader(source))

	var b spanBuilder
	strong := 0
	paragraphs := 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Paragraph:
			if entering {
				if paragraphs > 0 {
					b.write("\n\n", false)
				}
				paragraphs++
			}
		case *starRun:
			if node.Level >= 2 {
				if entering {
					strong++
				} else {
					strong--
				}
				return ast.WalkContinue, nil
			}
			b.write(strings.Repeat("*", node.Level), strong > 0)
		case *ast.Text:
			if !entering {
				return ast.WalkContinue, nil
			}
			b.write(string(node.Segment.Value(source)), strong > 0)
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.write("\n", false)
			}
		case *ast.String:
			if entering {
				b.write(string(node.Value), strong > 0)
			}
		case *parser.Delimiter:
			if entering {
				b.write(string(node.Segment.Value(source)), strong > 0)
			}
		}
		return ast.WalkContinue, nil
	})
	return b.spans
}

// PlainAdvice joins spans without any emphasis.
func PlainAdvice(spans []Span) string {
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

type spanBuilder struct {
	spans []Span
}

func (b *spanBuilder) write(s string, strong bool) {
	if s == "" {
		return
	}
	if n := len(b.spans); n > 0 && b.spans[n-1].Strong == strong {
		b.spans[n-1].Text += s
		return
	}
	b.spans = append(b.spans, Span{Text: s, Strong: strong})
}

// dedent trims leading indentation from every line. Only the paragraph
// block parser is registered, and it does not accept lines indented as
// code, so they would otherwise vanish.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimLeft(line, " \t")
	}
	return strings.Join(lines, "\n")
}

func stripControl(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
