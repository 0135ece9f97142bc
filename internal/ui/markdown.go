package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	codeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7")).Background(lipgloss.Color("0"))
	emphStyle    = lipgloss.NewStyle().Italic(true)
	strongStyle  = lipgloss.NewStyle().Bold(true)
)

// RenderMarkdown renders markdown for terminal display: styled headings,
// indented code blocks, bulleted lists. Falls back to the raw text if
// parsing fails.
func RenderMarkdown(source string) string {
	src := []byte(source)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var b strings.Builder
	if err := renderNode(&b, doc, src, 0); err != nil {
		return source
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func renderNode(b *strings.Builder, n ast.Node, src []byte, depth int) error {
	switch node := n.(type) {
	case *ast.Heading:
		b.WriteString(headingStyle.Render(strings.Repeat("#", node.Level) + " " + nodeText(node, src)))
		b.WriteString("\n\n")
		return nil

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.WriteString("    ")
			b.WriteString(codeStyle.Render(strings.TrimRight(string(seg.Value(src)), "\n")))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		return nil

	case *ast.List:
		marker := "•"
		ordered := node.IsOrdered()
		index := node.Start
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			prefix := strings.Repeat("  ", depth) + marker + " "
			if ordered {
				prefix = fmt.Sprintf("%s%d. ", strings.Repeat("  ", depth), index)
				index++
			}
			b.WriteString(prefix)
			b.WriteString(listItemText(c, src, depth))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		return nil

	case *ast.Paragraph:
		b.WriteString(inlineText(n, src))
		b.WriteString("\n\n")
		return nil

	case *ast.Blockquote:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			b.WriteString("> " + inlineText(c, src) + "\n")
		}
		b.WriteString("\n")
		return nil

	case *ast.ThematicBreak:
		b.WriteString(strings.Repeat("─", 40) + "\n\n")
		return nil
	}

	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if err := renderNode(b, c, src, depth); err != nil {
			return err
		}
	}
	return nil
}

// listItemText renders a list item's paragraph plus any nested lists.
func listItemText(item ast.Node, src []byte, depth int) string {
	var b strings.Builder
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		switch c.(type) {
		case *ast.List:
			b.WriteString("\n")
			renderNode(&b, c, src, depth+1)
		default:
			b.WriteString(inlineText(c, src))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// inlineText flattens a block's inline children with emphasis and code
// styling applied.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			b.WriteString(string(node.Segment.Value(src)))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteString(" ")
			}
		case *ast.CodeSpan:
			b.WriteString(codeStyle.Render(nodeText(node, src)))
		case *ast.Emphasis:
			if node.Level >= 2 {
				b.WriteString(strongStyle.Render(nodeText(node, src)))
			} else {
				b.WriteString(emphStyle.Render(nodeText(node, src)))
			}
		case *ast.Link:
			b.WriteString(fmt.Sprintf("%s (%s)", inlineText(node, src), string(node.Destination)))
		default:
			b.WriteString(inlineText(c, src))
		}
	}
	return b.String()
}

// nodeText returns the concatenated source text under a node.
func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.WriteString(string(t.Segment.Value(src)))
		} else {
			b.WriteString(nodeText(c, src))
		}
	}
	return b.String()
}
