package parser

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// findAll returns all elements below root (root included) accepted by match, in document order
func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

// findFirst returns the first element accepted by match, or nil
func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root.Type == html.ElementNode && match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := findFirst(c, match); n != nil {
			return n
		}
	}
	return nil
}

func byTag(tag atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.DataAtom == tag
	}
}

func byTagClass(tag atom.Atom, class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.DataAtom == tag && hasClass(n, class)
	}
}

// childOf matches elements accepted by match whose parent is accepted by parent (`parent > child`)
func childOf(parent, match func(*html.Node) bool) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return match(n) && n.Parent != nil && n.Parent.Type == html.ElementNode && parent(n.Parent)
	}
}

// getAttr returns the value of an attribute on a node
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// textOf joins all text below n and trims the result
func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// ancestors returns the first levels element ancestors of n, nearest first.
// It returns false when the tree is not that deep.
func ancestors(n *html.Node, levels int) ([]*html.Node, bool) {
	result := make([]*html.Node, 0, levels)
	for p := n.Parent; len(result) < levels; p = p.Parent {
		if p == nil || p.Type != html.ElementNode {
			return nil, false
		}
		result = append(result, p)
	}
	return result, true
}

// cellTexts returns the text of the direct td/th children of a row
func cellTexts(row *html.Node) []string {
	var cells []string
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			cells = append(cells, textOf(c))
		}
	}
	return cells
}

// lastCells returns the last n cells in their original order.
// It returns false if fewer than n cells exist.
func lastCells(cells []string, n int) ([]string, bool) {
	if n < 0 || len(cells) < n {
		return nil, false
	}
	return cells[len(cells)-n:], true
}
