package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// first 返回 selector 的第一个匹配；不存在时 ok=false。
func first(doc *goquery.Document, selector string) (*goquery.Selection, bool) {
	s := doc.Find(selector).First()
	return s, s.Length() > 0
}

// labeled 返回所有 tag 元素中“某个直接文本子节点等于 label”的那些。
func labeled(doc *goquery.Document, tag, label string) *goquery.Selection {
	return doc.Find(tag).FilterFunction(func(_ int, s *goquery.Selection) bool {
		for _, n := range s.Nodes {
			if hasOwnText(n, label) {
				return true
			}
		}
		return false
	})
}

func hasOwnText(n *html.Node, label string) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) == label {
			return true
		}
	}
	return false
}

// labelBlock 定位文本恰为 label 的文本节点，返回其祖父元素（label 所在标题的外层块）。
func labelBlock(doc *goquery.Document, label string) (*goquery.Selection, bool) {
	for _, root := range doc.Nodes {
		if n := findText(root, label); n != nil && n.Parent != nil {
			s := doc.FindNodes(n.Parent).Parent()
			return s, s.Length() > 0
		}
	}
	return nil, false
}

func findText(n *html.Node, label string) *html.Node {
	if n.Type == html.TextNode && strings.TrimSpace(n.Data) == label {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hit := findText(c, label); hit != nil {
			return hit
		}
	}
	return nil
}

// NextInDocument 返回 s 之后按文档顺序出现的第一个元素（先进入子孙，再到后续兄弟与祖先的兄弟）。
// 找不到时返回空 Selection。
func NextInDocument(s *goquery.Selection) *goquery.Selection {
	if s == nil || s.Length() == 0 {
		return &goquery.Selection{}
	}
	for n := advance(s.Nodes[0]); n != nil; n = advance(n) {
		if n.Type == html.ElementNode {
			return goquery.NewDocumentFromNode(root(n)).FindNodes(n)
		}
	}
	return &goquery.Selection{}
}

func root(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

func advance(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for ; n != nil; n = n.Parent {
		if n.NextSibling != nil {
			return n.NextSibling
		}
	}
	return nil
}

func trimmedText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

// firstLine 截取到第一个换行或左括号之前（去掉 "(estimated)" 之类的附注）。
func firstLine(s string) string {
	if i := strings.IndexAny(s, "\n("); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
