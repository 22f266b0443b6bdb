package extract

import (
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// HTML element and attribute names used by the queries.
const (
	elementInput  = "input"
	elementAnchor = "a"
	attrName      = "name"
	attrValue     = "value"
	attrHref      = "href"
	attrClass     = "class"
)

// CSRFField is the form field carrying the anti-forgery token.
const CSRFField = "csrfmiddlewaretoken"

// skippedSchemes are href prefixes that are never followed.
var skippedSchemes = []string{"http:", "https:", "mailto:"}

// Parse parses an HTML document. The parser recovers from malformed
// markup, so an error is only returned for read failures.
func Parse(body string) (*html.Node, error) {
	return html.Parse(strings.NewReader(body))
}

// FindToken returns the value attribute of the first input element whose
// name attribute equals field.
func FindToken(root *html.Node, field string) (string, bool) {
	var token string
	found := false
	walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != elementInput {
			return true
		}
		if name, ok := getAttr(n, attrName); !ok || name != field {
			return true
		}
		token, found = getAttr(n, attrValue)
		return !found
	})
	return token, found
}

// FindLinks returns the href of every anchor in document order, skipping
// absolute http(s) and mailto targets.
func FindLinks(root *html.Node) []string {
	links := make([]string, 0)
	walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != elementAnchor {
			return true
		}
		href, ok := getAttr(n, attrHref)
		if ok && href != "" && !isSkippedLink(href) {
			links = append(links, href)
		}
		return true
	})
	return links
}

// FindMarked returns the trimmed content of the first non-blank text node
// nested inside an element whose class list contains class.
func FindMarked(root *html.Node, class string) (string, bool) {
	type frame struct {
		node   *html.Node
		marked bool
	}

	if root == nil {
		return "", false
	}
	stack := []frame{{node: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		marked := f.marked
		switch f.node.Type {
		case html.ElementNode:
			if hasClass(f.node, class) {
				marked = true
			}
		case html.TextNode:
			if marked {
				if text := strings.TrimSpace(f.node.Data); text != "" {
					return text, true
				}
			}
		}

		for c := f.node.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, frame{node: c, marked: marked})
		}
	}
	return "", false
}

// walk visits nodes in pre-order until visit returns false.
func walk(root *html.Node, visit func(*html.Node) bool) {
	if root == nil {
		return
	}
	stack := []*html.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !visit(n) {
			return
		}

		// Push children in reverse so the first child is visited first.
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, ok := getAttr(n, attrClass)
	if !ok {
		return false
	}
	return slices.Contains(strings.Fields(v), class)
}

func isSkippedLink(href string) bool {
	lower := strings.ToLower(strings.TrimSpace(href))
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}
