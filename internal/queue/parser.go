package queue

import (
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var (
	// ErrElementNotFound means the page has no element with the configured class
	ErrElementNotFound = errors.New("queue element not found")

	// ErrNoEstimate means the element text has no minute figure in it
	ErrNoEstimate = errors.New("no queue estimate in text")
)

// "5", "5 min", "5-10 minutes", "< 5 min", "5 – 10"
var minutesPattern = regexp.MustCompile(`(\d+)(?:\s*[-–—]\s*(\d+))?`)

// extractText returns the whitespace-collapsed text of the first element whose
// class list contains className
func extractText(r io.Reader, className string) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	node := findByClass(doc, className)
	if node == nil {
		return "", ErrElementNotFound
	}

	var sb strings.Builder
	collectText(node, &sb)
	return strings.Join(strings.Fields(sb.String()), " "), nil
}

func findByClass(n *html.Node, className string) *html.Node {
	if n.Type == html.ElementNode && hasClass(n, className) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, className); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, className string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == className {
				return true
			}
		}
	}
	return false
}

func collectText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

// parseMinutes reads a wait estimate from free text. Ranges resolve to their
// upper bound.
func parseMinutes(text string) (int, error) {
	m := minutesPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, ErrNoEstimate
	}

	value := m[1]
	if m[2] != "" {
		value = m[2]
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, ErrNoEstimate
	}
	return n, nil
}
