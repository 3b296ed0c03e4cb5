package dom

import (
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"
	"golang.org/x/net/html"
)

var (
	minifier *minify.M
	once     sync.Once
)

// getMinifier returns the configured HTML minifier (singleton).
func getMinifier() *minify.M {
	once.Do(func() {
		minifier = minify.New()
		minifier.AddFunc("text/html", minhtml.Minify)
	})
	return minifier
}

// Serialize renders a node subtree back to markup.
func Serialize(n *html.Node) string {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}

// SerializeChildren renders the children of n, without n's own tag.
func SerializeChildren(n *html.Node) string {
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&b, child); err != nil {
			return ""
		}
	}
	return b.String()
}

// SerializeNormalized renders a subtree and minifies the markup so tests and
// patch payloads compare without whitespace noise. Falls back to the plain
// serialization when minification fails.
func SerializeNormalized(n *html.Node) string {
	raw := Serialize(n)
	minified, err := getMinifier().String("text/html", raw)
	if err != nil {
		return raw
	}
	return minified
}
