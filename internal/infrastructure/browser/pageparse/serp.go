package pageparse

import (
	"net/url"
	"strings"

	"exo-agent/internal/domain/entity"

	"golang.org/x/net/html"
)

// ParseGoogleResults reads organic results from a Google results page: each
// div.g block with an h3 title and a link.
func ParseGoogleResults(rawHTML, pageURL string, limit int) []entity.SearchResult {
	return parseResults(rawHTML, pageURL, limit, func(n *html.Node) (string, string, bool) {
		if n.Type != html.ElementNode || n.Data != "div" || !hasClass(n, "g") {
			return "", "", false
		}
		title := findNode(n, "h3")
		link := findNode(n, "a")
		if title == nil || link == nil {
			return "", "", false
		}
		return nodeText(title), attr(link, "href"), true
	})
}

// ParseDuckDuckGoResults reads results from the DuckDuckGo HTML endpoint, where
// each hit is an a.result__a link.
func ParseDuckDuckGoResults(rawHTML, pageURL string, limit int) []entity.SearchResult {
	return parseResults(rawHTML, pageURL, limit, func(n *html.Node) (string, string, bool) {
		if n.Type != html.ElementNode || n.Data != "a" || !hasClass(n, "result__a") {
			return "", "", false
		}
		return nodeText(n), attr(n, "href"), true
	})
}

type matchFunc func(n *html.Node) (title, href string, ok bool)

func parseResults(rawHTML, pageURL string, limit int, match matchFunc) []entity.SearchResult {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	base, _ := url.Parse(pageURL)

	var results []entity.SearchResult
	seen := make(map[string]bool)

	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if limit > 0 && len(results) >= limit {
			return false
		}
		if title, href, ok := match(n); ok {
			target := ResolveResultURL(href, base)
			if title != "" && target != "" && !seen[target] {
				seen[target] = true
				results = append(results, entity.SearchResult{Title: title, URL: target})
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(doc)

	return results
}

// ResolveResultURL unwraps search engine redirect links and returns an absolute
// http(s) URL, or "" when href does not lead off the results page.
func ResolveResultURL(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !u.IsAbs() && base != nil {
		u = base.ResolveReference(u)
	}

	q := u.Query()
	switch {
	case u.Path == "/url" && (q.Get("q") != "" || q.Get("url") != ""):
		target := q.Get("q")
		if target == "" {
			target = q.Get("url")
		}
		return ResolveResultURL(target, nil)
	case strings.HasSuffix(u.Path, "/l/") && q.Get("uddg") != "":
		return ResolveResultURL(q.Get("uddg"), nil)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
