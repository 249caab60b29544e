package pageparse

import (
	"net/url"
	"testing"

	"exo-agent/internal/domain/entity"

	"github.com/stretchr/testify/assert"
)

const googlePage = `<html><body><div id="search">
<div class="g"><a href="/url?q=https://go.dev/doc/&amp;sa=U"><h3>Documentation - Go</h3></a></div>
<div class="g tF2Cxc"><a href="https://gobyexample.com/"><h3>Go by Example</h3></a></div>
<div class="g"><a href="https://no-title.example.com/">no heading here</a></div>
<div class="g"><a href="https://go.dev/doc/"><h3>Duplicate</h3></a></div>
<div class="g"><a href="https://pkg.go.dev/"><h3>Go Packages</h3></a></div>
</div></body></html>`

const duckPage = `<html><body>
<div class="result"><h2><a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&amp;rut=abc">The Go <b>Programming</b> Language</a></h2></div>
<div class="result"><h2><a class="result__a" href="https://tour.golang.org/">A Tour of Go</a></h2></div>
<div class="result"><h2><a class="result__a" href="javascript:void(0)">Bogus</a></h2></div>
</body></html>`

func TestParseGoogleResults(t *testing.T) {
	results := ParseGoogleResults(googlePage, "https://www.google.com/search?q=go", 0)

	assert.Equal(t, []entity.SearchResult{
		{Title: "Documentation - Go", URL: "https://go.dev/doc/"},
		{Title: "Go by Example", URL: "https://gobyexample.com/"},
		{Title: "Go Packages", URL: "https://pkg.go.dev/"},
	}, results)
}

func TestParseGoogleResults_Limit(t *testing.T) {
	results := ParseGoogleResults(googlePage, "https://www.google.com/search?q=go", 2)
	assert.Len(t, results, 2)
}

func TestParseDuckDuckGoResults(t *testing.T) {
	results := ParseDuckDuckGoResults(duckPage, "https://html.duckduckgo.com/html/?q=go", 5)

	assert.Equal(t, []entity.SearchResult{
		{Title: "The Go Programming Language", URL: "https://go.dev/"},
		{Title: "A Tour of Go", URL: "https://tour.golang.org/"},
	}, results)
}

func TestResolveResultURL(t *testing.T) {
	base, _ := url.Parse("https://example.com/search")

	tests := []struct {
		href string
		want string
	}{
		{"https://site.com/a", "https://site.com/a"},
		{"/local", "https://example.com/local"},
		{"mailto:x@y.z", ""},
		{"", ""},
		{"/url?url=https%3A%2F%2Fsite.com%2Fb", "https://site.com/b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveResultURL(tt.href, base), tt.href)
	}
}
