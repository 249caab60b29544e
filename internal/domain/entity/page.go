package entity

type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ScrapeResult is what a page visit yields: either the whole page text in Content,
// or one entry per element matched by Selector in Items.
type ScrapeResult struct {
	URL      string   `json:"url"`
	Title    string   `json:"title,omitempty"`
	Selector string   `json:"selector,omitempty"`
	Content  string   `json:"content,omitempty"`
	Items    []string `json:"items,omitempty"`
}

func (r *ScrapeResult) Count() int {
	return len(r.Items)
}

type Screenshot struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// FetchedPage pairs a search hit with the outcome of visiting it.
type FetchedPage struct {
	Hit  SearchResult
	Page *ScrapeResult
	Err  error
}
