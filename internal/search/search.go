package search

// Record is the data indexed for one public idea. Private and
// password-protected ideas are never indexed.
type Record struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	PublicMD  string `json:"publicMd"`
	OwnerName string `json:"ownerName"`
}

// Result is a single search hit returned to the caller.
type Result struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	OwnerName string `json:"ownerName"`
}

// Query describes a feed search request.
type Query struct {
	Text   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over the public feed.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}
