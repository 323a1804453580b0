package export

import "fmt"

// Service renders idea pages to PDF.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Export renders the page to HTML and prints it via headless Chrome. The
// caller has already resolved visibility; only public content reaches this
// package.
func (s *Service) Export(page Page) (*Result, error) {
	html, err := renderPageHTML(page)
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return exportPDF(html, page.Title)
}
