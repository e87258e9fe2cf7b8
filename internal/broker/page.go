package broker

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxPageText   = 8000
	maxPageImages = 12
)

// PageData is what AnalyzePage sends for an arbitrary dating-app page.
type PageData struct {
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Headings []string `json:"headings,omitempty"`
	Text     string   `json:"text"`
	Images   []string `json:"images,omitempty"`
}

// ExtractPage pulls the visible text, headings and image sources out of an HTML page.
func ExtractPage(r io.Reader, pageURL string) (PageData, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return PageData{}, fmt.Errorf("parse page: %w", err)
	}
	doc.Find("script, style, noscript, svg, iframe").Remove()

	page := PageData{
		URL:   pageURL,
		Title: collapse(doc.Find("title").First().Text()),
	}
	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if text := collapse(s.Text()); text != "" {
			page.Headings = append(page.Headings, text)
		}
	})
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if src = strings.TrimSpace(src); src != "" && !strings.HasPrefix(src, "data:") {
			page.Images = append(page.Images, src)
		}
		return len(page.Images) < maxPageImages
	})

	text := collapse(doc.Find("body").Text())
	if len(text) > maxPageText {
		text = strings.ToValidUTF8(text[:maxPageText], "")
	}
	page.Text = text
	return page, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
