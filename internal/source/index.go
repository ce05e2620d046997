package source

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Listing is one transcript advertised on a sitting index page.
type Listing struct {
	Name  string    `json:"name"`
	URL   string    `json:"url"`
	House string    `json:"house"`
	Date  time.Time `json:"date"`
	Proof bool      `json:"proof"`
}

// IndexPage is the parsed content of one sitting index page.
type IndexPage struct {
	Listings []Listing
	// Previous links to the preceding sitting week, or "" on the last page.
	Previous string
}

var previousWeekPattern = regexp.MustCompile(`(?i)previous\s+sitting\s+week`)

// indexDateLayout matches the date cells, e.g. "05 Mar 2024".
const indexDateLayout = "2 Jan 2006"

// ParseSittingIndex extracts transcript listings from a ParlInfo sitting
// index page. Relative links are resolved against baseURL. Rows without a
// recognizable house or date are skipped.
func ParseSittingIndex(r io.Reader, baseURL string) (IndexPage, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return IndexPage{}, fmt.Errorf("parse base url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return IndexPage{}, fmt.Errorf("parse index html: %w", err)
	}

	var page IndexPage
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		dateCell := row.Find("td.date").First()
		cells := row.Find("td")
		link := row.Find(`a[title="XML format"]`).First()
		if dateCell.Length() == 0 || cells.Length() < 2 || link.Length() == 0 {
			return
		}
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}

		date, err := time.Parse(indexDateLayout, strings.TrimSpace(dateCell.Text()))
		if err != nil {
			return
		}
		title := strings.TrimSpace(cells.Eq(1).Text())
		house := houseFromTitle(title)
		if house == "" {
			return
		}
		u, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		page.Listings = append(page.Listings, Listing{
			Name:  DocumentName(house, date),
			URL:   u.String(),
			House: house,
			Date:  date,
			Proof: strings.Contains(title, "Proof"),
		})
	})

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !previousWeekPattern.MatchString(a.Text()) {
			return true
		}
		href, _ := a.Attr("href")
		if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
			page.Previous = u.String()
		}
		return false
	})

	return page, nil
}

func houseFromTitle(title string) string {
	switch {
	case strings.Contains(title, "House of Representatives"):
		return "hofreps"
	case strings.Contains(title, "Senate"):
		return "senate"
	}
	return ""
}
