package sources

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "reviewscraper/pkg/errors"
	"reviewscraper/pkg/fetch"
	"reviewscraper/pkg/models"
)

// G2 reads the server-rendered review listing, which carries schema.org
// Review microdata.
type G2 struct {
	baseURL string
}

type g2Record struct {
	title    string
	body     string
	date     string
	rating   string
	best     string
	author   string
	verified bool
	helpful  string
}

func (a *G2) Source() models.Source { return models.SourceG2 }

func (a *G2) BuildRequest(company string, page int) fetch.PageRequest {
	return fetch.PageRequest{
		Source: string(models.SourceG2),
		URL: pageURL(a.baseURL,
			"/products/"+url.PathEscape(Slug(company))+"/reviews",
			url.Values{"page": {strconv.Itoa(page)}}),
		Headers: map[string]string{"Accept": "text/html"},
		Page:    page,
	}
}

func (a *G2) ParsePage(raw []byte, page int) (*RawPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, errs.Parse(string(models.SourceG2), page, "unreadable HTML: "+err.Error())
	}

	container := doc.Find("#reviews")
	if container.Length() == 0 {
		return nil, errs.Parse(string(models.SourceG2), page, "review container #reviews not found")
	}

	out := &RawPage{PageNumber: page}
	container.Find("[itemprop=review]").Each(func(_ int, s *goquery.Selection) {
		out.Records = append(out.Records, g2Record{
			title:    strings.TrimSpace(ownProp(s, "name").First().Text()),
			body:     strings.TrimSpace(s.Find("[itemprop=reviewBody]").First().Text()),
			date:     propValue(s.Find("[itemprop=datePublished]").First()),
			rating:   propValue(s.Find("[itemprop=ratingValue]").First()),
			best:     propValue(s.Find("[itemprop=bestRating]").First()),
			author:   strings.TrimSpace(s.Find("[itemprop=author] [itemprop=name]").First().Text()),
			verified: s.Find(".verified-badge").Length() > 0,
			helpful:  s.Find("[data-helpful-count]").First().AttrOr("data-helpful-count", ""),
		})
	})
	out.HasNext = doc.Find("a[rel=next]").Length() > 0

	return out, nil
}

func (a *G2) ToReview(rec Record) (models.Candidate, error) {
	r, ok := rec.(g2Record)
	if !ok {
		return models.Candidate{}, recordTypeError(models.SourceG2, rec)
	}

	rating, err := strconv.ParseFloat(r.rating, 64)
	if err != nil {
		return models.Candidate{}, errs.New(errs.ErrorTypeValidation, "g2 rating "+strconv.Quote(r.rating)+" is not a number")
	}
	scale := 5.0
	if best, err := strconv.ParseFloat(r.best, 64); err == nil && best > 0 {
		scale = best
	}
	helpful, _ := strconv.Atoi(strings.TrimSpace(r.helpful))

	return models.Candidate{
		Title:        r.title,
		Description:  r.body,
		Date:         r.date,
		Rating:       rating,
		RatingScale:  scale,
		ReviewerName: r.author,
		Verified:     r.verified,
		HelpfulCount: helpful,
	}, nil
}

// ownProp finds itemprop=name elements belonging to the review itself,
// skipping those nested in the author scope.
func ownProp(s *goquery.Selection, prop string) *goquery.Selection {
	return s.Find("[itemprop=" + prop + "]").FilterFunction(func(_ int, el *goquery.Selection) bool {
		return el.ParentsUntilSelection(s).Filter("[itemscope]").Length() == 0
	})
}

// propValue reads a microdata value from content, datetime or text.
func propValue(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	for _, attr := range []string{"content", "datetime"} {
		if v, ok := s.Attr(attr); ok {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(s.Text())
}
