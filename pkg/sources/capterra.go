package sources

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "reviewscraper/pkg/errors"
	"reviewscraper/pkg/fetch"
	"reviewscraper/pkg/models"
)

// Capterra reads the Next.js data document embedded in the review page.
type Capterra struct {
	baseURL string
}

type capterraRecord struct {
	Title           string  `json:"title"`
	GeneralComments string  `json:"generalComments"`
	Pros            string  `json:"prosText"`
	Cons            string  `json:"consText"`
	WrittenOn       string  `json:"writtenOn"`
	OverallRating   float64 `json:"overallRating"`
	HelpfulVotes    int     `json:"helpfulVotes"`
	Reviewer        struct {
		FullName    string `json:"fullName"`
		IsValidated bool   `json:"isValidated"`
	} `json:"reviewer"`
}

type capterraNextData struct {
	Props struct {
		PageProps struct {
			Reviews    *[]capterraRecord `json:"reviews"`
			Pagination struct {
				Page       int `json:"page"`
				TotalPages int `json:"totalPages"`
			} `json:"pagination"`
		} `json:"pageProps"`
	} `json:"props"`
}

func (a *Capterra) Source() models.Source { return models.SourceCapterra }

func (a *Capterra) BuildRequest(company string, page int) fetch.PageRequest {
	return fetch.PageRequest{
		Source: string(models.SourceCapterra),
		URL: pageURL(a.baseURL,
			"/p/"+url.PathEscape(Slug(company))+"/reviews/",
			url.Values{"page": {strconv.Itoa(page)}}),
		Headers: map[string]string{"Accept": "text/html"},
		Page:    page,
	}
}

func (a *Capterra) ParsePage(raw []byte, page int) (*RawPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, errs.Parse(string(models.SourceCapterra), page, "unreadable HTML: "+err.Error())
	}

	script := doc.Find("script#__NEXT_DATA__")
	if script.Length() == 0 {
		return nil, errs.Parse(string(models.SourceCapterra), page, "__NEXT_DATA__ script not found")
	}

	var data capterraNextData
	if err := json.Unmarshal([]byte(script.First().Text()), &data); err != nil {
		return nil, errs.Parse(string(models.SourceCapterra), page, "invalid __NEXT_DATA__ JSON: "+err.Error())
	}
	props := data.Props.PageProps
	if props.Reviews == nil {
		return nil, errs.Parse(string(models.SourceCapterra), page, "pageProps.reviews missing")
	}

	out := &RawPage{PageNumber: page}
	for _, r := range *props.Reviews {
		out.Records = append(out.Records, r)
	}
	current := props.Pagination.Page
	if current == 0 {
		current = page
	}
	out.HasNext = current < props.Pagination.TotalPages

	return out, nil
}

func (a *Capterra) ToReview(rec Record) (models.Candidate, error) {
	r, ok := rec.(capterraRecord)
	if !ok {
		return models.Candidate{}, recordTypeError(models.SourceCapterra, rec)
	}

	description := r.GeneralComments
	if description == "" {
		description = joinNonEmpty("\n\n", r.Pros, r.Cons)
	}

	return models.Candidate{
		Title:        r.Title,
		Description:  description,
		Date:         r.WrittenOn,
		Rating:       r.OverallRating,
		RatingScale:  5,
		ReviewerName: r.Reviewer.FullName,
		Verified:     r.Reviewer.IsValidated,
		HelpfulCount: r.HelpfulVotes,
	}, nil
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
