package sources

import (
	"net/url"
	"strconv"

	"github.com/titanous/json5"

	errs "reviewscraper/pkg/errors"
	"reviewscraper/pkg/fetch"
	"reviewscraper/pkg/models"
)

const defaultTrustRadiusPageSize = 25

// TrustRadius reads the public review API. Responses are decoded leniently
// because the endpoint has been seen emitting trailing commas.
type TrustRadius struct {
	baseURL  string
	pageSize int
}

type trustRadiusRecord struct {
	Heading       string  `json:"heading"`
	Synopsis      string  `json:"synopsis"`
	PublishedDate string  `json:"publishedDate"`
	Rating        float64 `json:"rating"`
	HelpfulCount  int     `json:"helpfulCount"`
	Author        struct {
		Name     string `json:"name"`
		Verified bool   `json:"verified"`
	} `json:"author"`
}

type trustRadiusResponse struct {
	Reviews *[]trustRadiusRecord `json:"reviews"`
	Meta    struct {
		HasMore bool `json:"hasMore"`
		Page    int  `json:"page"`
	} `json:"meta"`
}

func (a *TrustRadius) Source() models.Source { return models.SourceTrustRadius }

func (a *TrustRadius) BuildRequest(company string, page int) fetch.PageRequest {
	return fetch.PageRequest{
		Source: string(models.SourceTrustRadius),
		URL: pageURL(a.baseURL,
			"/api/v2/products/"+url.PathEscape(Slug(company))+"/reviews",
			url.Values{
				"page":  {strconv.Itoa(page)},
				"limit": {strconv.Itoa(a.pageSize)},
			}),
		Headers: map[string]string{"Accept": "application/json"},
		Page:    page,
	}
}

func (a *TrustRadius) ParsePage(raw []byte, page int) (*RawPage, error) {
	var resp trustRadiusResponse
	if err := json5.Unmarshal(raw, &resp); err != nil {
		return nil, errs.Parse(string(models.SourceTrustRadius), page, "invalid JSON: "+err.Error())
	}
	if resp.Reviews == nil {
		return nil, errs.Parse(string(models.SourceTrustRadius), page, "reviews field missing")
	}

	out := &RawPage{PageNumber: page, HasNext: resp.Meta.HasMore}
	for _, r := range *resp.Reviews {
		out.Records = append(out.Records, r)
	}
	return out, nil
}

// ToReview maps a record; TrustRadius rates on a 10 point scale.
func (a *TrustRadius) ToReview(rec Record) (models.Candidate, error) {
	r, ok := rec.(trustRadiusRecord)
	if !ok {
		return models.Candidate{}, recordTypeError(models.SourceTrustRadius, rec)
	}

	return models.Candidate{
		Title:        r.Heading,
		Description:  r.Synopsis,
		Date:         r.PublishedDate,
		Rating:       r.Rating,
		RatingScale:  10,
		ReviewerName: r.Author.Name,
		Verified:     r.Author.Verified,
		HelpfulCount: r.HelpfulCount,
	}, nil
}
