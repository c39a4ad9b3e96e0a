package sources

import (
	"fmt"
	"net/url"
	"strings"

	"reviewscraper/pkg/config"
	errs "reviewscraper/pkg/errors"
	"reviewscraper/pkg/fetch"
	"reviewscraper/pkg/models"
)

// Record is one adapter-specific review record. Only the adapter that
// produced it knows its concrete type.
type Record interface{}

// RawPage is one fetched page after parsing. It is consumed immediately by
// normalization and not retained.
type RawPage struct {
	Records    []Record
	HasNext    bool
	PageNumber int
}

// Adapter knows the request shape and page structure of one review platform.
// Adapters hold no per-run state and are safe for concurrent use.
type Adapter interface {
	// Source identifies the platform
	Source() models.Source
	// BuildRequest returns the request for a 1-based page of the company's reviews
	BuildRequest(company string, page int) fetch.PageRequest
	// ParsePage extracts records and the continuation signal. It returns a
	// parsing error when the page structure is not recognised.
	ParsePage(raw []byte, page int) (*RawPage, error)
	// ToReview maps a record to candidate review fields
	ToReview(rec Record) (models.Candidate, error)
}

// New returns the adapter for a platform
func New(src models.Source, site config.SiteConfig) (Adapter, error) {
	base := strings.TrimRight(site.BaseURL, "/")
	if base == "" {
		return nil, errs.Config(errs.ErrUnknownSource, fmt.Sprintf("no base URL configured for %s", src))
	}
	switch src {
	case models.SourceG2:
		return &G2{baseURL: base}, nil
	case models.SourceCapterra:
		return &Capterra{baseURL: base}, nil
	case models.SourceTrustRadius:
		size := site.PageSize
		if size <= 0 {
			size = defaultTrustRadiusPageSize
		}
		return &TrustRadius{baseURL: base, pageSize: size}, nil
	default:
		return nil, errs.Config(errs.ErrUnknownSource, fmt.Sprintf("unknown source %q", src))
	}
}

// FromConfig builds the adapter for a platform using its configured upstream
func FromConfig(src models.Source, cfg *config.Config) (Adapter, error) {
	site, ok := cfg.Site(string(src))
	if !ok {
		return nil, errs.Config(errs.ErrUnknownSource, fmt.Sprintf("unknown source %q", src))
	}
	return New(src, site)
}

// Slug normalises a company name for use in platform URLs:
// lowercase, with each run of whitespace replaced by one hyphen.
func Slug(company string) string {
	return strings.Join(strings.Fields(strings.ToLower(company)), "-")
}

// pageURL joins base with a path whose slug is already escaped
func pageURL(base, path string, query url.Values) string {
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func recordTypeError(src models.Source, rec Record) error {
	return errs.New(errs.ErrorTypeValidation, fmt.Sprintf("%s adapter cannot map record of type %T", src, rec))
}
