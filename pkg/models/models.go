package models

import (
	"fmt"
	"strings"

	errs "reviewscraper/pkg/errors"
)

// Source identifies one review platform
type Source string

const (
	SourceG2          Source = "g2"
	SourceCapterra    Source = "capterra"
	SourceTrustRadius Source = "trustradius"
)

// AllSources lists every supported platform in the order "all" runs them
var AllSources = []Source{SourceG2, SourceCapterra, SourceTrustRadius}

// SelectorAll selects every supported platform
const SelectorAll = "all"

// DisplayName returns the platform name as shown in output documents
func (s Source) DisplayName() string {
	switch s {
	case SourceG2:
		return "G2"
	case SourceCapterra:
		return "Capterra"
	case SourceTrustRadius:
		return "TrustRadius"
	default:
		return string(s)
	}
}

func (s Source) String() string {
	return string(s)
}

// ParseSource resolves a platform name. The single letters a, b and c are
// accepted as aliases for g2, capterra and trustradius.
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "g2", "a":
		return SourceG2, nil
	case "capterra", "b":
		return SourceCapterra, nil
	case "trustradius", "c":
		return SourceTrustRadius, nil
	default:
		return "", errs.Config(errs.ErrUnknownSource, fmt.Sprintf("unknown source %q", name))
	}
}

// ParseSelector expands a selector into platforms, preserving request order.
// It accepts "all", a single platform, or a comma separated list.
// Repeated platforms are kept once.
func ParseSelector(selector string) ([]Source, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, errs.Config(errs.ErrUnknownSource, "no source selected")
	}
	if strings.EqualFold(selector, SelectorAll) {
		return append([]Source(nil), AllSources...), nil
	}

	var out []Source
	seen := make(map[Source]bool)
	for _, part := range strings.Split(selector, ",") {
		src, err := ParseSource(part)
		if err != nil {
			return nil, err
		}
		if !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}
	return out, nil
}

// SelectorString renders a platform list back into selector form
func SelectorString(sources []Source) string {
	if len(sources) == len(AllSources) {
		all := true
		for i, s := range sources {
			if AllSources[i] != s {
				all = false
				break
			}
		}
		if all {
			return SelectorAll
		}
	}
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

// Candidate holds the fields an adapter extracted from one record, before
// validation and window filtering.
type Candidate struct {
	Title       string
	Description string
	// Date is the platform's raw date text
	Date string
	// Rating is on the platform's own scale
	Rating float64
	// RatingScale is the maximum of the platform scale; zero means 5
	RatingScale  float64
	ReviewerName string
	Verified     bool
	HelpfulCount int
}
