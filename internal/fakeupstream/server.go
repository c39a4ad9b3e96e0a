// Package fakeupstream serves canned review pages shaped like the three
// supported platforms so the pipeline can be exercised end to end without
// touching the real sites.
package fakeupstream

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"reviewscraper/pkg/config"
	"reviewscraper/pkg/models"
)

// Review is a platform-neutral review to render. Rating is on a 5 point
// scale and Date is YYYY-MM-DD.
type Review struct {
	Title    string
	Body     string
	Date     string
	Author   string
	Rating   float64
	Verified bool
	Helpful  int
}

type failure struct {
	status int
	// remaining responses to fail; negative fails forever
	remaining int
}

// Server simulates G2, Capterra and TrustRadius on one httptest server.
type Server struct {
	server *httptest.Server

	mu       sync.Mutex
	pages    map[models.Source][][]Review
	failures map[models.Source]map[int]*failure
	corrupt  map[models.Source]map[int]bool
	requests map[models.Source][]int
	stalls   map[models.Source]map[int]int
	delay    time.Duration
}

// New starts a server with no pages configured
func New() *Server {
	s := &Server{
		pages:    make(map[models.Source][][]Review),
		failures: make(map[models.Source]map[int]*failure),
		corrupt:  make(map[models.Source]map[int]bool),
		requests: make(map[models.Source][]int),
		stalls:   make(map[models.Source]map[int]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products/{slug}/reviews", s.handle(models.SourceG2, s.renderG2))
	mux.HandleFunc("GET /p/{slug}/reviews/", s.handle(models.SourceCapterra, s.renderCapterra))
	mux.HandleFunc("GET /api/v2/products/{slug}/reviews", s.handle(models.SourceTrustRadius, s.renderTrustRadius))

	s.server = httptest.NewServer(mux)
	return s
}

// URL returns the base URL shared by all simulated platforms
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the server down
func (s *Server) Close() {
	s.server.Close()
}

// Config returns a configuration pointing every source at this server with
// pacing disabled and millisecond retry backoff.
func (s *Server) Config() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Sources.G2.BaseURL = s.URL()
	cfg.Sources.Capterra.BaseURL = s.URL()
	cfg.Sources.TrustRadius.BaseURL = s.URL()
	cfg.Pacing.MinInterval = 0
	cfg.Pacing.Jitter = 0
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = 5 * time.Millisecond
	cfg.Retry.JitterFactor = 0
	cfg.Fetch.Timeout = 5 * time.Second
	return cfg
}

// SetPages replaces the pages served for a source. Page n (1-based) serves
// pages[n-1]; pages past the end are empty with no continuation.
func (s *Server) SetPages(src models.Source, pages [][]Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[src] = pages
}

// FailWith makes the next times requests for a page answer with status.
// A negative times fails every request.
func (s *Server) FailWith(src models.Source, page, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[src] == nil {
		s.failures[src] = make(map[int]*failure)
	}
	s.failures[src][page] = &failure{status: status, remaining: times}
}

// Corrupt serves a page whose structure no adapter recognises.
func (s *Server) Corrupt(src models.Source, page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corrupt[src] == nil {
		s.corrupt[src] = make(map[int]bool)
	}
	s.corrupt[src][page] = true
}

// SetDelay delays every response. A request whose client goes away stops
// waiting.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Stall makes the next times requests for a page hang until the client
// gives up.
func (s *Server) Stall(src models.Source, page, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stalls[src] == nil {
		s.stalls[src] = make(map[int]int)
	}
	s.stalls[src][page] = times
}

// Requests returns the page numbers requested for a source, in order
func (s *Server) Requests(src models.Source) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.requests[src]...)
}

type renderFunc func(w http.ResponseWriter, page int, reviews []Review, hasNext bool)

func (s *Server) handle(src models.Source, render renderFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			http.Error(w, "bad page", http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		s.requests[src] = append(s.requests[src], page)
		delay := s.delay
		stall := s.stalls[src][page] > 0
		if stall {
			s.stalls[src][page]--
		}
		status := 0
		if f := s.failures[src][page]; f != nil && f.remaining != 0 {
			status = f.status
			if f.remaining > 0 {
				f.remaining--
			}
		}
		corrupt := s.corrupt[src][page]
		pages := s.pages[src]
		s.mu.Unlock()

		if stall {
			<-r.Context().Done()
			return
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if status != 0 {
			if status == http.StatusTooManyRequests {
				w.Header().Set("Retry-After", "1")
			}
			http.Error(w, http.StatusText(status), status)
			return
		}
		if corrupt {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html><body><h1>We are updating our site</h1></body></html>")
			return
		}

		var reviews []Review
		if page <= len(pages) {
			reviews = pages[page-1]
		}
		render(w, page, reviews, page < len(pages))
	}
}

var g2Page = template.Must(template.New("g2").Parse(`<!DOCTYPE html>
<html><head><title>Reviews</title></head><body>
<div id="reviews">
{{- range .Reviews}}
<div itemprop="review" itemscope itemtype="https://schema.org/Review">
  <h3 itemprop="name">{{.Title}}</h3>
  <meta itemprop="datePublished" content="{{.Date}}">
  <div itemprop="reviewRating" itemscope itemtype="https://schema.org/Rating">
    <span itemprop="ratingValue">{{.Rating}}</span>
    <meta itemprop="bestRating" content="5">
  </div>
  <div itemprop="author" itemscope itemtype="https://schema.org/Person"><span itemprop="name">{{.Author}}</span></div>
  <div itemprop="reviewBody">{{.Body}}</div>
  {{- if .Verified}}<span class="verified-badge">Validated Reviewer</span>{{end}}
  <button class="helpful" data-helpful-count="{{.Helpful}}">Helpful?</button>
</div>
{{- end}}
</div>
<nav class="pagination">
{{- if gt .Page 1}}<a rel="prev" href="?page={{.Prev}}">Previous</a>{{end}}
{{- if .HasNext}}<a rel="next" href="?page={{.Next}}">Next</a>{{end}}
</nav>
</body></html>`))

func (s *Server) renderG2(w http.ResponseWriter, page int, reviews []Review, hasNext bool) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = g2Page.Execute(w, map[string]interface{}{
		"Reviews": reviews,
		"Page":    page,
		"Prev":    page - 1,
		"Next":    page + 1,
		"HasNext": hasNext,
	})
}

var capterraPage = template.Must(template.New("capterra").Parse(`<!DOCTYPE html>
<html><head><title>Reviews</title></head><body>
<div id="__next"></div>
<script id="__NEXT_DATA__" type="application/json">{{.}}</script>
</body></html>`))

func (s *Server) renderCapterra(w http.ResponseWriter, page int, reviews []Review, hasNext bool) {
	type reviewer struct {
		FullName    string `json:"fullName"`
		IsValidated bool   `json:"isValidated"`
	}
	type record struct {
		Title           string   `json:"title"`
		GeneralComments string   `json:"generalComments"`
		WrittenOn       string   `json:"writtenOn"`
		OverallRating   float64  `json:"overallRating"`
		HelpfulVotes    int      `json:"helpfulVotes"`
		Reviewer        reviewer `json:"reviewer"`
	}

	records := make([]record, 0, len(reviews))
	for _, r := range reviews {
		records = append(records, record{
			Title:           r.Title,
			GeneralComments: r.Body,
			WrittenOn:       reformat(r.Date, time.RFC3339),
			OverallRating:   r.Rating,
			HelpfulVotes:    r.Helpful,
			Reviewer:        reviewer{FullName: r.Author, IsValidated: r.Verified},
		})
	}
	total := page
	if hasNext {
		total = page + 1
	}
	data, _ := json.Marshal(map[string]interface{}{
		"props": map[string]interface{}{
			"pageProps": map[string]interface{}{
				"reviews":    records,
				"pagination": map[string]int{"page": page, "totalPages": total},
			},
		},
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// template.JS keeps the JSON unescaped inside the script element
	_ = capterraPage.Execute(w, template.JS(data))
}

func (s *Server) renderTrustRadius(w http.ResponseWriter, page int, reviews []Review, hasNext bool) {
	type author struct {
		Name     string `json:"name"`
		Verified bool   `json:"verified"`
	}
	type record struct {
		Heading       string  `json:"heading"`
		Synopsis      string  `json:"synopsis"`
		PublishedDate string  `json:"publishedDate"`
		Rating        float64 `json:"rating"`
		HelpfulCount  int     `json:"helpfulCount"`
		Author        author  `json:"author"`
	}

	records := make([]record, 0, len(reviews))
	for _, r := range reviews {
		records = append(records, record{
			Heading:       r.Title,
			Synopsis:      r.Body,
			PublishedDate: reformat(r.Date, "Jan 2, 2006"),
			Rating:        r.Rating * 2,
			HelpfulCount:  r.Helpful,
			Author:        author{Name: r.Author, Verified: r.Verified},
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"reviews": records,
		"meta":    map[string]interface{}{"page": page, "hasMore": hasNext},
	})
}

// reformat renders a YYYY-MM-DD date in another layout, passing through
// values that do not parse so tests can feed malformed dates.
func reformat(date, layout string) string {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format(layout)
}

// Reviews generates n distinct reviews dated from start onward, one per day.
func Reviews(prefix string, start time.Time, n int) []Review {
	out := make([]Review, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Review{
			Title:    fmt.Sprintf("%s review %d", prefix, i+1),
			Body:     fmt.Sprintf("Body of %s review %d.", prefix, i+1),
			Date:     start.AddDate(0, 0, i).Format(models.DateLayout),
			Author:   fmt.Sprintf("Reviewer %d", i+1),
			Rating:   float64(i%5) + 1,
			Verified: i%2 == 0,
			Helpful:  i,
		})
	}
	return out
}

// Paginate splits reviews into pages of size per page.
func Paginate(reviews []Review, size int) [][]Review {
	var pages [][]Review
	for len(reviews) > size {
		pages = append(pages, reviews[:size])
		reviews = reviews[size:]
	}
	if len(reviews) > 0 {
		pages = append(pages, reviews)
	}
	return pages
}
