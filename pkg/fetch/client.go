package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"

	"reviewscraper/pkg/config"
	errs "reviewscraper/pkg/errors"
	"reviewscraper/pkg/logger"
)

// Client fetches pages over HTTP. It never retries on its own; retry and
// pacing belong to the paginator.
type Client struct {
	http   *resty.Client
	logger logger.Logger
}

// NewClient creates an HTTP page fetcher
func NewClient(cfg config.FetchConfig, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTimeout(cfg.Timeout)
	client.SetRetryCount(0)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	client.SetLogger(restyLogger{log})
	client.SetHeaders(map[string]string{
		"User-Agent":      cfg.UserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8",
		"Accept-Language": cfg.AcceptLanguage,
		"Cache-Control":   "no-cache",
	})

	return &Client{http: client, logger: log}, nil
}

// Fetch performs the request and returns the response body for 2xx responses
func (c *Client) Fetch(ctx context.Context, req PageRequest) ([]byte, error) {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeClientError,
			Message: fmt.Sprintf("malformed URL %q", req.URL),
			Source:  req.Source,
			Err:     err,
		}
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"source": req.Source,
		"method": req.method(),
		"url":    req.URL,
		"page":   req.Page,
	})

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(req.Headers).
		Execute(req.method(), req.URL)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"source":   req.Source,
			"url":      req.URL,
			"error":    err.Error(),
			"duration": duration,
		})
		t, msg := classifyTransport(err)
		return nil, &errs.Error{
			Type:    t,
			Message: msg,
			Source:  req.Source,
			Err:     err,
		}
	}

	fields := map[string]interface{}{
		"source":   req.Source,
		"url":      req.URL,
		"status":   resp.StatusCode(),
		"bytes":    len(resp.Body()),
		"duration": duration,
	}

	if !resp.IsSuccess() {
		apiErr := errs.FromStatus(resp.StatusCode(), req.Source, req.URL)
		if errs.IsRetryable(apiErr.Type) {
			c.logger.WarnWithFields("upstream returned retryable status", fields)
		} else {
			c.logger.ErrorWithFields("upstream returned error status", fields)
		}
		return nil, apiErr
	}

	c.logger.DebugWithFields("HTTP request completed", fields)
	return resp.Body(), nil
}

// classifyTransport types a failure that produced no HTTP response. A host
// that does not resolve or a request the transport refuses will not recover
// on retry; timeouts, resets and refused connections might.
func classifyTransport(err error) (errs.ErrorType, string) {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return errs.ErrorTypeNotFound, "host not found"
	}

	// url.Error satisfies net.Error itself, so look at what it wraps
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var inner net.Error
		switch {
		case urlErr.Timeout(),
			errors.As(urlErr.Err, &inner),
			errors.Is(urlErr.Err, io.EOF),
			errors.Is(urlErr.Err, io.ErrUnexpectedEOF):
			return errs.ErrorTypeNetwork, "request failed"
		default:
			return errs.ErrorTypeClientError, "request rejected"
		}
	}
	return errs.ErrorTypeNetwork, "request failed"
}

// restyLogger routes resty's internal messages into the structured logger
type restyLogger struct {
	log logger.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.WithField("component", "http").Error(fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.WithField("component", "http").Warn(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.WithField("component", "http").Debug(fmt.Sprintf(format, v...))
}
