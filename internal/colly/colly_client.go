package colly

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"eksiblock/internal/config"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrClientNotInitialized = errors.New("colly client is not initialized")
	ErrEmptyResponse        = errors.New("empty response")

	client *Client
	once   sync.Once
)

// HTTPError is a response with a non-success status, or a transport failure
// when StatusCode is zero.
type HTTPError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *HTTPError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request %s: status %d: %v", e.URL, e.StatusCode, e.Err)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// Response is the outcome of a single request.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Client issues requests against the target site with the configured
// session cookie. Each call works on a clone of the base collector.
type Client struct {
	base *colly.Collector
	site config.SiteConfig
}

func NewClient(cfg config.CollyConfig, site config.SiteConfig) *Client {
	c := colly.NewCollector(
		colly.MaxDepth(cfg.MaxRedirects),
		colly.MaxBodySize(cfg.MaxSize),
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgent),
	)
	c.SetRequestTimeout(cfg.TimeOut)

	site.BaseURL = strings.TrimRight(site.BaseURL, "/")
	return &Client{base: c, site: site}
}

// InitCollyClient returns the process wide client built from the global config.
func InitCollyClient() (*Client, error) {
	once.Do(func() {
		cfg := config.GetConfig()
		client = NewClient(cfg.Colly, cfg.Site)
		log.Debug().Str("base_url", client.site.BaseURL).Msg("Colly client initialized")
	})
	if client == nil {
		return nil, ErrClientNotInitialized
	}
	return client, nil
}

func GetCollyClient() (*Client, error) {
	if client == nil {
		return nil, ErrClientNotInitialized
	}
	return client, nil
}

// BaseURL returns the site root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.site.BaseURL
}

// URL joins path onto the site root.
func (c *Client) URL(path string) string {
	return c.site.BaseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, url, func(col *colly.Collector) error {
		return col.Visit(url)
	})
}

func (c *Client) Post(ctx context.Context, url string, form map[string]string) (*Response, error) {
	return c.do(ctx, url, func(col *colly.Collector) error {
		return col.Post(url, form)
	})
}

func (c *Client) do(ctx context.Context, url string, visit func(*colly.Collector) error) (*Response, error) {
	var (
		res    *Response
		resErr error
	)

	col := c.base.Clone()
	col.Context = ctx
	col.OnRequest(func(r *colly.Request) {
		r.Headers.Set("X-Requested-With", "XMLHttpRequest")
		r.Headers.Set("Referer", c.site.BaseURL+"/")
		if c.site.Cookie != "" {
			r.Headers.Set("Cookie", c.site.Cookie)
		}
	})
	col.OnResponse(func(r *colly.Response) {
		res = &Response{URL: r.Request.URL.String(), StatusCode: r.StatusCode, Body: r.Body}
	})
	col.OnError(func(r *colly.Response, err error) {
		resErr = &HTTPError{URL: url, StatusCode: r.StatusCode, Err: err}
		log.Debug().
			Err(err).
			Str("url", url).
			Int("status_code", r.StatusCode).
			Msg("Colly error")
	})

	if err := visit(col); err != nil && resErr == nil {
		resErr = &HTTPError{URL: url, Err: err}
	}
	if resErr != nil {
		return nil, resErr
	}
	if res == nil {
		return nil, &HTTPError{URL: url, Err: ErrEmptyResponse}
	}
	return res, nil
}
