package favorites

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"eksiblock/features/blocking"
	eksicolly "eksiblock/internal/colly"
	"eksiblock/internal/config"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("eksiblock/favorites")

const (
	favoritesPath = "/entry/favorileri"
	novicePath    = "/entry/caylakfavorites"
)

// Fetcher collects the favoriters of an entry page by page.
type Fetcher struct {
	client        *eksicolly.Client
	site          config.SiteConfig
	retries       uint
	retryInterval time.Duration
}

type Option func(*Fetcher)

func WithRetries(n uint) Option {
	return func(f *Fetcher) { f.retries = n }
}

func WithRetryInterval(d time.Duration) Option {
	return func(f *Fetcher) { f.retryInterval = d }
}

func NewFetcher(client *eksicolly.Client, site config.SiteConfig, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:        client,
		site:          site,
		retries:       3,
		retryInterval: time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.site.MaxFavoritePages <= 0 {
		f.site.MaxFavoritePages = 50
	}
	if f.retries == 0 {
		f.retries = 1
	}
	return f
}

// FetchFavorites returns the ordered, deduplicated favoriters of entryID.
// It has no side effects on the blocking state.
func (f *Fetcher) FetchFavorites(ctx context.Context, entryID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "favorites.fetch", trace.WithAttributes(
		attribute.String("favorites.entry_id", entryID),
	))
	defer span.End()

	users, err := f.fetchList(ctx, favoritesPath, entryID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, &blocking.FetchError{EntryID: entryID, Err: err}
	}

	if f.site.IncludeNoviceFavorites {
		novices, err := f.fetchList(ctx, novicePath, entryID)
		if err != nil {
			log.Warn().Err(err).Str("entry_id", entryID).Msg("Novice favorites unavailable, continuing with the regular list")
		}
		users = appendUnseen(users, novices)
	}

	span.SetAttributes(attribute.Int("favorites.count", len(users)))
	log.Info().Str("entry_id", entryID).Int("users", len(users)).Msg("Fetched favorites")
	return users, nil
}

func (f *Fetcher) fetchList(ctx context.Context, path, entryID string) ([]string, error) {
	var users []string

	for page := 1; page <= f.site.MaxFavoritePages; page++ {
		body, err := f.fetchPage(ctx, f.pageURL(path, entryID, page))
		if err != nil {
			return nil, err
		}

		parsed, err := ParsePage(body, page)
		if err != nil {
			return nil, fmt.Errorf("parsing page %d: %w", page, err)
		}

		before := len(users)
		users = appendUnseen(users, parsed.Users)

		log.Debug().
			Str("entry_id", entryID).
			Str("path", path).
			Int("page", page).
			Int("found", len(parsed.Users)).
			Str("source", parsed.Source).
			Stringer("next", parsed.Next).
			Msg("Parsed favorites page")

		// Without pager markup keep going until a page adds nobody new.
		if len(parsed.Users) == 0 || len(users) == before || parsed.Next == NextNo {
			break
		}
	}

	return users, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.retryInterval

	res, err := backoff.Retry(ctx, func() (*eksicolly.Response, error) {
		res, err := f.client.Get(ctx, pageURL)
		if err != nil {
			if !retryable(err) {
				return nil, backoff.Permanent(err)
			}
			log.Debug().Err(err).Str("url", pageURL).Msg("Favorites page request failed, retrying")
			return nil, err
		}
		return res, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(f.retries))
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (f *Fetcher) pageURL(path, entryID string, page int) string {
	q := url.Values{}
	q.Set("entryId", entryID)
	q.Set("p", fmt.Sprint(page))
	return f.client.URL(path) + "?" + q.Encode()
}

// retryable reports whether a failed request is worth repeating. Client
// errors other than throttling are final.
func retryable(err error) bool {
	var httpErr *eksicolly.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode == 0 {
		return true
	}
	code := httpErr.StatusCode
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func appendUnseen(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, u := range dst {
		seen[u] = struct{}{}
	}
	for _, u := range src {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		dst = append(dst, u)
	}
	return dst
}
