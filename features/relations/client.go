package relations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"eksiblock/features/blocking"
	eksicolly "eksiblock/internal/colly"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

var (
	ErrUserIDNotFound = errors.New("user id not found on profile page")
	ErrRelationFailed = errors.New("relation request was not accepted")

	userIDPattern = regexp.MustCompile(`data-userid=["'](\d+)["']|id=["']who["'][^>]*value=["'](\d+)["']`)
)

// Relation codes understood by the addrelation endpoint.
const (
	RelationBlock  = "m"
	RelationMute   = "u"
	RelationThread = "i"
)

// Client blocks and mutes users through the site's relation endpoint.
type Client struct {
	site *eksicolly.Client

	mu  sync.RWMutex
	ids map[string]string
}

func NewClient(site *eksicolly.Client) *Client {
	return &Client{site: site, ids: map[string]string{}}
}

// BlockUser applies blockType to username, and blocks the user's titles too
// when includeThread is set.
func (c *Client) BlockUser(ctx context.Context, username string, blockType blocking.BlockType, includeThread bool) error {
	id, err := c.resolveID(ctx, username)
	if err != nil {
		return &blocking.BlockRequestError{Username: username, Err: err}
	}

	codes := []string{relationCode(blockType)}
	if includeThread {
		codes = append(codes, RelationThread)
	}

	for _, code := range codes {
		if err := c.addRelation(ctx, id, code); err != nil {
			return &blocking.BlockRequestError{Username: username, Err: err}
		}
	}

	log.Debug().
		Str("username", username).
		Str("user_id", id).
		Strs("relations", codes).
		Msg("Relation applied")
	return nil
}

func relationCode(blockType blocking.BlockType) string {
	if blockType == blocking.BlockTypeBlock {
		return RelationBlock
	}
	return RelationMute
}

func (c *Client) addRelation(ctx context.Context, id, code string) error {
	target := fmt.Sprintf("%s?r=%s", c.site.URL("/userrelation/addrelation/"+url.PathEscape(id)), code)

	res, err := c.site.Post(ctx, target, map[string]string{"id": id})
	if err != nil {
		return err
	}

	// the endpoint answers with a JSON number, -1 on refusal
	if strings.TrimSpace(string(res.Body)) == "-1" {
		return fmt.Errorf("%w: relation %s for user %s", ErrRelationFailed, code, id)
	}
	return nil
}

func (c *Client) resolveID(ctx context.Context, username string) (string, error) {
	c.mu.RLock()
	id, ok := c.ids[username]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	res, err := c.site.Get(ctx, c.site.URL("/biri/"+url.PathEscape(username)))
	if err != nil {
		return "", err
	}

	id, err = ParseUserID(res.Body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", username, err)
	}

	c.mu.Lock()
	c.ids[username] = id
	c.mu.Unlock()
	return id, nil
}

// ParseUserID reads the numeric user id from a profile page.
func ParseUserID(body []byte) (string, error) {
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		if v, ok := doc.Find("#who").Attr("value"); ok && v != "" {
			return v, nil
		}
		if v, ok := doc.Find("[data-userid]").First().Attr("data-userid"); ok && v != "" {
			return v, nil
		}
	}

	if m := userIDPattern.FindSubmatch(body); m != nil {
		if len(m[1]) > 0 {
			return string(m[1]), nil
		}
		return string(m[2]), nil
	}
	return "", ErrUserIDNotFound
}
