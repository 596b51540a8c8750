package favorites

import (
	"bytes"
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
)

var (
	ErrInvalidEntryID = errors.New("invalid entry id")

	entryIDPattern = regexp.MustCompile(`^(?:#)?(\d+)$|/entry/(\d+)`)
)

// FallbackPattern is a regular expression tried when the markup does not
// contain the expected profile links. The first capture group is the username.
type FallbackPattern struct {
	Name string
	Expr *regexp.Regexp
}

// FallbackPatterns are tried in order until one yields usernames.
var FallbackPatterns = []FallbackPattern{
	{Name: "profile_href", Expr: regexp.MustCompile(`href=["']/biri/([^"'?#/]+)`)},
	{Name: "data_nick", Expr: regexp.MustCompile(`data-nick=["']([^"']+)["']`)},
}

// NextPage tells whether the markup says another page follows.
type NextPage int

const (
	// NextUnknown means the page carried no pager markup.
	NextUnknown NextPage = iota
	NextYes
	NextNo
)

func (n NextPage) String() string {
	switch n {
	case NextYes:
		return "yes"
	case NextNo:
		return "no"
	default:
		return "unknown"
	}
}

// Page is the parsed content of one favorites page.
type Page struct {
	Users []string
	Next  NextPage
	// Source names the strategy that produced Users.
	Source string
}

// ParsePage extracts the favoriters listed on page number page.
func ParsePage(body []byte, page int) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, err
	}

	result := Page{Source: "markup", Next: nextPage(doc, page)}

	doc.Find(`a[href^="/biri/"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if u := usernameFromPath(strings.TrimPrefix(href, "/biri/")); u != "" {
			result.Users = append(result.Users, u)
		}
	})

	if len(result.Users) == 0 {
		for _, p := range FallbackPatterns {
			users := matchAll(p.Expr, body)
			if len(users) > 0 {
				result.Users = users
				result.Source = p.Name
				break
			}
		}
	}

	result.Users = lo.Uniq(result.Users)
	return result, nil
}

func matchAll(expr *regexp.Regexp, body []byte) []string {
	var users []string
	for _, m := range expr.FindAllSubmatch(body, -1) {
		if u := usernameFromPath(string(m[1])); u != "" {
			users = append(users, u)
		}
	}
	return users
}

func usernameFromPath(p string) string {
	if i := strings.IndexAny(p, "?#/"); i >= 0 {
		p = p[:i]
	}
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	return strings.TrimSpace(p)
}

func nextPage(doc *goquery.Document, page int) NextPage {
	if doc.Find(`a[rel="next"]`).Length() > 0 {
		return NextYes
	}

	pager := doc.Find("div.pager[data-pagecount]").First()
	if pager.Length() == 0 {
		return NextUnknown
	}
	count, err := strconv.Atoi(pager.AttrOr("data-pagecount", ""))
	if err != nil {
		return NextUnknown
	}
	if page < count {
		return NextYes
	}
	return NextNo
}

// ParseEntryID accepts a bare id, a #id reference or an entry URL.
func ParseEntryID(s string) (string, error) {
	m := entryIDPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", ErrInvalidEntryID
	}
	if m[1] != "" {
		return m[1], nil
	}
	return m[2], nil
}
