package favorites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const markupPage = `<div class="favorite-list">
<ul>
  <li><a href="/biri/alice">alice</a></li>
  <li><a href="/biri/bob%20the%20builder?via=fav">bob the builder</a></li>
  <li><a href="/biri/alice">alice</a></li>
  <li><a href="/baslik/some-title--1">not a user</a></li>
</ul>
<div class="pager" data-currentpage="1" data-pagecount="3"></div>
</div>`

func TestParsePageMarkup(t *testing.T) {
	page, err := ParsePage([]byte(markupPage), 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob the builder"}, page.Users)
	assert.Equal(t, "markup", page.Source)
	assert.Equal(t, NextYes, page.Next)

	last, err := ParsePage([]byte(markupPage), 3)
	require.NoError(t, err)
	assert.Equal(t, NextNo, last.Next)
}

func TestParsePageRelNext(t *testing.T) {
	page, err := ParsePage([]byte(`<a href="/biri/carol">carol</a><a rel="next" href="?p=2">»</a>`), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, page.Users)
	assert.Equal(t, NextYes, page.Next)
}

func TestFallbackPatterns(t *testing.T) {
	samples := map[string]string{
		"profile_href": `<li data-user href='/biri/dave'></li><li data-user href="/biri/erin#top"></li>`,
		"data_nick":    `<span data-nick="dave"></span><span data-nick='erin'></span>`,
	}

	require.Len(t, FallbackPatterns, len(samples))
	for _, p := range FallbackPatterns {
		t.Run(p.Name, func(t *testing.T) {
			sample, ok := samples[p.Name]
			require.True(t, ok, "missing sample for pattern")

			assert.Equal(t, []string{"dave", "erin"}, matchAll(p.Expr, []byte(sample)))

			page, err := ParsePage([]byte(sample), 1)
			require.NoError(t, err)
			assert.Equal(t, p.Name, page.Source)
			assert.Equal(t, []string{"dave", "erin"}, page.Users)
		})
	}
}

func TestParsePageEmpty(t *testing.T) {
	page, err := ParsePage([]byte(`<div class="empty">no favorites</div>`), 1)
	require.NoError(t, err)
	assert.Empty(t, page.Users)
	assert.Equal(t, NextUnknown, page.Next)
}

func TestParsePageWithoutPager(t *testing.T) {
	page, err := ParsePage([]byte(`<a href="/biri/alice">alice</a>`), 1)
	require.NoError(t, err)
	assert.Equal(t, NextUnknown, page.Next)

	page, err = ParsePage([]byte(`<a href="/biri/alice">alice</a><div class="pager" data-pagecount="?"></div>`), 1)
	require.NoError(t, err)
	assert.Equal(t, NextUnknown, page.Next)
}

func TestParseEntryID(t *testing.T) {
	cases := map[string]string{
		"123456":                              "123456",
		" #42 ":                               "42",
		"https://eksisozluk.com/entry/987654": "987654",
		"https://eksisozluk.com/entry/11?a=b": "11",
	}
	for in, want := range cases {
		got, err := ParseEntryID(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "abc", "12a", "https://eksisozluk.com/biri/alice"} {
		_, err := ParseEntryID(in)
		assert.ErrorIs(t, err, ErrInvalidEntryID, in)
	}
}
