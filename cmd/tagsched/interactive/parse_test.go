package interactive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/tagsched/pkg/tag"
)

func testCatalog(t *testing.T) *tag.Catalog {
	t.Helper()
	c, err := tag.NewCatalog(
		tag.Definition{Handle: 1, Name: "temp", MinimumInterval: 100 * time.Millisecond},
		tag.Definition{Handle: 2, Name: "flow"},
	)
	require.NoError(t, err)
	return c
}

func TestParseRate(t *testing.T) {
	d, err := parseRate("250")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	d, err = parseRate("2s")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	_, err = parseRate("fast")
	assert.ErrorIs(t, err, errSyntax)
}

func TestParsePairs(t *testing.T) {
	c := testCatalog(t)

	handles, rates, err := parsePairs(c, []string{"temp@500ms", "2@1s", "77@0"})
	require.NoError(t, err)
	assert.Equal(t, []tag.Handle{1, 2, 77}, handles)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second, 0}, rates)

	_, _, err = parsePairs(c, []string{"temp"})
	assert.ErrorIs(t, err, errSyntax)

	_, _, err = parsePairs(c, []string{"pressure@1s"})
	assert.ErrorContains(t, err, `unknown tag "pressure"`)
}

func TestParseTriples(t *testing.T) {
	c := testCatalog(t)

	handles, olds, news, err := parseTriples(c, []string{"temp@200:1s"})
	require.NoError(t, err)
	assert.Equal(t, []tag.Handle{1}, handles)
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, olds)
	assert.Equal(t, []time.Duration{time.Second}, news)

	_, _, _, err = parseTriples(c, []string{"temp@200"})
	assert.ErrorIs(t, err, errSyntax)
}

func TestParseHandles(t *testing.T) {
	handles, err := parseHandles(testCatalog(t), []string{"flow", "temp", "9"})
	require.NoError(t, err)
	assert.Equal(t, []tag.Handle{2, 1, 9}, handles)
}
