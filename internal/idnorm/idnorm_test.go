package idnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mshroom/RecordManager/internal/record"
)

func TestNormalizeStripsPrefixThenRewrites(t *testing.T) {
	n, err := New("oai:foo.org:", []record.RewriteRule{
		{Pattern: "^abc", Replacement: "xyz"},
	})
	require.NoError(t, err)

	assert.Equal(t, "xyz123", n.Normalize("oai:foo.org:abc123"))
}

func TestNormalizeAcceptsSlashDelimitedPattern(t *testing.T) {
	n, err := New("oai:foo.org:", []record.RewriteRule{
		{Pattern: "/^abc/", Replacement: "xyz"},
	})
	require.NoError(t, err)

	assert.Equal(t, "xyz123", n.Normalize("oai:foo.org:abc123"))
}

func TestNormalizeAppliesRulesInOrder(t *testing.T) {
	n, err := New("", []record.RewriteRule{
		{Pattern: "a", Replacement: "b"},
		{Pattern: "b", Replacement: "c"},
	})
	require.NoError(t, err)

	// "a" -> "b" -> "c": order matters, a naive simultaneous
	// application would leave "b" unrewritten.
	assert.Equal(t, "c", n.Normalize("a"))
}

func TestNormalizeNoPrefixMatch(t *testing.T) {
	n, err := New("oai:bar.org:", nil)
	require.NoError(t, err)

	assert.Equal(t, "oai:foo.org:abc123", n.Normalize("oai:foo.org:abc123"))
}
