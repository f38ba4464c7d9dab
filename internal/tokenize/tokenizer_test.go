package tokenize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// TestSplitCrossCaseConvention covers property 6 of the spec: getUserData,
// get_user_data, and GetUserData must all tokenize to a set containing
// {get, user, data}.
func TestSplitCrossCaseConvention(t *testing.T) {
	tok := New()
	for _, name := range []string{"getUserData", "get_user_data", "GetUserData"} {
		set := toSet(tok.Split(name))
		assert.True(t, set["get"], "name=%s", name)
		assert.True(t, set["user"], "name=%s", name)
		assert.True(t, set["data"], "name=%s", name)
	}
}

func TestSplitKebabAndDotted(t *testing.T) {
	tok := New()
	require.Equal(t, []string{"foo", "bar"}, tok.Split("foo-bar"))
	require.Equal(t, []string{"foo", "bar"}, tok.Split("foo.bar"))
	require.Equal(t, []string{"foo", "bar"}, tok.Split("foo/bar"))
}

func TestSplitAcronym(t *testing.T) {
	tok := New()
	set := toSet(tok.Split("HTTPServer"))
	assert.True(t, set["http"])
	assert.True(t, set["server"])
}

func TestSplitEmpty(t *testing.T) {
	tok := New()
	assert.Empty(t, tok.Split(""))
}

func TestSplitToSetDedups(t *testing.T) {
	tok := New()
	set := tok.SplitToSet("get_get_data")
	assert.Len(t, set, 2)
}
