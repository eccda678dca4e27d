package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	tests := []struct {
		category string
		ids      []string
		want     string
	}{
		{CategoryODataWrite, []string{"cell1"}, "odata-write:cell1"},
		{CategoryDav, []string{"cell1", "box1", "col/a"}, "dav:cell1/box1/col%2Fa"},
		{CategoryAccountLock, []string{"a:b"}, "account-lock:a%3Ab"},
		{CategoryCellStatus, nil, "cell-status:"},
		{CategoryBulkProgress, []string{"box-1 2"}, "bulk-progress:box-1+2"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Compose(tt.category, tt.ids...))
		})
	}
}

func TestComposeIsInjective(t *testing.T) {
	tuples := [][]string{
		{"dav", "a/b"},
		{"dav", "a", "b"},
		{"dav", "a:b"},
		{"dav", "a%2Fb"},
		{"dav-a", "b"},
		{"dav", ""},
		{"dav", "", ""},
	}
	seen := map[string][]string{}
	for _, tuple := range tuples {
		key := Compose(tuple[0], tuple[1:]...)
		prev, dup := seen[key]
		require.False(t, dup, "%v and %v both compose to %q", prev, tuple, key)
		seen[key] = tuple
	}
}

func TestSplit(t *testing.T) {
	key := Compose(CategoryDav, "cell 1", "box/2", "ä")
	category, ids, err := Split(key)
	require.NoError(t, err)
	assert.Equal(t, CategoryDav, category)
	assert.Equal(t, []string{"cell 1", "box/2", "ä"}, ids)

	_, _, err = Split("no-separator")
	assert.Error(t, err)
	_, _, err = Split("Upper:x")
	assert.Error(t, err)
}

func TestInvalidCategory(t *testing.T) {
	for _, c := range []string{"", "1abc", "Dav", "a:b", "a/b", "a b"} {
		assert.False(t, ValidCategory(c), c)
		_, err := TryCompose(c, "x")
		assert.Error(t, err, c)
	}
	assert.Panics(t, func() { Compose("Bad", "x") })
}
