package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus(" flagged ")
	assert.True(t, ok)
	assert.Equal(t, StatusFlagged, s)

	_, ok = ParseStatus("archived")
	assert.False(t, ok)
}

func TestReasons_ValueScan(t *testing.T) {
	v, err := Reasons(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	v, err = Reasons{"a", "b"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, v)

	var r Reasons
	require.NoError(t, r.Scan([]byte(`["x"]`)))
	assert.Equal(t, Reasons{"x"}, r)

	require.NoError(t, r.Scan(nil))
	assert.Empty(t, r)

	require.NoError(t, r.Scan("null"))
	assert.NotNil(t, r)
	assert.Empty(t, r)

	assert.Error(t, r.Scan(42))
}

func TestPost_JSONNeverNullReasons(t *testing.T) {
	b, err := json.Marshal(Post{ID: 1, Status: StatusDraft})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"flagged_reasons":[]`)
	assert.NotContains(t, string(b), "published_at")
}

func TestPost_CloneIsDeep(t *testing.T) {
	now := time.Now()
	p := &Post{FlaggedReasons: Reasons{"a"}, PublishedAt: &now}
	cp := p.Clone()
	cp.FlaggedReasons[0] = "b"
	*cp.PublishedAt = now.Add(time.Hour)

	assert.Equal(t, "a", p.FlaggedReasons[0])
	assert.Equal(t, now, *p.PublishedAt)
}

func TestNewStatusCounts(t *testing.T) {
	sc := NewStatusCounts(map[PostStatus]int64{StatusDraft: 2, StatusPublished: 3})
	assert.Equal(t, int64(5), sc.Total)
	assert.Equal(t, int64(2), sc.Draft)
	assert.Equal(t, int64(0), sc.Flagged)
}
