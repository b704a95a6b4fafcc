package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, 1), name)
		assert.True(t, m.On(name), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, 1), name)
	}
}

func TestEnabled_Percentages(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,junk=abc%")

	assert.True(t, m.Enabled("always", 1))
	assert.True(t, m.On("always"))
	assert.False(t, m.Enabled("never", 1))
	assert.False(t, m.Enabled("junk", 1))

	first := m.Enabled("canary", 42)
	for range 5 {
		assert.Equal(t, first, m.Enabled("canary", 42), "rollout must be stable per user")
	}
	assert.False(t, m.On("canary"), "partial rollout needs a user")
}

func TestNewManager_SkipsMalformedPairs(t *testing.T) {
	m := NewManager(" bad ,Comment_Delete=ON, y = 20% ,=on,z=")

	assert.Equal(t, map[string]string{"comment_delete": "on", "y": "20%"}, m.Raw())
	assert.True(t, m.On(CommentDelete))
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled(CommentDelete, 1))
	assert.Empty(t, m.Raw())
}
