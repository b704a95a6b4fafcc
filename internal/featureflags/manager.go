// Package featureflags evaluates rollout switches configured through FEATURE_FLAGS.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"maps"
	"strconv"
	"strings"
)

// Known flags.
const (
	// CommentDelete mounts DELETE /api/comments/:id.
	CommentDelete = "comment_delete"
	// ReactionEvents also sends reaction changes to the owner's user channel.
	ReactionEvents = "reaction_events"
)

// Manager holds flags parsed from a list such as "comment_delete=on,reaction_events=25%".
type Manager struct {
	flags map[string]string
}

// NewManager parses a comma-separated key=value list. Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	out := make(map[string]string)
	for pair := range strings.SplitSeq(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return &Manager{flags: out}
}

// Enabled reports whether name is on for userID. Values on/true/1 and off/false/0
// are global; "N%" enables a stable N percent bucket of signed-in users.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	switch {
	case err != nil || pct <= 0:
		return false
	case pct >= 100:
		return true
	case userID == 0:
		return false
	}
	return bucket(name, userID) < pct
}

// On reports whether name is switched on for everyone. Route mounting uses this
// since it happens before any user is known.
func (m *Manager) On(name string) bool {
	return m.Enabled(name, 0)
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m.flags)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
