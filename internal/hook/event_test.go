package hook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCategoryFor(t *testing.T) {
	tests := []struct {
		event string
		want  Category
	}{
		{"SessionStart", Greeting},
		{"UserPromptSubmit", Acknowledge},
		{"Stop", Complete},
		{"Notification", Alert},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			got, ok := CategoryFor(tt.event)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategoryFor_UnknownEventsAreIgnored(t *testing.T) {
	for _, event := range []string{"", "stop", "UnknownEvent", "PreToolUse", "SubagentStop"} {
		_, ok := CategoryFor(event)
		assert.False(t, ok, event)
	}
}

func TestProperty_OnlyFourEventsMap(t *testing.T) {
	known := map[string]bool{"SessionStart": true, "UserPromptSubmit": true, "Stop": true, "Notification": true}
	rapid.Check(t, func(t *rapid.T) {
		event := rapid.String().Draw(t, "event")
		_, ok := CategoryFor(event)
		if ok != known[event] {
			t.Fatalf("CategoryFor(%q) ok=%v", event, ok)
		}
	})
}

func TestParse(t *testing.T) {
	t.Run("maps a known event", func(t *testing.T) {
		p, c, ok := Parse([]byte(`{"hook_event_name":"Stop","session_id":"abc"}`))
		assert.True(t, ok)
		assert.Equal(t, "Stop", p.HookEventName)
		assert.Equal(t, Complete, c)
	})

	t.Run("rejects unknown event", func(t *testing.T) {
		_, _, ok := Parse([]byte(`{"hook_event_name":"UnknownEvent"}`))
		assert.False(t, ok)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		_, _, ok := Parse([]byte(`{"hook_event_name":`))
		assert.False(t, ok)
	})

	t.Run("rejects missing event name", func(t *testing.T) {
		_, _, ok := Parse([]byte(`{}`))
		assert.False(t, ok)
	})
}
