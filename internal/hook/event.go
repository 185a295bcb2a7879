package hook

import "encoding/json"

// Category is the purpose of a sound, as listed in a pack manifest.
type Category string

const (
	Greeting    Category = "greeting"
	Acknowledge Category = "acknowledge"
	Complete    Category = "complete"
	Alert       Category = "alert"
)

// Payload is the JSON message the automation host writes to stdin once per
// lifecycle event. Only the event name is used; everything else is ignored.
type Payload struct {
	HookEventName string `json:"hook_event_name"`
}

var categories = map[string]Category{
	"SessionStart":     Greeting,
	"UserPromptSubmit": Acknowledge,
	"Stop":             Complete,
	"Notification":     Alert,
}

// CategoryFor maps a hook event name to its sound category.
// Events outside the table report ok=false and should be ignored.
func CategoryFor(event string) (Category, bool) {
	c, ok := categories[event]
	return c, ok
}

// Parse decodes a raw payload and maps its event name.
// Malformed payloads and unknown events both report ok=false.
func Parse(raw []byte) (Payload, Category, bool) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, "", false
	}
	c, ok := CategoryFor(p.HookEventName)
	return p, c, ok
}
