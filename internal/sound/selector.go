package sound

import "time"

const (
	pickAttempts = 3
	pickStride   = 7
)

// Selector picks a sound for a category while trying not to repeat the one
// played last. It is a cheap heuristic seeded from the clock, not a shuffle.
type Selector struct {
	Now func() time.Time
}

// Pick returns a file from files, avoiding last when the probe sequence finds
// another candidate. An empty list yields "".
func (s Selector) Pick(files []string, last string) string {
	switch len(files) {
	case 0:
		return ""
	case 1:
		return files[0]
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	seed := now().Nanosecond()

	var pick string
	for attempt := 0; attempt < pickAttempts; attempt++ {
		pick = files[(seed+attempt*pickStride)%len(files)]
		if pick != last {
			break
		}
	}
	return pick
}
