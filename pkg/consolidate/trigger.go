// Package consolidate implements the memory consolidation pipeline: the
// trigger that decides when enough unconsolidated messages have piled up,
// the tag classifier that annotates a new summary, and the background
// worker that commits the whole unit off the conversation's critical path.
package consolidate

// DefaultThreshold is the number of unconsolidated messages that must
// accumulate before a consolidation is attempted.
const DefaultThreshold int64 = 10

// Trigger is the pure consolidation decision.
type Trigger struct {
	threshold int64
}

// NewTrigger creates a trigger; threshold <= 0 selects DefaultThreshold.
func NewTrigger(threshold int64) Trigger {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Trigger{threshold: threshold}
}

// Fires reports whether consolidation should run. Callers must evaluate it
// against a freshly read cursor, never a cached one.
func (t Trigger) Fires(currentMessageID, lastReflectedID int64) bool {
	return currentMessageID-lastReflectedID >= t.threshold
}

// Threshold returns the configured threshold.
func (t Trigger) Threshold() int64 { return t.threshold }
