// Package rotation implements the credential/model rotation cursor
// used by the resilient invoker to spread requests across every
// configured API key and model variant.
package rotation

import "sync"

// Rotator maintains a cursor over the cross product of an ordered
// credential list and an ordered model list. Next hands out the pair
// at the cursor and advances it: the model index increments first, and
// when it wraps the credential index increments (wrapping past the
// last credential). The cursor is shared across calls for the life of
// the rotator; it is not rewound between independent invocations, so
// successive requests continue rotating instead of always starting at
// (0,0).
type Rotator struct {
	mu          sync.Mutex
	credentials []string
	models      []string
	credIdx     int
	modelIdx    int
}

// New creates a Rotator over the given credential and model lists.
// Order is significant: index 0 is the most preferred entry of each
// list. The slices are copied.
func New(credentials, models []string) *Rotator {
	return &Rotator{
		credentials: append([]string(nil), credentials...),
		models:      append([]string(nil), models...),
	}
}

// Pairs returns the number of distinct (credential, model) pairs, i.e.
// the length of one full rotation cycle. Zero when either list is
// empty.
func (r *Rotator) Pairs() int {
	return len(r.credentials) * len(r.models)
}

// Next returns the pair at the cursor and advances it with wraparound.
// Callers must not invoke Next when Pairs() is zero.
func (r *Rotator) Next() (credential, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	credential = r.credentials[r.credIdx]
	model = r.models[r.modelIdx]

	r.modelIdx++
	if r.modelIdx >= len(r.models) {
		r.modelIdx = 0
		r.credIdx++
		if r.credIdx >= len(r.credentials) {
			r.credIdx = 0
		}
	}
	return credential, model
}

// Reset rewinds the cursor to (0,0). The invoker never calls this;
// it exists for callers that want per-run determinism instead of
// cross-run load spreading.
func (r *Rotator) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credIdx = 0
	r.modelIdx = 0
}
