package world

import "sync"

// Hazards guards the dynamic obstacles, the only state written by more than
// one goroutine. Obstacle pointers never leave a Do/Update scope.
type Hazards struct {
	mu  sync.Mutex
	obs []*Obstacle
}

func newHazards(obs []*Obstacle) *Hazards {
	return &Hazards{obs: obs}
}

// Len returns the number of dynamic obstacles, active or not.
func (h *Hazards) Len() int {
	return len(h.obs) // fixed at construction
}

// Do runs fn with exclusive access to every dynamic obstacle.
func (h *Hazards) Do(fn func(obs []*Obstacle)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.obs)
}

// Update runs fn with exclusive access to obstacle i.
func (h *Hazards) Update(i int, fn func(o *Obstacle)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.obs[i])
}

// Snapshot copies every dynamic obstacle under the lock.
func (h *Hazards) Snapshot() []Obstacle {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Obstacle, len(h.obs))
	for i, o := range h.obs {
		out[i] = *o
	}
	return out
}
