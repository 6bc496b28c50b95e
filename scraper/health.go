package scraper

import (
	"math"
	"sync"
)

// relaunchScore is the error score at which the shared browser is replaced.
const relaunchScore = 3.0

// browserHealth scores the shared browser: crashes add a full point,
// successes take half a point off.
type browserHealth struct {
	mu       sync.Mutex
	errScore float64
	crashes  int
}

func (h *browserHealth) recordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errScore = math.Max(0, h.errScore-0.5)
}

func (h *browserHealth) recordCrash() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errScore++
	h.crashes++
}

func (h *browserHealth) shouldRelaunch() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errScore >= relaunchScore
}

func (h *browserHealth) failures() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.crashes
}

