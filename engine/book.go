package engine

import "sync"

// navBook holds the simulated portfolio NAV.
type navBook struct {
	mu  sync.Mutex
	nav float64
}

func newNAVBook(start float64) *navBook {
	return &navBook{nav: start}
}

func (b *navBook) get() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nav
}

func (b *navBook) set(nav float64) {
	b.mu.Lock()
	b.nav = nav
	b.mu.Unlock()
}

// apply runs fn with the current NAV and commits the NAV it returns. A
// failed fn leaves the book unchanged.
func (b *navBook) apply(fn func(nav float64) (float64, error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	next, err := fn(b.nav)
	if err != nil {
		return err
	}
	b.nav = next
	return nil
}
