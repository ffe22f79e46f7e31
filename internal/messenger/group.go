package messenger

import "sync"

// Group tracks unsubscribe functions that should be released together.
type Group struct {
	mu     sync.Mutex
	unsubs []func()
}

// Add registers unsubscribe functions. Nil values are ignored.
func (g *Group) Add(unsubs ...func()) {
	if g == nil || len(unsubs) == 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, u := range unsubs {
		if u != nil {
			g.unsubs = append(g.unsubs, u)
		}
	}
}

// CloseAll calls every tracked function and clears the group.
func (g *Group) CloseAll() {
	if g == nil {
		return
	}

	g.mu.Lock()
	unsubs := g.unsubs
	g.unsubs = nil
	g.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

// Len returns the number of tracked functions.
func (g *Group) Len() int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.unsubs)
}
