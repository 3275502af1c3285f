package media

import "sync"

// Container is an ordered set of elements, the panel's video area.
type Container struct {
	id string

	mu       sync.RWMutex
	elements []*Element
}

func NewContainer(id string) *Container {
	return &Container{id: id}
}

func (c *Container) ID() string { return c.id }

// Insert appends e.
func (c *Container) Insert(e *Element) {
	c.mu.Lock()
	c.elements = append(c.elements, e)
	c.mu.Unlock()
}

// Remove removes exactly e and reports whether it was present.
func (c *Container) Remove(e *Element) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, x := range c.elements {
		if x == e {
			c.elements = append(c.elements[:i], c.elements[i+1:]...)
			return true
		}
	}
	return false
}

// Elements returns snapshots in insertion order.
func (c *Container) Elements() []ElementInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ElementInfo, 0, len(c.elements))
	for _, e := range c.elements {
		out = append(out, e.Info())
	}
	return out
}

func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.elements)
}
