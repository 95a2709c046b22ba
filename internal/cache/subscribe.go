package cache

import "sync"

// Listener receives a copy of the entry after each change to its key.
type Listener func(Entry)

// Subscribe registers fn for changes to key: status transitions, version
// bumps and optimistic value patches. fn runs synchronously in the goroutine
// that made the change, after the cache lock is released, so it may call Get.
// Listeners of the same key are called in no particular order.
//
// The returned function unsubscribes; calling it more than once is harmless.
func (c *Cache) Subscribe(key string, fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || fn == nil {
		return func() {}
	}
	c.nextSub++
	id := c.nextSub
	subs, ok := c.listeners[key]
	if !ok {
		subs = make(map[uint64]Listener)
		c.listeners[key] = subs
	}
	subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if subs, ok := c.listeners[key]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(c.listeners, key)
				}
			}
		})
	}
}

type notification struct {
	entry     Entry
	listeners []Listener
}

func (c *Cache) notificationLocked(e *entry) notification {
	subs := c.listeners[e.Key]
	n := notification{entry: e.Entry}
	if len(subs) == 0 {
		return n
	}
	n.listeners = make([]Listener, 0, len(subs))
	for _, fn := range subs {
		n.listeners = append(n.listeners, fn)
	}
	return n
}

func (n notification) deliver() {
	for _, fn := range n.listeners {
		fn(n.entry)
	}
}
