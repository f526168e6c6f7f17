package app

import "sync"

// Publisher fans FrameResults out to observers. Publish never blocks: a
// subscriber whose buffer is full misses that result.
type Publisher struct {
	mu     sync.RWMutex
	subs   map[int]chan FrameResult
	next   int
	latest FrameResult
	has    bool
}

// NewPublisher creates a publisher with no subscribers.
func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[int]chan FrameResult)}
}

// Subscribe registers an observer with the given buffer size. The returned
// function unsubscribes and closes the channel.
func (p *Publisher) Subscribe(buffer int) (<-chan FrameResult, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan FrameResult, buffer)

	p.mu.Lock()
	id := p.next
	p.next++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

// Publish records res as the latest result and offers it to every
// subscriber.
func (p *Publisher) Publish(res FrameResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.latest = res
	p.has = true

	for _, ch := range p.subs {
		select {
		case ch <- res:
		default:
		}
	}
}

// Latest returns the most recent result, if any.
func (p *Publisher) Latest() (FrameResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.has
}

// Subscribers returns the number of active subscribers.
func (p *Publisher) Subscribers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}
