package relay

import (
	"context"
	"sync"

	"github.com/yeti47/cryochat/core/ccc/logging"
)

// MemoryRelay delivers events between subscribers of the same process
type MemoryRelay struct {
	logger logging.Logger
	subs   map[string]map[int]Handler
	nextID int
	mu     sync.RWMutex
}

func NewMemoryRelay(logger logging.Logger) *MemoryRelay {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &MemoryRelay{
		logger: logger,
		subs:   make(map[string]map[int]Handler),
	}
}

func (r *MemoryRelay) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	var handlers []Handler
	for userID, subs := range r.subs {
		if event.Broadcast() && userID == event.From {
			continue
		}
		if !event.Broadcast() && userID != event.To {
			continue
		}
		for _, h := range subs {
			handlers = append(handlers, h)
		}
	}
	r.mu.RUnlock()

	if len(handlers) == 0 {
		r.logger.Debug("Recipient offline, dropping event", "type", event.Type, "to", event.To)
		return nil
	}

	for _, h := range handlers {
		h(event)
	}
	return nil
}

func (r *MemoryRelay) Subscribe(userID string, handler Handler) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.subs[userID] == nil {
		r.subs[userID] = make(map[int]Handler)
	}
	id := r.nextID
	r.nextID++
	r.subs[userID][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()

			delete(r.subs[userID], id)
			if len(r.subs[userID]) == 0 {
				delete(r.subs, userID)
			}
		})
	}, nil
}

// Online reports whether userID has a subscriber
func (r *MemoryRelay) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subs[userID]) > 0
}

func (r *MemoryRelay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs = make(map[string]map[int]Handler)
}
