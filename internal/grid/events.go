package grid

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/trahn-swapgrid/internal/models"
)

type EventKind int

const (
	EventTrade EventKind = iota + 1
	EventStateChange
)

func (k EventKind) String() string {
	switch k {
	case EventTrade:
		return "trade"
	case EventStateChange:
		return "state"
	default:
		return "unknown"
	}
}

// Event carries a TradeRecord for EventTrade and a state snapshot for
// EventStateChange.
type Event struct {
	Kind  EventKind            `json:"kind"`
	Trade *models.TradeRecord  `json:"trade,omitempty"`
	State *models.GridBotState `json:"state,omitempty"`
}

// Bus fans events out to any number of subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	log    logrus.FieldLogger
}

func NewBus(log logrus.FieldLogger) *Bus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bus{subs: make(map[int]chan Event), log: log.WithField("component", "events")}
}

// Subscribe returns a receive channel and a cancel func that closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.log.WithFields(logrus.Fields{"subscriber": id, "kind": ev.Kind.String()}).Warn("subscriber full, event dropped")
		}
	}
}

func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
