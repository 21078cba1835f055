package eventbus

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type Type string

const (
	TypeTasksUpdated     Type = "taskmaster-tasks-updated"
	TypeProjectUpdated   Type = "taskmaster-project-updated"
	TypeMCPStatusChanged Type = "taskmaster-mcp-status-changed"
	TypePRDUpdated       Type = "taskmaster-prd-updated"
	TypeProjectsUpdated  Type = "projects-updated"
	TypeCommandCompleted Type = "taskmaster-command-completed"
)

// Event is a change notification. ProjectName is empty for events that do
// not concern a single project.
type Event struct {
	ID          string            `json:"id"`
	Type        Type              `json:"type"`
	ProjectName string            `json:"projectName,omitempty"`
	Data        any               `json:"data,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan *Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan *Event) {
	id := ulid.Make().String()
	ch := make(chan *Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Publish delivers event to every subscriber without blocking. Subscribers
// whose buffer is full miss the event.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *Bus) PublishNew(eventType Type, projectName string, data any, metadata map[string]string) *Event {
	event := &Event{
		ID:          ulid.Make().String(),
		Type:        eventType,
		ProjectName: projectName,
		Data:        data,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	}
	b.Publish(event)
	return event
}
