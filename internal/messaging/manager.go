package messaging

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

// MessagingManager is the public entry point for sending a message to a
// registered destination's MessageSender. Each call runs a producer
// goroutine (drives the sender, queueing its batches) and a consumer
// goroutine (drains the queue, coalescing contiguous batches, and invokes
// the caller's callback), mirroring the teacher's non-blocking
// `select{ c.send <- data; default: }` delivery shape from
// ws.Broadcaster.broadcast, generalized into a full two-stage pipeline.
type MessagingManager struct {
	mu         sync.RWMutex
	senders    map[string]*MessageSender
	bufferSize int
}

// NewMessagingManager returns a manager with no senders registered.
// bufferSize bounds the per-call producer/consumer queue depth; values <=0
// default to 16.
func NewMessagingManager(bufferSize int) *MessagingManager {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &MessagingManager{
		senders:    make(map[string]*MessageSender),
		bufferSize: bufferSize,
	}
}

// RegisterSender associates a destination id with its MessageSender.
func (m *MessagingManager) RegisterSender(destinationID string, sender *MessageSender) {
	m.mu.Lock()
	m.senders[destinationID] = sender
	m.mu.Unlock()
}

// UnregisterSender removes a destination's sender, if registered.
func (m *MessagingManager) UnregisterSender(destinationID string) {
	m.mu.Lock()
	delete(m.senders, destinationID)
	m.mu.Unlock()
}

// SendMessage locates the sender for send.DestinationID, generates a
// message id, and drives the producer/consumer pipeline. callback is
// invoked once per coalesced batch; receptions observed by callback are
// strictly monotonic in the producer's emission order and batches never
// merge across the sentinel pair. Returns the generated message id.
func (m *MessagingManager) SendMessage(ctx context.Context, send MessageSend, callback MessageReceptionsHandler) (string, error) {
	m.mu.RLock()
	sender, ok := m.senders[send.DestinationID]
	m.mu.RUnlock()
	if !ok {
		return "", &ErrDestinationNotFound{DestinationID: send.DestinationID}
	}

	messageID := uuid.NewString()
	queue := make(chan MessageReceptions, m.bufferSize)

	go m.produce(ctx, sender, send, queue)
	go m.consume(queue, callback)

	return messageID, nil
}

func (m *MessagingManager) produce(ctx context.Context, sender *MessageSender, send MessageSend, queue chan<- MessageReceptions) {
	defer close(queue)
	sender.SendMessage(ctx, send, func(batch MessageReceptions) {
		queue <- batch
	})
}

// consume drains queue, blocking on the first element of each round then
// coalescing any further batches already available (the poll()-drain
// described by the spec) into one merged MessageReceptions before invoking
// callback. A batch that carries a sentinel reception is flushed on its
// own, immediately: when the drain reaches one, the groups merged so far are
// delivered first and the sentinel batch is then delivered alone, so a
// sentinel pair can never be folded into the same callback invocation as a
// preceding (or following) real group. It returns once queue is closed and
// fully drained.
func (m *MessagingManager) consume(queue <-chan MessageReceptions, callback MessageReceptionsHandler) {
	for {
		first, ok := <-queue
		if !ok {
			return
		}
		merged := append(MessageReceptions(nil), first...)
		if containsSentinel(first) {
			m.invoke(callback, merged)
			continue
		}

	drain:
		for {
			select {
			case next, ok := <-queue:
				if !ok {
					m.invoke(callback, merged)
					return
				}
				if containsSentinel(next) {
					m.invoke(callback, merged)
					merged = append(MessageReceptions(nil), next...)
					break drain
				}
				merged = append(merged, next...)
			default:
				break drain
			}
		}
		m.invoke(callback, merged)
	}
}

// containsSentinel reports whether batch carries a sentinel reception.
func containsSentinel(batch MessageReceptions) bool {
	for _, r := range batch {
		if r.Sentinel != NoSentinel {
			return true
		}
	}
	return false
}

func (m *MessagingManager) invoke(callback MessageReceptionsHandler, batch MessageReceptions) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("messaging: callback panicked: %v", r)
		}
	}()
	callback(batch)
}
