package messaging

import (
	"context"
	"sync"
)

// MessageSender dispatches one destination's messages to its installed
// subscriber groups. It is the per-session/per-test-scope fan-out unit the
// MessagingManager drives; grounded on the teacher's ws.Broadcaster/client
// pair, with InstallSubscribers standing in for AddClient's "attach, then
// flush" sequencing and the sync.Once-guarded ready channel standing in
// for the client's writePump goroutine coming online.
type MessageSender struct {
	mu    sync.Mutex
	ready chan struct{}
	once  sync.Once

	groups []SubscriberGroup
	closed bool
}

// NewMessageSender returns a sender with no subscribers installed yet.
// SendMessage blocks until InstallSubscribers or Close is called.
func NewMessageSender() *MessageSender {
	return &MessageSender{ready: make(chan struct{})}
}

// InstallSubscribers installs the destination's subscriber groups and
// releases any callers blocked in SendMessage. Only the first call has an
// effect on the ready signal; later calls still replace the group list.
func (s *MessageSender) InstallSubscribers(groups []SubscriberGroup) {
	s.mu.Lock()
	s.groups = groups
	s.mu.Unlock()
	s.once.Do(func() { close(s.ready) })
}

// Close cancels any callers waiting for subscribers to be installed and
// prevents delivery of messages sent after close. Idempotent.
func (s *MessageSender) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.ready) })
}

// SendMessage waits for subscribers to be installed (or ctx to be done, or
// the sender to close), then dispatches send to each subscriber group in
// order, calling handler once per group with that group's receptions.
// Once every group has been visited, handler is called exactly once more
// with the two sentinels, ComponentMessageReceivingEnd then
// GlobalMessageReceivingEnd, in that order within the same batch.
func (s *MessageSender) SendMessage(ctx context.Context, send MessageSend, handler MessageReceptionsHandler) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return
	}

	s.mu.Lock()
	closed := s.closed
	groups := s.groups
	s.mu.Unlock()
	if closed {
		return
	}

	for _, group := range groups {
		batch := make(MessageReceptions, 0, len(group.Subscribers))
		for _, sub := range group.Subscribers {
			batch = append(batch, sub.Handle(send))
		}
		if len(batch) > 0 {
			handler(batch)
		}
	}

	handler(MessageReceptions{
		{Sentinel: ComponentMessageReceivingEnd},
		{Sentinel: GlobalMessageReceivingEnd},
	})
}
