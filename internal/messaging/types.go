// Package messaging implements the console's per-session messaging fabric:
// a MessageSender that dispatches a message to a session's installed
// subscribers, and a MessagingManager that fans sendMessage calls out to
// the right sender over a shared producer/consumer pipeline.
package messaging

import "fmt"

// MessageSend is the payload to be delivered to a destination's
// subscribers.
type MessageSend struct {
	DestinationID string
	Type          string
	Payload       any
}

// SentinelKind marks a MessageReception as a domain value or one of the two
// end-of-delivery sentinels.
type SentinelKind int

const (
	NoSentinel SentinelKind = iota
	ComponentMessageReceivingEnd
	GlobalMessageReceivingEnd
)

// MessageReception is a single subscriber's response to a MessageSend, or
// a sentinel value marking where in the delivery order it occurred.
type MessageReception struct {
	Subscriber string
	Value      any
	Err        error
	Sentinel   SentinelKind
}

// MessageReceptions is a batch of receptions delivered to a handler in one
// call: either the responses from one subscriber group, or the two
// end-of-delivery sentinels together.
type MessageReceptions []MessageReception

// MessageReceptionsHandler is invoked once per delivered batch.
type MessageReceptionsHandler func(MessageReceptions)

// Subscriber handles a MessageSend synchronously and returns its reception.
type Subscriber interface {
	Label() string
	Handle(send MessageSend) MessageReception
}

// SubscriberGroup is one unit of dispatch: all of its subscribers are
// visited before the next group, and their receptions are delivered to the
// handler together as a single MessageReceptions batch.
type SubscriberGroup struct {
	Label       string
	Subscribers []Subscriber
}

// ErrDestinationNotFound is returned by MessagingManager.SendMessage when
// no sender is registered for the requested destination.
type ErrDestinationNotFound struct {
	DestinationID string
}

func (e *ErrDestinationNotFound) Error() string {
	return fmt.Sprintf("MessageDestinationNotFound: %s", e.DestinationID)
}
