// Package ws adapts the messaging fabric's delivered batches onto a
// websocket transport, so an external watcher (such as a dashboard) can
// tail a destination's MessageReceptions live.
package ws

import "github.com/omnilab/atsconsole/internal/messaging"

// WireReception is the JSON-safe encoding of a messaging.MessageReception;
// Err is flattened to its message string since error values don't survive
// json.Marshal.
type WireReception struct {
	Subscriber string `json:"subscriber,omitempty"`
	Value      any    `json:"value,omitempty"`
	Err        string `json:"error,omitempty"`
	Sentinel   string `json:"sentinel,omitempty"`
}

var sentinelNames = map[messaging.SentinelKind]string{
	messaging.NoSentinel:                  "",
	messaging.ComponentMessageReceivingEnd: "component_end",
	messaging.GlobalMessageReceivingEnd:    "global_end",
}

func toWireReception(r messaging.MessageReception) WireReception {
	wr := WireReception{
		Subscriber: r.Subscriber,
		Value:      r.Value,
		Sentinel:   sentinelNames[r.Sentinel],
	}
	if r.Err != nil {
		wr.Err = r.Err.Error()
	}
	return wr
}

// WireBatch is one delivered batch, sequenced so a client can detect gaps.
type WireBatch struct {
	DestinationID string          `json:"destinationId"`
	Seq           uint64          `json:"seq"`
	Receptions    []WireReception `json:"receptions"`
}

func toWireBatch(destinationID string, seq uint64, batch messaging.MessageReceptions) WireBatch {
	out := make([]WireReception, len(batch))
	for i, r := range batch {
		out[i] = toWireReception(r)
	}
	return WireBatch{DestinationID: destinationID, Seq: seq, Receptions: out}
}
