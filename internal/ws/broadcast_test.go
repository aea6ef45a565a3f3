package ws

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/omnilab/atsconsole/internal/messaging"
)

func readOne(t *testing.T, conn interface{ ReadMessage() (int, []byte, error) }) WireBatch {
	t.Helper()
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var batch WireBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		t.Fatalf("unmarshal WireBatch: %v", err)
	}
	return batch
}

func TestHubDeliverScopesToDestination(t *testing.T) {
	h := NewHub(0)

	srvA, connA := dialTestWS(t)
	defer srvA.Close()
	srvB, connB := dialTestWS(t)
	defer srvB.Close()

	clientA, err := h.AddClient(connA, "session-a")
	if err != nil {
		t.Fatalf("AddClient A: %v", err)
	}
	_, err = h.AddClient(connB, "session-b")
	if err != nil {
		t.Fatalf("AddClient B: %v", err)
	}
	defer h.RemoveClient(clientA)

	h.Deliver("session-a", messaging.MessageReceptions{
		{Subscriber: "sub1", Value: "hello"},
	})

	batch := readOne(t, connA)
	if batch.DestinationID != "session-a" {
		t.Errorf("DestinationID = %q, want session-a", batch.DestinationID)
	}
	if len(batch.Receptions) != 1 || batch.Receptions[0].Subscriber != "sub1" {
		t.Errorf("Receptions = %+v, want one reception from sub1", batch.Receptions)
	}

	connB.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = connB.ReadMessage()
	if err == nil {
		t.Error("session-b client should not have received session-a's batch")
	}
}

func TestHubDeliverEncodesSentinelsAndErrors(t *testing.T) {
	h := NewHub(0)
	srv, conn := dialTestWS(t)
	defer srv.Close()

	if _, err := h.AddClient(conn, "dest"); err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	h.Deliver("dest", messaging.MessageReceptions{
		{Subscriber: "s1", Err: errors.New("boom")},
		{Sentinel: messaging.ComponentMessageReceivingEnd},
		{Sentinel: messaging.GlobalMessageReceivingEnd},
	})

	batch := readOne(t, conn)
	if len(batch.Receptions) != 3 {
		t.Fatalf("got %d receptions, want 3", len(batch.Receptions))
	}
	if batch.Receptions[0].Err != "boom" {
		t.Errorf("Err = %q, want boom", batch.Receptions[0].Err)
	}
	if batch.Receptions[1].Sentinel != "component_end" {
		t.Errorf("Sentinel = %q, want component_end", batch.Receptions[1].Sentinel)
	}
	if batch.Receptions[2].Sentinel != "global_end" {
		t.Errorf("Sentinel = %q, want global_end", batch.Receptions[2].Sentinel)
	}
}

func TestHubDeliverIncrementsSeq(t *testing.T) {
	h := NewHub(0)
	srv, conn := dialTestWS(t)
	defer srv.Close()

	if _, err := h.AddClient(conn, "dest"); err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	h.Deliver("dest", messaging.MessageReceptions{{Subscriber: "s1"}})
	h.Deliver("dest", messaging.MessageReceptions{{Subscriber: "s2"}})

	first := readOne(t, conn)
	second := readOne(t, conn)

	if second.Seq <= first.Seq {
		t.Errorf("seq did not increase: first=%d second=%d", first.Seq, second.Seq)
	}
}

func TestHubRemoveClientStopsDelivery(t *testing.T) {
	h := NewHub(0)
	srv, conn := dialTestWS(t)
	defer srv.Close()

	c, err := h.AddClient(conn, "dest")
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}
	h.RemoveClient(c)

	if got := h.ClientCount(); got != 0 {
		t.Fatalf("ClientCount = %d, want 0 after removal", got)
	}

	h.Deliver("dest", messaging.MessageReceptions{{Subscriber: "s1"}})

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = conn.ReadMessage()
	if err == nil {
		t.Error("removed client should not receive further deliveries")
	}
}
