package ws

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialTestWS creates a test HTTP server that upgrades to WebSocket and returns
// the server-side connection. The caller must close both the server and the
// returned connection.
func dialTestWS(t *testing.T) (*httptest.Server, *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- c
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	_ = clientConn.Close()

	select {
	case serverConn := <-connCh:
		return srv, serverConn
	case <-time.After(2 * time.Second):
		srv.Close()
		t.Fatal("timed out waiting for server-side WebSocket connection")
		return nil, nil
	}
}

func TestAddClient_MaxConnections(t *testing.T) {
	const maxConns = 2
	h := NewHub(maxConns)

	var clients []*client
	var servers []*httptest.Server
	for i := 0; i < maxConns; i++ {
		srv, conn := dialTestWS(t)
		servers = append(servers, srv)

		c, err := h.AddClient(conn, "dest")
		if err != nil {
			t.Fatalf("AddClient[%d]: unexpected error: %v", i, err)
		}
		clients = append(clients, c)
	}

	if got := h.ClientCount(); got != maxConns {
		t.Fatalf("expected %d clients, got %d", maxConns, got)
	}

	srv, conn := dialTestWS(t)
	servers = append(servers, srv)

	_, err := h.AddClient(conn, "dest")
	if !errors.Is(err, ErrTooManyConnections) {
		t.Fatalf("expected ErrTooManyConnections, got %v", err)
	}

	if got := h.ClientCount(); got != maxConns {
		t.Fatalf("expected %d clients after rejection, got %d", maxConns, got)
	}

	h.RemoveClient(clients[0])

	srv2, conn2 := dialTestWS(t)
	servers = append(servers, srv2)

	_, err = h.AddClient(conn2, "dest")
	if err != nil {
		t.Fatalf("AddClient after removal: unexpected error: %v", err)
	}

	if got := h.ClientCount(); got != maxConns {
		t.Fatalf("expected %d clients after re-add, got %d", maxConns, got)
	}

	for _, srv := range servers {
		srv.Close()
	}
}

func TestAddClient_ZeroMaxConnections_Unlimited(t *testing.T) {
	h := NewHub(0)

	var servers []*httptest.Server
	for i := 0; i < 10; i++ {
		srv, conn := dialTestWS(t)
		servers = append(servers, srv)

		_, err := h.AddClient(conn, "dest")
		if err != nil {
			t.Fatalf("AddClient[%d]: unexpected error with maxConns=0: %v", i, err)
		}
	}

	if got := h.ClientCount(); got != 10 {
		t.Fatalf("expected 10 clients, got %d", got)
	}

	for _, srv := range servers {
		srv.Close()
	}
}
