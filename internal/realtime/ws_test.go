package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"petride/internal/logger"
	"petride/internal/modules/driver"
	"petride/internal/modules/location"
	"petride/internal/modules/order"
	"petride/internal/types"
)

type tokenAuth map[string]order.Actor

func (a tokenAuth) Authenticate(_ context.Context, raw string) (order.Actor, error) {
	actor, ok := a[raw]
	if !ok {
		return order.Actor{}, errors.New("invalid token")
	}
	return actor, nil
}

type fakeParticipation struct{}

func (fakeParticipation) IsParticipant(_ context.Context, actor order.Actor, orderID int64) (bool, error) {
	if orderID != 7 {
		return false, order.ErrNotFound
	}
	return actor.UserID == 10 || actor.UserID == 20, nil
}

func (fakeParticipation) CanObserveDriver(_ context.Context, actor order.Actor, driverID int64) (bool, error) {
	if driverID != 2 {
		return false, driver.ErrNotFound
	}
	return driverID == 2 && (actor.UserID == 10 || actor.UserID == 20), nil
}

type recordingLocations struct {
	mu  sync.Mutex
	got []types.Point
}

func (r *recordingLocations) Update(_ context.Context, driverID int64, p types.Point) (location.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, p)
	return location.Location{DriverID: driverID, Point: p}, nil
}

func (r *recordingLocations) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func newWSServer(t *testing.T) (*httptest.Server, *Hub, *recordingLocations) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	bus := NewMemoryBus()
	hub := NewHub(bus, &memChats{}, logger.NewNop())
	startHub(t, bus, hub)

	driverID := int64(2)
	auth := tokenAuth{
		"cust":     {UserID: 10, Role: order.RoleCustomer},
		"drv":      {UserID: 20, Role: order.RoleDriver, DriverID: &driverID},
		"stranger": {UserID: 30, Role: order.RoleCustomer},
	}
	locs := &recordingLocations{}
	h := NewHandler(hub, auth, fakeParticipation{}, locs, logger.NewNop())

	r := gin.New()
	r.GET("/ws/chat/:id", h.ServeChat)
	r.GET("/ws/drivers/:id/location", h.ServeDriverLocation)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return srv, hub, locs
}

func dial(t *testing.T, srv *httptest.Server, path string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	return websocket.DefaultDialer.Dial(url, nil)
}

func mustDial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := dial(t, srv, path)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServeChatRejectsBeforeUpgrade(t *testing.T) {
	srv, _, _ := newWSServer(t)
	cases := map[string]int{
		"/ws/chat/7":                            http.StatusUnauthorized,
		"/ws/chat/7?token=bogus":                http.StatusUnauthorized,
		"/ws/chat/7?token=stranger":             http.StatusForbidden,
		"/ws/chat/99?token=cust":                http.StatusNotFound,
		"/ws/chat/abc?token=cust":               http.StatusBadRequest,
		"/ws/drivers/2/location?token=stranger": http.StatusForbidden,
		"/ws/drivers/99/location?token=cust":    http.StatusNotFound,
	}
	for path, want := range cases {
		_, resp, err := dial(t, srv, path)
		if err == nil {
			t.Fatalf("%s: expected handshake failure", path)
		}
		if resp == nil || resp.StatusCode != want {
			t.Fatalf("%s: expected %d, got %v", path, want, resp)
		}
	}
}

func TestServeChatDeliversToBothParticipants(t *testing.T) {
	srv, hub, _ := newWSServer(t)
	customer := mustDial(t, srv, "/ws/chat/7?token=cust")
	drv := mustDial(t, srv, "/ws/chat/7?token=drv")
	waitForScope(t, hub, Scope{Kind: ScopeOrder, ID: 7}, 2)

	if err := drv.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","message":"arriving"}`)); err != nil {
		t.Fatal(err)
	}
	for _, conn := range []*websocket.Conn{customer, drv} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got map[string]any
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("read: %v", err)
		}
		if got["type"] != "message" || got["message"] != "arriving" || got["sender_id"] != float64(20) {
			t.Fatalf("unexpected frame: %v", got)
		}
	}
}

func TestServeDriverLocationEchoAndStore(t *testing.T) {
	srv, hub, locs := newWSServer(t)
	drv := mustDial(t, srv, "/ws/drivers/2/location?token=drv")
	watcher := mustDial(t, srv, "/ws/drivers/2/location?token=cust")
	waitForScope(t, hub, Scope{Kind: ScopeDriver, ID: 2}, 2)

	frame := `{"lat":13.7563,"lng":100.5018}`
	if err := drv.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatal(err)
	}
	for _, conn := range []*websocket.Conn{drv, watcher} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, got, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(got) != frame {
			t.Fatalf("expected verbatim echo, got %s", got)
		}
	}
	if locs.count() != 1 {
		t.Fatalf("expected one stored location, got %d", locs.count())
	}

	// Observer frames are ignored.
	if err := watcher.WriteMessage(websocket.TextMessage, []byte(`{"lat":1,"lng":1}`)); err != nil {
		t.Fatal(err)
	}
	drv.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := drv.ReadMessage(); err == nil {
		t.Fatal("observer frame must not be broadcast")
	}

	_, resp, err := dial(t, srv, "/ws/drivers/2/location?token=stranger")
	if err == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger: expected 403, got %v", resp)
	}
}

// waitForScope polls until the hub holds n connections in scope.
func waitForScope(t *testing.T, h *Hub, scope Scope, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		h.mu.RLock()
		got := len(h.clients[scope])
		h.mu.RUnlock()
		if got == n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("scope %+v: expected %d connections, got %d", scope, n, got)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
