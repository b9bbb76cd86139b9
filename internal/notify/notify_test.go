package notify

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"

	"petride/internal/logger"
	"petride/internal/types"
)

type stubSender struct {
	got *messaging.Message
	err error
}

func (s *stubSender) Send(_ context.Context, m *messaging.Message) (string, error) {
	s.got = m
	return "msg-1", s.err
}

func TestFCMBuildsNewOrderMessage(t *testing.T) {
	sender := &stubSender{}
	f := &FCM{client: sender, log: logger.NewNop()}

	err := f.NotifyNewOrder(context.Background(), "tok", OrderInfo{
		OrderID:    42,
		Pickup:     types.Point{Lat: 13.0, Lng: 100.0},
		Earnings:   5580,
		DistanceKm: 1.234,
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if sender.got.Token != "tok" || sender.got.Data["order_id"] != "42" || sender.got.Data["earnings"] != "55.80" {
		t.Fatalf("unexpected message: %+v", sender.got)
	}
}

func TestFCMWrapsErrors(t *testing.T) {
	f := &FCM{client: &stubSender{err: errors.New("unavailable")}, log: logger.NewNop()}
	if err := f.NotifyNewOrder(context.Background(), "tok", OrderInfo{OrderID: 1}); err == nil {
		t.Fatalf("expected error")
	}
	if err := f.NotifyNewOrder(context.Background(), "", OrderInfo{OrderID: 1}); err == nil {
		t.Fatalf("expected error for empty token")
	}
}

func TestNewOrderMessage(t *testing.T) {
	title, body := NewOrderMessage(OrderInfo{Earnings: 5580, DistanceKm: 1.26})
	if title != "New pet ride request" {
		t.Fatalf("title = %q", title)
	}
	if want := "Pickup 1.3 km away, earn 55.80 " + types.Currency; body != want {
		t.Fatalf("body = %q, want %q", body, want)
	}
}
