// README: Push notifier for drivers; FCM in production, a no-op otherwise.
package notify

import (
	"context"
	"fmt"
	"strconv"

	"firebase.google.com/go/v4/messaging"

	"petride/internal/logger"
	"petride/internal/types"
)

// OrderInfo contains the payload data sent with a new-order push.
type OrderInfo struct {
	OrderID       int64
	Pickup        types.Point
	Dropoff       types.Point
	PickupAddress string
	Earnings      types.Money
	DistanceKm    float64
}

// NewOrderMessage renders the title and body shown for a new-order push.
func NewOrderMessage(info OrderInfo) (string, string) {
	return "New pet ride request",
		fmt.Sprintf("Pickup %.1f km away, earn %s %s", info.DistanceKm, info.Earnings, types.Currency)
}

type Notifier interface {
	NotifyNewOrder(ctx context.Context, deviceToken string, info OrderInfo) error
}

// messageSender is the subset of *messaging.Client used here.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type FCM struct {
	client messageSender
	log    logger.ILogger
}

func NewFCM(client *messaging.Client, log logger.ILogger) *FCM {
	return &FCM{client: client, log: log}
}

func (f *FCM) NotifyNewOrder(ctx context.Context, deviceToken string, info OrderInfo) error {
	if deviceToken == "" {
		return fmt.Errorf("empty device token for order %d", info.OrderID)
	}

	title, body := NewOrderMessage(info)
	msg := &messaging.Message{
		Token: deviceToken,
		Data: map[string]string{
			"type":           "new_order",
			"order_id":       strconv.FormatInt(info.OrderID, 10),
			"pickup_lat":     strconv.FormatFloat(info.Pickup.Lat, 'f', 6, 64),
			"pickup_lng":     strconv.FormatFloat(info.Pickup.Lng, 'f', 6, 64),
			"dropoff_lat":    strconv.FormatFloat(info.Dropoff.Lat, 'f', 6, 64),
			"dropoff_lng":    strconv.FormatFloat(info.Dropoff.Lng, 'f', 6, 64),
			"pickup_address": info.PickupAddress,
			"earnings":       info.Earnings.String(),
			"distance_km":    strconv.FormatFloat(info.DistanceKm, 'f', 2, 64),
		},
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	messageID, err := f.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("sending FCM for order %d: %w", info.OrderID, err)
	}
	f.log.Debug("fcm sent", logger.Int64("order_id", info.OrderID), logger.String("message_id", messageID))
	return nil
}

// Nop logs instead of sending; used when Firebase is not configured.
type Nop struct {
	log logger.ILogger
}

func NewNop(log logger.ILogger) *Nop {
	return &Nop{log: log}
}

func (n *Nop) NotifyNewOrder(_ context.Context, _ string, info OrderInfo) error {
	n.log.Debug("push disabled, skipping new-order notification", logger.Int64("order_id", info.OrderID))
	return nil
}
