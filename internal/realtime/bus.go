// README: Topic pub/sub used to fan realtime events out across server processes.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBusClosed is returned once a Bus has been closed for good.
var ErrBusClosed = errors.New("bus closed")

// Message is one event received from the bus.
type Message struct {
	Topic   string
	Payload []byte
}

// Bus is a topic-based publish/subscribe channel shared by every process.
// Patterns use '*' as a wildcard for one topic segment.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe delivers matching messages until ctx is cancelled or the
	// underlying stream is lost, then closes the channel.
	Subscribe(ctx context.Context, pattern string) (<-chan Message, error)
	Close() error
}

const (
	chatPrefix  = "chat:"
	chatPattern = chatPrefix + "*"
)

func ChatTopic(orderID int64) string {
	return fmt.Sprintf("%s%d", chatPrefix, orderID)
}

func parseChatTopic(topic string) (int64, bool) {
	raw, ok := strings.CutPrefix(topic, chatPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
