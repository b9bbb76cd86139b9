// README: Chat service validates frames and guards history behind order participation.
package chat

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"petride/internal/modules/order"
)

type Repository interface {
	Append(ctx context.Context, m *Message) error
	History(ctx context.Context, orderID int64) ([]Message, error)
	MarkRead(ctx context.Context, orderID, readerID int64) (int64, error)
}

// Participation answers whether the actor may see an order's conversation.
type Participation interface {
	IsParticipant(ctx context.Context, actor order.Actor, orderID int64) (bool, error)
}

// MediaStore persists uploaded bytes and returns the URL clients fetch them from.
type MediaStore interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

type Service struct {
	store    Repository
	orders   Participation
	media    MediaStore
	maxMedia int64
	now      func() time.Time
}

func NewService(store Repository, orders Participation) *Service {
	return &Service{store: store, orders: orders, now: time.Now}
}

// SetMedia enables uploads up to maxBytes each.
func (s *Service) SetMedia(m MediaStore, maxBytes int64) {
	s.media, s.maxMedia = m, maxBytes
}

// Append persists a message. The caller has already checked participation
// when the connection was opened.
func (s *Service) Append(ctx context.Context, cmd AppendCommand) (*Message, error) {
	text := strings.TrimSpace(cmd.Message)
	media := strings.TrimSpace(cmd.MediaURL)
	if text == "" && media == "" {
		return nil, fmt.Errorf("%w: message or media_url is required", ErrBadRequest)
	}
	if utf8.RuneCountInString(text) > maxMessageLen {
		return nil, fmt.Errorf("%w: message longer than %d characters", ErrBadRequest, maxMessageLen)
	}
	m := &Message{
		OrderID:    cmd.OrderID,
		SenderID:   cmd.SenderID,
		SenderRole: cmd.SenderRole,
		Message:    text,
		MediaURL:   media,
	}
	if err := s.store.Append(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) History(ctx context.Context, actor order.Actor, orderID int64) ([]Message, error) {
	if err := s.authorize(ctx, actor, orderID); err != nil {
		return nil, err
	}
	msgs, err := s.store.History(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

func (s *Service) MarkRead(ctx context.Context, actor order.Actor, orderID int64) (int64, error) {
	if err := s.authorize(ctx, actor, orderID); err != nil {
		return 0, err
	}
	return s.store.MarkRead(ctx, orderID, actor.UserID)
}

// UploadMedia stores a file for the order's conversation and returns its URL.
// The URL is then sent as media_url on a chat frame.
func (s *Service) UploadMedia(ctx context.Context, actor order.Actor, up Upload) (string, error) {
	if s.media == nil {
		return "", fmt.Errorf("%w: media uploads are disabled", ErrBadRequest)
	}
	if err := s.authorize(ctx, actor, up.OrderID); err != nil {
		return "", err
	}
	if up.Size <= 0 {
		return "", fmt.Errorf("%w: empty file", ErrBadRequest)
	}
	if up.Size > s.maxMedia {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxMedia)
	}
	if !allowedMedia(up.ContentType) {
		return "", fmt.Errorf("%w: unsupported content type %q", ErrBadRequest, up.ContentType)
	}

	name := fmt.Sprintf("chat/%d/%d_%s", up.OrderID, s.now().UnixNano(), mediaName(up.Filename))
	return s.media.Put(ctx, name, up.ContentType, io.LimitReader(up.Body, s.maxMedia))
}

func allowedMedia(contentType string) bool {
	for _, prefix := range []string{"image/", "video/", "audio/"} {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// mediaName keeps letters, digits, dots, dashes and underscores of the base name.
func mediaName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		if b.Len() >= maxMediaNameLen {
			break
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "file"
	}
	return out
}

func (s *Service) authorize(ctx context.Context, actor order.Actor, orderID int64) error {
	ok, err := s.orders.IsParticipant(ctx, actor, orderID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
