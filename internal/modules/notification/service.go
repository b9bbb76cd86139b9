package notification

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

type Repository interface {
	Insert(ctx context.Context, n *Notification) error
	InsertForDriver(ctx context.Context, driverID int64, title, message string) (bool, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]Notification, error)
	GetOwned(ctx context.Context, userID, id int64) (*Notification, error)
	MarkRead(ctx context.Context, userID, id int64) (bool, error)
}

type Service struct {
	store Repository
}

func NewService(store Repository) *Service {
	return &Service{store: store}
}

func (s *Service) Record(ctx context.Context, userID int64, title, message string) (*Notification, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrBadRequest)
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return nil, fmt.Errorf("%w: title longer than %d characters", ErrBadRequest, maxTitleLen)
	}
	n := &Notification{UserID: userID, Title: title, Message: message}
	if err := s.store.Insert(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// RecordForDriver is the inbox hook used by the new-order dispatcher.
func (s *Service) RecordForDriver(ctx context.Context, driverID int64, title, message string) error {
	ok, err := s.store.InsertForDriver(ctx, driverID, title, message)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("driver %d: %w", driverID, ErrNotFound)
	}
	return nil
}

// List returns the user's notifications newest first. limit <= 0 means the default page.
func (s *Service) List(ctx context.Context, userID int64, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	out, err := s.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Notification{}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, userID, id int64) (*Notification, error) {
	return s.store.GetOwned(ctx, userID, id)
}

func (s *Service) MarkRead(ctx context.Context, userID, id int64) (*Notification, error) {
	ok, err := s.store.MarkRead(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return s.store.GetOwned(ctx, userID, id)
}
