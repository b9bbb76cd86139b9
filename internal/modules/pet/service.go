// README: Pet service validates registrations and answers ownership checks for order manifests.
package pet

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

type Repository interface {
	Create(ctx context.Context, p *Pet) error
	ListByOwner(ctx context.Context, ownerID int64) ([]Pet, error)
	GetOwned(ctx context.Context, ownerID, id int64) (*Pet, error)
	CountOwned(ctx context.Context, ownerID int64, ids []int64) (int, error)
	Types(ctx context.Context) ([]Type, error)
}

type Service struct {
	store Repository
}

func NewService(store Repository) *Service {
	return &Service{store: store}
}

func (s *Service) Create(ctx context.Context, ownerID int64, cmd CreateCommand) (*Pet, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrBadRequest)
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return nil, fmt.Errorf("%w: name longer than %d characters", ErrBadRequest, maxNameLen)
	}
	if w := cmd.WeightKg; w != nil && (*w <= 0 || *w > maxWeightKg) {
		return nil, fmt.Errorf("%w: weight_kg must be in (0, %.0f]", ErrBadRequest, maxWeightKg)
	}

	kind := strings.ToLower(strings.TrimSpace(cmd.Type))
	if kind != "" {
		known, err := s.knownType(ctx, kind)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, fmt.Errorf("%w: unknown pet type %q", ErrBadRequest, kind)
		}
	}

	p := &Pet{
		OwnerID:  ownerID,
		Name:     name,
		Type:     kind,
		Breed:    strings.TrimSpace(cmd.Breed),
		WeightKg: cmd.WeightKg,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, ownerID int64) ([]Pet, error) {
	pets, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if pets == nil {
		pets = []Pet{}
	}
	return pets, nil
}

// Get hides other customers' pets behind ErrNotFound.
func (s *Service) Get(ctx context.Context, ownerID, id int64) (*Pet, error) {
	return s.store.GetOwned(ctx, ownerID, id)
}

func (s *Service) Types(ctx context.Context) ([]Type, error) {
	types, err := s.store.Types(ctx)
	if err != nil {
		return nil, err
	}
	if types == nil {
		types = []Type{}
	}
	return types, nil
}

// OwnsAll reports whether every id names a pet of ownerID. ids must be distinct.
func (s *Service) OwnsAll(ctx context.Context, ownerID int64, ids []int64) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	n, err := s.store.CountOwned(ctx, ownerID, ids)
	if err != nil {
		return false, err
	}
	return n == len(ids), nil
}

func (s *Service) knownType(ctx context.Context, name string) (bool, error) {
	types, err := s.store.Types(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range types {
		if t.Name == name {
			return true, nil
		}
	}
	return false, nil
}
