// README: Pet registry store backed by PostgreSQL.
package pet

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const selectPet = `SELECT id, user_id, name, type, breed, weight_kg, created_at FROM pets`

func (s *Store) Create(ctx context.Context, p *Pet) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO pets (user_id, name, type, breed, weight_kg)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		p.OwnerID, p.Name, p.Type, p.Breed, p.WeightKg,
	).Scan(&p.ID, &p.CreatedAt)
}

func (s *Store) ListByOwner(ctx context.Context, ownerID int64) ([]Pet, error) {
	rows, err := s.db.Query(ctx, selectPet+` WHERE user_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Pet
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetOwned returns the pet only if ownerID owns it.
func (s *Store) GetOwned(ctx context.Context, ownerID, id int64) (*Pet, error) {
	p, err := scanPet(s.db.QueryRow(ctx, selectPet+` WHERE id = $1 AND user_id = $2`, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// CountOwned counts how many of ids belong to ownerID.
func (s *Store) CountOwned(ctx context.Context, ownerID int64, ids []int64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM pets WHERE user_id = $1 AND id = ANY($2)`, ownerID, ids).Scan(&n)
	return n, err
}

func (s *Store) Types(ctx context.Context) ([]Type, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, icon FROM pet_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Type
	for rows.Next() {
		var t Type
		if err := rows.Scan(&t.ID, &t.Name, &t.Icon); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanPet(row pgx.Row) (*Pet, error) {
	var p Pet
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Type, &p.Breed, &p.WeightKg, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
