// README: Platform settings store; key/value rows read with a caller default.
package settings

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cast"
)

const KeyCommissionRate = "commission_rate"

var ErrBadRequest = errors.New("bad request")

type Setting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Get returns the stored value, or def when the key is absent.
func (s *Store) Get(ctx context.Context, key, def string) (string, error) {
	var v string
	err := s.db.QueryRow(ctx, `SELECT value FROM platform_settings WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// GetFloat reads a numeric setting; unparsable values fall back to def.
func (s *Store) GetFloat(ctx context.Context, key string, def float64) (float64, error) {
	raw, err := s.Get(ctx, key, "")
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return def, nil
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return def, nil
	}
	return v, nil
}

func (s *Store) Put(ctx context.Context, key, value, description string) (Setting, error) {
	if key == "" {
		return Setting{}, ErrBadRequest
	}
	if key == KeyCommissionRate {
		rate, err := cast.ToFloat64E(value)
		if err != nil || rate < 0 || rate >= 1 {
			return Setting{}, ErrBadRequest
		}
	}
	out := Setting{Key: key}
	err := s.db.QueryRow(ctx, `
		INSERT INTO platform_settings (key, value, description, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    description = CASE WHEN EXCLUDED.description = '' THEN platform_settings.description ELSE EXCLUDED.description END,
		    updated_at = NOW()
		RETURNING value, description, updated_at`,
		key, value, description,
	).Scan(&out.Value, &out.Description, &out.UpdatedAt)
	if err != nil {
		return Setting{}, err
	}
	return out, nil
}

func (s *Store) List(ctx context.Context) ([]Setting, error) {
	rows, err := s.db.Query(ctx, `SELECT key, value, description, updated_at FROM platform_settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Setting
	for rows.Next() {
		var st Setting
		if err := rows.Scan(&st.Key, &st.Value, &st.Description, &st.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
