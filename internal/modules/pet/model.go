// README: Customer pets and the catalogue of pet types they are filed under.
package pet

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("pet not found")
	ErrBadRequest = errors.New("bad request")
)

const (
	maxNameLen  = 100
	maxWeightKg = 150.0
)

type Pet struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"user_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type,omitempty"`
	Breed     string    `json:"breed,omitempty"`
	WeightKg  *float64  `json:"weight_kg,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Type struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

type CreateCommand struct {
	Name     string
	Type     string
	Breed    string
	WeightKg *float64
}
