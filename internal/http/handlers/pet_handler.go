// README: Pet registry endpoints; customers file their pets here before listing them on orders.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"petride/internal/http/middleware"
	"petride/internal/modules/pet"
)

type PetService interface {
	Create(ctx context.Context, ownerID int64, cmd pet.CreateCommand) (*pet.Pet, error)
	List(ctx context.Context, ownerID int64) ([]pet.Pet, error)
	Get(ctx context.Context, ownerID, id int64) (*pet.Pet, error)
	Types(ctx context.Context) ([]pet.Type, error)
}

type PetHandler struct {
	pets PetService
}

func NewPetHandler(pets PetService) *PetHandler {
	return &PetHandler{pets: pets}
}

type createPetReq struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Breed    string   `json:"breed"`
	WeightKg *float64 `json:"weight_kg"`
}

func (h *PetHandler) Create(c *gin.Context) {
	var req createPetReq
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.pets.Create(c.Request.Context(), middleware.Caller(c).UserID, pet.CreateCommand{
		Name:     req.Name,
		Type:     req.Type,
		Breed:    req.Breed,
		WeightKg: req.WeightKg,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, p)
}

func (h *PetHandler) List(c *gin.Context) {
	pets, err := h.pets.List(c.Request.Context(), middleware.Caller(c).UserID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, pets)
}

func (h *PetHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.pets.Get(c.Request.Context(), middleware.Caller(c).UserID, id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *PetHandler) Types(c *gin.Context) {
	types, err := h.pets.Types(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, types)
}
