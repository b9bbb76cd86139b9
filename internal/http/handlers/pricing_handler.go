package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"petride/internal/modules/pricing"
	"petride/internal/types"
)

type PricingService interface {
	Estimate(ctx context.Context, req pricing.EstimateRequest) (pricing.Estimate, error)
	VehicleTypes() []pricing.VehicleType
}

type PricingHandler struct {
	pricing PricingService
}

func NewPricingHandler(svc PricingService) *PricingHandler {
	return &PricingHandler{pricing: svc}
}

type estimateReq struct {
	Pickup      types.Point `json:"pickup"`
	Dropoff     types.Point `json:"dropoff"`
	PetWeightKg int         `json:"pet_weight_kg"`
	VehicleType string      `json:"vehicle_type"`
}

func (h *PricingHandler) Estimate(c *gin.Context) {
	var req estimateReq
	if !bindJSON(c, &req) {
		return
	}
	est, err := h.pricing.Estimate(c.Request.Context(), pricing.EstimateRequest{
		Pickup:      req.Pickup,
		Dropoff:     req.Dropoff,
		PetWeightKg: req.PetWeightKg,
		VehicleType: req.VehicleType,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, est)
}

func (h *PricingHandler) VehicleTypes(c *gin.Context) {
	writeJSON(c, http.StatusOK, h.pricing.VehicleTypes())
}
