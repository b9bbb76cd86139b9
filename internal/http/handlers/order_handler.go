// README: Order handlers: create, read, list, patch and the named transitions.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"petride/internal/http/middleware"
	"petride/internal/modules/matching"
	"petride/internal/modules/order"
	"petride/internal/types"
)

type OrderService interface {
	Create(ctx context.Context, actor order.Actor, cmd order.CreateCommand) (*order.Order, error)
	Get(ctx context.Context, actor order.Actor, id int64) (*order.Order, error)
	Accept(ctx context.Context, actor order.Actor, id int64) (*order.Order, error)
	Pickup(ctx context.Context, actor order.Actor, id int64) (*order.Order, error)
	Complete(ctx context.Context, actor order.Actor, id int64) (*order.Order, error)
	Release(ctx context.Context, actor order.Actor, id int64) (*order.Order, error)
	CancelAsActor(ctx context.Context, actor order.Actor, id int64) (*order.Order, error)
	Decline(ctx context.Context, actor order.Actor, id int64) error
	PayWithWallet(ctx context.Context, actor order.Actor, id int64) (*order.Order, error)
	RecordPayment(ctx context.Context, actor order.Actor, id int64, method order.PaymentMethod, outcome order.PaymentOutcome, reference string) (*order.Order, error)
	Apply(ctx context.Context, actor order.Actor, id int64, p order.Patch) (*order.Order, error)
}

type JobLister interface {
	Visible(ctx context.Context, actor order.Actor, q matching.Query) ([]matching.Job, error)
}

type OrderHandler struct {
	orders OrderService
	jobs   JobLister
}

func NewOrderHandler(orders OrderService, jobs JobLister) *OrderHandler {
	return &OrderHandler{orders: orders, jobs: jobs}
}

type createOrderReq struct {
	PickupAddress  string      `json:"pickup_address"`
	Pickup         types.Point `json:"pickup"`
	DropoffAddress string      `json:"dropoff_address"`
	Dropoff        types.Point `json:"dropoff"`
	Price          types.Money `json:"price"`
	Passengers     int         `json:"passengers"`
	PetDetails     string      `json:"pet_details"`
	PetIDs         []int64     `json:"pet_ids"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.orders.Create(c.Request.Context(), middleware.Caller(c), order.CreateCommand{
		PickupAddress:  req.PickupAddress,
		Pickup:         req.Pickup,
		DropoffAddress: req.DropoffAddress,
		Dropoff:        req.Dropoff,
		Price:          req.Price,
		Passengers:     req.Passengers,
		PetDetails:     req.PetDetails,
		PetIDs:         req.PetIDs,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.Get(c.Request.Context(), middleware.Caller(c), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

// List serves GET /api/orders?status=&driver_id=.
func (h *OrderHandler) List(c *gin.Context) {
	var q matching.Query
	if raw := c.Query("status"); raw != "" {
		st, ok := order.ParseStatus(raw)
		if !ok {
			writeError(c, http.StatusBadRequest, "invalid status")
			return
		}
		q.Status = &st
	}
	if raw := c.Query("driver_id"); raw != "" {
		id, err := cast.ToInt64E(raw)
		if err != nil || id <= 0 {
			writeError(c, http.StatusBadRequest, "invalid driver_id")
			return
		}
		q.DriverID = &id
	}
	jobs, err := h.jobs.Visible(c.Request.Context(), middleware.Caller(c), q)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if jobs == nil {
		jobs = []matching.Job{}
	}
	writeJSON(c, http.StatusOK, jobs)
}

type patchOrderReq struct {
	PickupAddress  *string `json:"pickup_address"`
	DropoffAddress *string `json:"dropoff_address"`
	PetDetails     *string `json:"pet_details"`
	Passengers     *int    `json:"passengers"`
	Status         *string `json:"status"`
}

func (h *OrderHandler) Patch(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req patchOrderReq
	if !bindJSON(c, &req) {
		return
	}
	p := order.Patch{
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		PetDetails:     req.PetDetails,
		Passengers:     req.Passengers,
	}
	if req.Status != nil {
		st, ok := order.ParseStatus(*req.Status)
		if !ok {
			writeError(c, http.StatusBadRequest, "invalid status")
			return
		}
		p.Status = &st
	}
	o, err := h.orders.Apply(c.Request.Context(), middleware.Caller(c), id, p)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

type transitionFunc func(ctx context.Context, actor order.Actor, id int64) (*order.Order, error)

func (h *OrderHandler) transition(fn transitionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		o, err := fn(c.Request.Context(), middleware.Caller(c), id)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		writeJSON(c, http.StatusOK, o)
	}
}

func (h *OrderHandler) Accept() gin.HandlerFunc   { return h.transition(h.orders.Accept) }
func (h *OrderHandler) Pickup() gin.HandlerFunc   { return h.transition(h.orders.Pickup) }
func (h *OrderHandler) Complete() gin.HandlerFunc { return h.transition(h.orders.Complete) }
func (h *OrderHandler) Release() gin.HandlerFunc  { return h.transition(h.orders.Release) }
func (h *OrderHandler) Cancel() gin.HandlerFunc   { return h.transition(h.orders.CancelAsActor) }
func (h *OrderHandler) PayWallet() gin.HandlerFunc {
	return h.transition(h.orders.PayWithWallet)
}

func (h *OrderHandler) Decline(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.orders.Decline(c.Request.Context(), middleware.Caller(c), id); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "declined": true})
}

type cashReq struct {
	Collected *bool `json:"collected"`
}

// Cash records the driver's cash collection. collected=false marks the payment failed.
func (h *OrderHandler) Cash(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cashReq
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	outcome := order.OutcomeSucceeded
	if req.Collected != nil && !*req.Collected {
		outcome = order.OutcomeFailed
	}
	o, err := h.orders.RecordPayment(c.Request.Context(), middleware.Caller(c), id, order.MethodCash, outcome, "")
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}
