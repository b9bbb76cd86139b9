// README: Order service implements the lifecycle state machine and role checks.
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"petride/internal/logger"
	"petride/internal/metrics"
	"petride/internal/modules/driver"
)

const commissionRateKey = "commission_rate"

type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id int64) (*Order, error)
	Transition(ctx context.Context, tr Transition) (bool, error)
	UpdateDetails(ctx context.Context, id int64, p Patch, tr *Transition) (bool, error)
	SetPayment(ctx context.Context, id int64, status PaymentStatus, method PaymentMethod, reference string) (bool, error)
	PayWithWallet(ctx context.Context, id, customerID int64) error
	ListByCustomer(ctx context.Context, customerID int64) ([]Order, error)
}

type DeclineRegistry interface {
	Decline(ctx context.Context, driverID, orderID int64) error
	IsDeclined(ctx context.Context, driverID, orderID int64) (bool, error)
}

type SettingsReader interface {
	GetFloat(ctx context.Context, key string, def float64) (float64, error)
}

// DriverDirectory resolves driver ids. Unknown ids fail with driver.ErrNotFound.
type DriverDirectory interface {
	Get(ctx context.Context, id int64) (*driver.Driver, error)
}

// PetRegistry confirms that every pet on a manifest belongs to the customer.
type PetRegistry interface {
	OwnsAll(ctx context.Context, ownerID int64, ids []int64) (bool, error)
}

// StatusPublisher fans order changes out to realtime subscribers of the order.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, orderID int64, payload any) error
}

// Dispatcher pushes a freshly created order to nearby drivers.
type Dispatcher interface {
	NotifyNearbyDrivers(ctx context.Context, o Order)
}

// StatusEvent is the realtime frame emitted after every applied change.
type StatusEvent struct {
	Type          string        `json:"type"`
	OrderID       int64         `json:"order_id"`
	Status        Status        `json:"status"`
	StatusVersion int           `json:"status_version"`
	DriverID      *int64        `json:"driver_id"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

type Service struct {
	store    Repository
	declines DeclineRegistry
	settings SettingsReader
	events   StatusPublisher
	dispatch Dispatcher
	drivers  DriverDirectory
	pets     PetRegistry
	log      logger.ILogger
}

func NewService(store Repository, declines DeclineRegistry, settings SettingsReader, log logger.ILogger) *Service {
	return &Service{store: store, declines: declines, settings: settings, log: log}
}

func (s *Service) SetPublisher(p StatusPublisher) { s.events = p }

func (s *Service) SetDispatcher(d Dispatcher) { s.dispatch = d }

func (s *Service) SetDrivers(d DriverDirectory) { s.drivers = d }

func (s *Service) SetPets(p PetRegistry) { s.pets = p }

func (s *Service) Create(ctx context.Context, actor Actor, cmd CreateCommand) (*Order, error) {
	if actor.Role != RoleCustomer {
		return nil, ErrForbidden
	}
	cmd.PickupAddress = strings.TrimSpace(cmd.PickupAddress)
	cmd.DropoffAddress = strings.TrimSpace(cmd.DropoffAddress)
	if cmd.PickupAddress == "" || cmd.DropoffAddress == "" {
		return nil, fmt.Errorf("%w: pickup and dropoff addresses are required", ErrBadRequest)
	}
	if !cmd.Pickup.Valid() || !cmd.Dropoff.Valid() {
		return nil, fmt.Errorf("%w: invalid coordinates", ErrBadRequest)
	}
	if cmd.Price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrBadRequest)
	}
	if cmd.Passengers == 0 {
		cmd.Passengers = 1
	}
	if cmd.Passengers < 0 {
		return nil, fmt.Errorf("%w: passengers must be positive", ErrBadRequest)
	}

	petIDs := uniqueIDs(cmd.PetIDs)
	if s.pets != nil && len(petIDs) > 0 {
		owned, err := s.pets.OwnsAll(ctx, actor.UserID, petIDs)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, fmt.Errorf("%w: pet_ids must name your own pets", ErrBadRequest)
		}
	}

	rate, err := s.settings.GetFloat(ctx, commissionRateKey, DefaultCommissionRate)
	if err != nil {
		return nil, err
	}
	if rate < 0 || rate >= 1 {
		s.log.Warning("commission rate out of range, using default", logger.Float64("rate", rate))
		rate = DefaultCommissionRate
	}
	fee := cmd.Price.Percent(rate)

	o := &Order{
		CustomerID:     actor.UserID,
		Status:         StatusPending,
		PickupAddress:  cmd.PickupAddress,
		Pickup:         cmd.Pickup,
		DropoffAddress: cmd.DropoffAddress,
		Dropoff:        cmd.Dropoff,
		Price:          cmd.Price,
		PlatformFee:    fee,
		DriverEarnings: cmd.Price - fee,
		CommissionRate: rate,
		Passengers:     cmd.Passengers,
		PetDetails:     strings.TrimSpace(cmd.PetDetails),
		PetIDs:         petIDs,
		PaymentStatus:  PaymentPending,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	metrics.OrderTransitionsTotal.WithLabelValues(string(StatusPending)).Inc()
	s.log.Info("order created",
		logger.Int64("order_id", o.ID),
		logger.Int64("customer_id", o.CustomerID),
		logger.String("price", o.Price.String()),
		logger.Float64("commission_rate", rate),
	)

	if s.dispatch != nil {
		go s.dispatch.NotifyNearbyDrivers(context.WithoutCancel(ctx), *o)
	}
	return o, nil
}

// Get returns the order if the actor may see it: the owner, the assigned
// driver, any driver while it is still pending, or an admin.
func (s *Service) Get(ctx context.Context, actor Actor, id int64) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.Role == RoleAdmin:
	case o.CustomerID == actor.UserID:
	case actor.IsDriver() && (o.AssignedTo(*actor.DriverID) || o.Status == StatusPending):
	default:
		return nil, ErrForbidden
	}
	return o, nil
}

// IsParticipant reports whether the actor may join the order's realtime channel.
func (s *Service) IsParticipant(ctx context.Context, actor Actor, id int64) (bool, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if actor.Role == RoleAdmin || o.CustomerID == actor.UserID {
		return true, nil
	}
	return actor.IsDriver() && o.AssignedTo(*actor.DriverID), nil
}

// CanObserveDriver reports whether the actor may follow a driver's live
// location: the driver, an admin, or a customer whose active order the driver holds.
func (s *Service) CanObserveDriver(ctx context.Context, actor Actor, driverID int64) (bool, error) {
	if s.drivers != nil {
		if _, err := s.drivers.Get(ctx, driverID); err != nil {
			return false, err
		}
	}
	if actor.Role == RoleAdmin || (actor.IsDriver() && *actor.DriverID == driverID) {
		return true, nil
	}
	orders, err := s.store.ListByCustomer(ctx, actor.UserID)
	if err != nil {
		return false, err
	}
	for _, o := range orders {
		if !o.Status.Terminal() && o.AssignedTo(driverID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) ListForCustomer(ctx context.Context, actor Actor) ([]Order, error) {
	return s.store.ListByCustomer(ctx, actor.UserID)
}

func (s *Service) Accept(ctx context.Context, actor Actor, id int64) (*Order, error) {
	driverID, err := requireDriver(actor)
	if err != nil {
		return nil, err
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusAccepted && o.AssignedTo(driverID) {
		return o, nil
	}
	if o.Status != StatusPending {
		return nil, invalidState(o.Status)
	}
	return s.advance(ctx, o, Transition{
		OrderID:   o.ID,
		From:      StatusPending,
		To:        StatusAccepted,
		Version:   o.StatusVersion,
		DriverID:  &driverID,
		ActorType: RoleDriver,
		ActorID:   driverID,
	}, func(cur *Order) bool {
		return cur.Status == StatusAccepted && cur.AssignedTo(driverID)
	})
}

func (s *Service) Pickup(ctx context.Context, actor Actor, id int64) (*Order, error) {
	driverID, o, err := s.loadAssigned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusInProgress {
		return o, nil
	}
	if o.Status != StatusAccepted {
		return nil, invalidState(o.Status)
	}
	return s.advance(ctx, o, Transition{
		OrderID:   o.ID,
		From:      StatusAccepted,
		To:        StatusInProgress,
		Version:   o.StatusVersion,
		ActorType: RoleDriver,
		ActorID:   driverID,
	}, func(cur *Order) bool {
		return cur.Status == StatusInProgress && cur.AssignedTo(driverID)
	})
}

func (s *Service) Complete(ctx context.Context, actor Actor, id int64) (*Order, error) {
	driverID, o, err := s.loadAssigned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusCompleted {
		return o, nil
	}
	if o.Status != StatusInProgress {
		return nil, invalidState(o.Status)
	}
	if o.PaymentStatus != PaymentPaid {
		return nil, fmt.Errorf("%w: payment status %s", ErrUnpaid, o.PaymentStatus)
	}
	return s.advance(ctx, o, Transition{
		OrderID:     o.ID,
		From:        StatusInProgress,
		To:          StatusCompleted,
		Version:     o.StatusVersion,
		RequirePaid: true,
		ActorType:   RoleDriver,
		ActorID:     driverID,
	}, func(cur *Order) bool {
		return cur.Status == StatusCompleted && cur.AssignedTo(driverID)
	})
}

// Cancel is the customer's cancellation; it clears any assigned driver.
func (s *Service) Cancel(ctx context.Context, actor Actor, id int64) (*Order, error) {
	if actor.Role != RoleCustomer {
		return nil, ErrForbidden
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != actor.UserID {
		return nil, ErrForbidden
	}
	if o.Status == StatusCancelled {
		return o, nil
	}
	if o.Status.Terminal() {
		return nil, invalidState(o.Status)
	}
	return s.advance(ctx, o, Transition{
		OrderID:     o.ID,
		From:        o.Status,
		To:          StatusCancelled,
		Version:     o.StatusVersion,
		ClearDriver: true,
		ActorType:   RoleCustomer,
		ActorID:     actor.UserID,
	}, func(cur *Order) bool {
		return cur.Status == StatusCancelled
	})
}

// Release hands an accepted order back to the pending pool.
func (s *Service) Release(ctx context.Context, actor Actor, id int64) (*Order, error) {
	driverID, err := requireDriver(actor)
	if err != nil {
		return nil, err
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.DriverID == nil {
		if o.Status == StatusPending {
			return o, nil
		}
		return nil, invalidState(o.Status)
	}
	if !o.AssignedTo(driverID) {
		return nil, ErrForbidden
	}
	if o.Status != StatusAccepted {
		return nil, invalidState(o.Status)
	}
	return s.advance(ctx, o, Transition{
		OrderID:     o.ID,
		From:        StatusAccepted,
		To:          StatusPending,
		Version:     o.StatusVersion,
		ClearDriver: true,
		ActorType:   RoleDriver,
		ActorID:     driverID,
	}, func(cur *Order) bool {
		return cur.Status == StatusPending && cur.DriverID == nil
	})
}

// CancelAsActor routes the shared cancel action: the owner cancels, a driver releases.
func (s *Service) CancelAsActor(ctx context.Context, actor Actor, id int64) (*Order, error) {
	if actor.IsDriver() {
		return s.Release(ctx, actor, id)
	}
	return s.Cancel(ctx, actor, id)
}

// Decline hides a pending order from the driver's queue. Repeating it is a no-op.
func (s *Service) Decline(ctx context.Context, actor Actor, id int64) error {
	driverID, err := requireDriver(actor)
	if err != nil {
		return err
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	declined, err := s.declines.IsDeclined(ctx, driverID, id)
	if err != nil {
		return err
	}
	if declined {
		return nil
	}
	if o.AssignedTo(driverID) && !o.Status.Terminal() {
		return fmt.Errorf("%w: order is assigned to you, release it instead (current status %s)", ErrInvalidState, o.Status)
	}
	if o.Status != StatusPending {
		return invalidState(o.Status)
	}
	if err := s.declines.Decline(ctx, driverID, id); err != nil {
		return err
	}
	s.log.Info("order declined", logger.Int64("order_id", id), logger.Int64("driver_id", driverID))
	return nil
}

func (s *Service) PayWithWallet(ctx context.Context, actor Actor, id int64) (*Order, error) {
	if actor.Role != RoleCustomer {
		return nil, ErrForbidden
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != actor.UserID {
		return nil, ErrForbidden
	}
	if o.PaymentStatus == PaymentPaid {
		return nil, ErrAlreadyPaid
	}
	if o.Status == StatusCancelled || o.DriverID == nil {
		return nil, invalidState(o.Status)
	}
	if err := s.store.PayWithWallet(ctx, id, actor.UserID); err != nil {
		return nil, err
	}
	paid, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("order paid from wallet",
		logger.Int64("order_id", id),
		logger.String("price", paid.Price.String()),
		logger.String("driver_earnings", paid.DriverEarnings.String()),
	)
	s.publish(ctx, paid)
	return paid, nil
}

// RecordPayment stores an outcome reported by the card provider (owner) or a
// cash collection (assigned driver). Paid is final.
func (s *Service) RecordPayment(ctx context.Context, actor Actor, id int64, method PaymentMethod, outcome PaymentOutcome, reference string) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch method {
	case MethodCard:
		if o.CustomerID != actor.UserID {
			return nil, ErrForbidden
		}
	case MethodCash:
		if !actor.IsDriver() || !o.AssignedTo(*actor.DriverID) {
			return nil, ErrForbidden
		}
	default:
		return nil, fmt.Errorf("%w: unsupported payment method %q", ErrBadRequest, method)
	}

	status := PaymentFailed
	if outcome == OutcomeSucceeded {
		status = PaymentPaid
	}
	if o.PaymentStatus == PaymentPaid {
		if status == PaymentPaid && o.PaymentMethod == method && o.PaymentReference == reference {
			return o, nil
		}
		return nil, ErrAlreadyPaid
	}
	if o.Status == StatusCancelled {
		return nil, invalidState(o.Status)
	}

	ok, err := s.store.SetPayment(ctx, id, status, method, reference)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyPaid
	}
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, cur)
	return cur, nil
}

// Apply executes a patch. Status alone routes to the named transition.
// Detail edits are written together with any status change, after every
// check has passed, so a rejected patch changes nothing.
func (s *Service) Apply(ctx context.Context, actor Actor, id int64, p Patch) (*Order, error) {
	if p.Status != nil && !p.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrBadRequest, *p.Status)
	}
	if !p.hasDetails() {
		if p.Status == nil {
			return s.Get(ctx, actor, id)
		}
		return s.applyStatus(ctx, actor, id, *p.Status)
	}
	if err := validatePatch(p); err != nil {
		return nil, err
	}

	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != actor.UserID {
		return nil, ErrForbidden
	}
	if o.Status != StatusPending {
		return nil, invalidState(o.Status)
	}

	var tr *Transition
	if p.Status != nil {
		// The owner of a pending order can only pair edits with a cancel;
		// every other status belongs to the driver.
		if *p.Status != StatusCancelled || actor.Role != RoleCustomer {
			return nil, ErrForbidden
		}
		tr = &Transition{
			OrderID:     o.ID,
			From:        StatusPending,
			To:          StatusCancelled,
			Version:     o.StatusVersion,
			ClearDriver: true,
			ActorType:   RoleCustomer,
			ActorID:     actor.UserID,
		}
	}

	ok, err := s.store.UpdateDetails(ctx, id, p, tr)
	if err != nil {
		return nil, err
	}
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.OrderConflictsTotal.Inc()
		return nil, fmt.Errorf("%w: current status %s", ErrConflict, cur.Status)
	}
	if tr != nil {
		s.applied(ctx, cur, *tr)
	}
	return cur, nil
}

func (s *Service) applyStatus(ctx context.Context, actor Actor, id int64, status Status) (*Order, error) {
	switch status {
	case StatusAccepted:
		return s.Accept(ctx, actor, id)
	case StatusInProgress:
		return s.Pickup(ctx, actor, id)
	case StatusCompleted:
		return s.Complete(ctx, actor, id)
	case StatusCancelled:
		return s.CancelAsActor(ctx, actor, id)
	case StatusPending:
		return s.Release(ctx, actor, id)
	}
	return nil, fmt.Errorf("%w: unknown status %q", ErrBadRequest, status)
}

// ParseStatus maps client status values, including synonyms, onto Status.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case "picked_up":
		return StatusInProgress, true
	case "canceled":
		return StatusCancelled, true
	default:
		return s, s.Valid()
	}
}

// advance applies tr. When the compare-and-swap loses, the order is reloaded
// and replay decides whether the caller's intent already holds.
func (s *Service) advance(ctx context.Context, o *Order, tr Transition, replay func(*Order) bool) (*Order, error) {
	if !CanTransition(tr.From, tr.To) {
		return nil, invalidState(tr.From)
	}
	ok, err := s.store.Transition(ctx, tr)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.OrderConflictsTotal.Inc()
		cur, err := s.store.Get(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		if replay(cur) {
			return cur, nil
		}
		return nil, fmt.Errorf("%w: current status %s", ErrConflict, cur.Status)
	}

	next := *o
	next.Status = tr.To
	next.StatusVersion++
	if tr.ClearDriver {
		next.DriverID = nil
	} else if tr.DriverID != nil {
		d := *tr.DriverID
		next.DriverID = &d
	}
	s.applied(ctx, &next, tr)
	return &next, nil
}

// applied records a committed transition and fans it out.
func (s *Service) applied(ctx context.Context, o *Order, tr Transition) {
	metrics.OrderTransitionsTotal.WithLabelValues(string(tr.To)).Inc()
	s.log.Info("order transition",
		logger.Int64("order_id", o.ID),
		logger.String("from", string(tr.From)),
		logger.String("to", string(tr.To)),
		logger.String("actor_type", tr.ActorType),
		logger.Int64("actor_id", tr.ActorID),
	)
	s.publish(ctx, o)
}

func (s *Service) publish(ctx context.Context, o *Order) {
	if s.events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	err := s.events.PublishStatus(pctx, o.ID, StatusEvent{
		Type:          "status",
		OrderID:       o.ID,
		Status:        o.Status,
		StatusVersion: o.StatusVersion,
		DriverID:      o.DriverID,
		PaymentStatus: o.PaymentStatus,
	})
	if err != nil {
		s.log.Warning("failed to publish order status", logger.Int64("order_id", o.ID), logger.Error(err))
	}
}

func (s *Service) loadAssigned(ctx context.Context, actor Actor, id int64) (int64, *Order, error) {
	driverID, err := requireDriver(actor)
	if err != nil {
		return 0, nil, err
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return 0, nil, err
	}
	if !o.AssignedTo(driverID) {
		return 0, nil, ErrForbidden
	}
	return driverID, o, nil
}

func requireDriver(actor Actor) (int64, error) {
	if !actor.IsDriver() {
		return 0, ErrForbidden
	}
	return *actor.DriverID, nil
}

func invalidState(current Status) error {
	return fmt.Errorf("%w: current status %s", ErrInvalidState, current)
}

func validatePatch(p Patch) error {
	if p.PickupAddress != nil && strings.TrimSpace(*p.PickupAddress) == "" {
		return fmt.Errorf("%w: pickup address must not be empty", ErrBadRequest)
	}
	if p.DropoffAddress != nil && strings.TrimSpace(*p.DropoffAddress) == "" {
		return fmt.Errorf("%w: dropoff address must not be empty", ErrBadRequest)
	}
	if p.Passengers != nil && *p.Passengers < 1 {
		return fmt.Errorf("%w: passengers must be positive", ErrBadRequest)
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
