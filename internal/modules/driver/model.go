// README: Driver profile linked one-to-one with a user account.
package driver

import (
	"errors"
	"time"

	"petride/internal/types"
)

const (
	MinWorkRadiusKm     = 2.0
	MaxWorkRadiusKm     = 50.0
	DefaultWorkRadiusKm = 10.0
)

var (
	ErrNotFound      = errors.New("driver not found")
	ErrConflict      = errors.New("driver already registered")
	ErrBadRequest    = errors.New("bad request")
	ErrInvalidRadius = errors.New("work radius must be between 2 and 50 kilometers")
)

type Driver struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	VehicleType  string    `json:"vehicle_type"`
	VehiclePlate string    `json:"vehicle_plate"`
	IsOnline     bool      `json:"is_online"`
	WorkRadiusKm float64   `json:"work_radius_km"`
	DeviceToken  string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Window returns the trailing interval covered by the period.
func (p Period) Window(now time.Time) (time.Time, bool) {
	switch p {
	case PeriodDaily:
		return now.AddDate(0, 0, -1), true
	case PeriodWeekly:
		return now.AddDate(0, 0, -7), true
	case PeriodMonthly:
		return now.AddDate(0, 0, -30), true
	}
	return time.Time{}, false
}

type Earnings struct {
	Period              Period      `json:"period"`
	StartDate           time.Time   `json:"start_date"`
	EndDate             time.Time   `json:"end_date"`
	TotalOrders         int         `json:"total_orders"`
	TotalPrice          types.Money `json:"total_price"`
	TotalPlatformFee    types.Money `json:"total_platform_fee"`
	TotalDriverEarnings types.Money `json:"total_driver_earnings"`
}

type Stats struct {
	TotalTrips  int `json:"total_trips"`
	YearsActive int `json:"years_active"`
}

type RegisterCommand struct {
	UserID       int64
	VehicleType  string
	VehiclePlate string
}
