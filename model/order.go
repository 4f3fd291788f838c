// model/order.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderBooked    OrderStatus = "booked"
	OrderTaken     OrderStatus = "taken"
	OrderReturned  OrderStatus = "returned"
	OrderCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID         int64       `json:"id"`
	UserID     int64       `json:"user_id"`
	BookID     int64       `json:"book_id"`
	OrderDate  time.Time   `json:"order_date"`
	Status     OrderStatus `json:"status"`
	TakenAt    *time.Time  `json:"taken_at,omitempty"`
	ReturnedAt *time.Time  `json:"returned_at,omitempty"`
	// Penalty is reserved for late-return fees; nothing computes it yet.
	Penalty decimal.Decimal `json:"penalty"`
	Rating  *int            `json:"rating,omitempty"`
}
