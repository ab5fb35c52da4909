package domain

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is a purchase paid from the account balance. Price is fixed when the
// order is placed.
type Order struct {
	ID             string      `json:"id"`
	ProductCode    string      `json:"product_code"`
	GameID         string      `json:"game_id"`
	ServerID       string      `json:"server_id"`
	Price          int64       `json:"price"`
	Status         OrderStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	ResolvedBy     string      `json:"resolved_by,omitempty"`
	ResolvedByName string      `json:"resolved_by_name,omitempty"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
	ChatID         int64       `json:"chat_id"`
}

func (o Order) IsTerminal() bool {
	return o.Status != OrderPending
}

type TopUpStatus string

const (
	TopUpPending  TopUpStatus = "pending"
	TopUpApproved TopUpStatus = "approved"
	TopUpRejected TopUpStatus = "rejected"
)

// TopUp is a request to credit the balance, backed by a payment screenshot.
type TopUp struct {
	ID             string      `json:"id"`
	Amount         int64       `json:"amount"`
	Channel        string      `json:"channel"`
	Status         TopUpStatus `json:"status"`
	ImageRef       string      `json:"image_ref"`
	CreatedAt      time.Time   `json:"created_at"`
	ResolvedBy     string      `json:"resolved_by,omitempty"`
	ResolvedByName string      `json:"resolved_by_name,omitempty"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
	ChatID         int64       `json:"chat_id"`
}

func (t TopUp) IsTerminal() bool {
	return t.Status != TopUpPending
}
