// Package domain holds the shop's persisted records.
package domain

import "time"

// Account is a user's prepaid balance together with its order and top-up history.
// Orders and TopUps are append-only and kept in creation order.
type Account struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Balance   int64     `json:"balance"`
	Orders    []Order   `json:"orders"`
	TopUps    []TopUp   `json:"topups"`
	CreatedAt time.Time `json:"created_at"`
	// Version increases with every committed mutation.
	Version int64 `json:"version"`
}

// Profile is the user-facing identity captured from Telegram.
type Profile struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
}

// Mention renders the profile as @username when one is set.
func (p Profile) Mention() string {
	if p.Username != "" {
		return "@" + p.Username
	}
	if p.Name != "" {
		return p.Name
	}
	return p.UserID
}

// Actor identifies who performed an admin action.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}

	cp := *a
	cp.Orders = append([]Order(nil), a.Orders...)
	cp.TopUps = append([]TopUp(nil), a.TopUps...)
	for i := range cp.Orders {
		cp.Orders[i].ResolvedAt = cloneTime(a.Orders[i].ResolvedAt)
	}
	for i := range cp.TopUps {
		cp.TopUps[i].ResolvedAt = cloneTime(a.TopUps[i].ResolvedAt)
	}
	return &cp
}

func (a *Account) Order(id string) (int, *Order) {
	for i := range a.Orders {
		if a.Orders[i].ID == id {
			return i, &a.Orders[i]
		}
	}
	return -1, nil
}

func (a *Account) TopUp(id string) (int, *TopUp) {
	for i := range a.TopUps {
		if a.TopUps[i].ID == id {
			return i, &a.TopUps[i]
		}
	}
	return -1, nil
}

// PendingTopUp returns the most recent pending top-up, if any.
func (a *Account) PendingTopUp() *TopUp {
	for i := len(a.TopUps) - 1; i >= 0; i-- {
		if a.TopUps[i].Status == TopUpPending {
			return &a.TopUps[i]
		}
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
