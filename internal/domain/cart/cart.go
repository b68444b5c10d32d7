// Package cart holds the items a passenger has selected and the train/PNR
// context they are ordering for, prior to checkout.
package cart

import "github.com/shopspring/decimal"

// Item is a menu item offered for addition to the cart.
type Item struct {
	ID           int64
	Name         string
	Price        decimal.Decimal
	RestaurantID int64
}

// Line is a single cart entry. Quantity is always at least 1.
type Line struct {
	ID           int64
	Name         string
	Price        decimal.Decimal
	RestaurantID int64
	Quantity     int
}

// Subtotal returns price × quantity for the line.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderInfo scopes what the cart is being purchased for. Zero values are the
// empty defaults: no train, no restaurant, blank strings.
type OrderInfo struct {
	TrainID        *int64
	TrainName      string
	RestaurantID   *int64
	RestaurantName string
	PNRNumber      string
	SeatNumber     string
	CoachNumber    string
}

// Complete reports whether the info carries the passenger details required
// to deliver an order.
func (o OrderInfo) Complete() bool {
	return o.PNRNumber != "" && o.SeatNumber != "" && o.CoachNumber != ""
}

func (o OrderInfo) clone() OrderInfo {
	out := o
	if o.TrainID != nil {
		v := *o.TrainID
		out.TrainID = &v
	}
	if o.RestaurantID != nil {
		v := *o.RestaurantID
		out.RestaurantID = &v
	}
	return out
}

// OrderInfoPatch is a partial OrderInfo update. Nil fields are left as they
// are.
type OrderInfoPatch struct {
	TrainID        *int64
	TrainName      *string
	RestaurantID   *int64
	RestaurantName *string
	PNRNumber      *string
	SeatNumber     *string
	CoachNumber    *string
}

func (p OrderInfoPatch) apply(o *OrderInfo) {
	if p.TrainID != nil {
		v := *p.TrainID
		o.TrainID = &v
	}
	if p.TrainName != nil {
		o.TrainName = *p.TrainName
	}
	if p.RestaurantID != nil {
		v := *p.RestaurantID
		o.RestaurantID = &v
	}
	if p.RestaurantName != nil {
		o.RestaurantName = *p.RestaurantName
	}
	if p.PNRNumber != nil {
		o.PNRNumber = *p.PNRNumber
	}
	if p.SeatNumber != nil {
		o.SeatNumber = *p.SeatNumber
	}
	if p.CoachNumber != nil {
		o.CoachNumber = *p.CoachNumber
	}
}

// Snapshot is a consistent view of the cart taken under a single lock.
type Snapshot struct {
	Lines   []Line
	Info    OrderInfo
	Total   decimal.Decimal
	Version uint64
}

// Empty reports whether the snapshot has no lines.
func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}
