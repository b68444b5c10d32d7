package backend

import (
	"bytes"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/railmeal/internal/domain/order"
	"github.com/xenking/railmeal/internal/domain/wallet"
)

// localTime accepts the zone-less timestamps the backend emits as well as
// RFC 3339.
type localTime struct {
	time.Time
}

var localTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func (t *localTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return errors.Wrap(err, "timestamp")
	}
	for _, layout := range localTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return errors.Errorf("unsupported timestamp %q", s)
}

type orderDTO struct {
	ID                   int64           `json:"id"`
	UserID               int64           `json:"userId"`
	TrainNumber          string          `json:"trainNumber"`
	TrainName            string          `json:"trainName"`
	RestaurantName       string          `json:"restaurantName"`
	PNRNumber            string          `json:"pnrNumber"`
	SeatNumber           string          `json:"seatNumber"`
	CoachNumber          string          `json:"coachNumber"`
	TotalAmount          decimal.Decimal `json:"totalAmount"`
	Status               string          `json:"status"`
	DeliveryInstructions string          `json:"deliveryInstructions"`
	Items                []orderItemDTO  `json:"items"`
	CreatedAt            localTime       `json:"createdAt"`
	Review               *reviewDTO      `json:"review"`
}

type orderItemDTO struct {
	ID           int64           `json:"id"`
	FoodItemName string          `json:"foodItemName"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type reviewDTO struct {
	OrderID int64  `json:"orderId"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (d orderDTO) toDomain() order.Order {
	o := order.Order{
		ID:                   d.ID,
		UserID:               d.UserID,
		TrainNumber:          d.TrainNumber,
		TrainName:            d.TrainName,
		RestaurantName:       d.RestaurantName,
		PNRNumber:            d.PNRNumber,
		SeatNumber:           d.SeatNumber,
		CoachNumber:          d.CoachNumber,
		Amount:               d.TotalAmount,
		Status:               d.Status,
		DeliveryInstructions: d.DeliveryInstructions,
		CreatedAt:            d.CreatedAt.Time,
	}
	if len(d.Items) > 0 {
		o.Items = make([]order.Item, len(d.Items))
		for i, it := range d.Items {
			o.Items[i] = order.Item{
				ID:       it.ID,
				Name:     it.FoodItemName,
				Quantity: it.Quantity,
				Price:    it.Price,
				Subtotal: it.Subtotal,
			}
		}
	}
	if d.Review != nil {
		o.Review = &order.Review{
			OrderID: d.Review.OrderID,
			Rating:  d.Review.Rating,
			Comment: d.Review.Comment,
		}
	}
	return o
}

type createOrderDTO struct {
	UserID               int64                `json:"userId"`
	TrainID              int64                `json:"trainId"`
	RestaurantID         int64                `json:"restaurantId"`
	PNRNumber            string               `json:"pnrNumber"`
	SeatNumber           string               `json:"seatNumber"`
	CoachNumber          string               `json:"coachNumber"`
	Items                []createOrderItemDTO `json:"items"`
	DeliveryInstructions string               `json:"deliveryInstructions,omitempty"`
	PaymentReference     string               `json:"paymentReference,omitempty"`
}

type createOrderItemDTO struct {
	FoodItemID int64 `json:"foodItemId"`
	Quantity   int   `json:"quantity"`
}

func newCreateOrderDTO(req order.CreateRequest) createOrderDTO {
	items := make([]createOrderItemDTO, len(req.Items))
	for i, it := range req.Items {
		items[i] = createOrderItemDTO{FoodItemID: it.FoodItemID, Quantity: it.Quantity}
	}
	return createOrderDTO{
		UserID:               req.UserID,
		TrainID:              req.TrainID,
		RestaurantID:         req.RestaurantID,
		PNRNumber:            req.PNRNumber,
		SeatNumber:           req.SeatNumber,
		CoachNumber:          req.CoachNumber,
		Items:                items,
		DeliveryInstructions: req.DeliveryInstructions,
		PaymentReference:     req.PaymentReference,
	}
}

type walletDTO struct {
	ID      int64           `json:"id"`
	UserID  int64           `json:"userId"`
	Balance decimal.Decimal `json:"balance"`
	Active  bool            `json:"active"`
}

func (d walletDTO) toDomain() *wallet.Wallet {
	return &wallet.Wallet{
		ID:      d.ID,
		UserID:  d.UserID,
		Balance: d.Balance,
		Active:  d.Active,
	}
}

type transactionDTO struct {
	ID             int64           `json:"id"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	BalanceAfter   decimal.Decimal `json:"balanceAfter"`
	Description    string          `json:"description"`
	OrderID        *int64          `json:"orderId"`
	TransactionRef string          `json:"transactionRef"`
	CreatedAt      localTime       `json:"createdAt"`
}

func (d transactionDTO) toDomain() wallet.Transaction {
	return wallet.Transaction{
		ID:           d.ID,
		Type:         d.Type,
		Amount:       d.Amount,
		BalanceAfter: d.BalanceAfter,
		Description:  d.Description,
		OrderID:      d.OrderID,
		Reference:    d.TransactionRef,
		CreatedAt:    d.CreatedAt.Time,
	}
}

type addMoneyDTO struct {
	UserID int64   `json:"userId"`
	Amount float64 `json:"amount"`
}

type paymentOrderDTO struct {
	PaymentID       int64           `json:"paymentId"`
	RazorpayOrderID string          `json:"razorpayOrderId"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	RazorpayKeyID   string          `json:"razorpayKeyId"`
	Receipt         string          `json:"receipt"`
}

func (d paymentOrderDTO) toDomain() *wallet.TopUp {
	return &wallet.TopUp{
		PaymentID:      d.PaymentID,
		GatewayOrderID: d.RazorpayOrderID,
		Amount:         d.Amount,
		Currency:       d.Currency,
		Status:         d.Status,
		KeyID:          d.RazorpayKeyID,
		Receipt:        d.Receipt,
	}
}

type walletPaymentDTO struct {
	UserID      int64   `json:"userId"`
	OrderID     int64   `json:"orderId"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
}
