package handler

import (
	"net/http"
	"time"

	"github.com/xenking/railmeal/internal/domain/order"
)

type orderItemDTO struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Subtotal float64 `json:"subtotal"`
}

type reviewDTO struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

type orderDTO struct {
	ID                   int64          `json:"id"`
	UserID               int64          `json:"userId"`
	TrainNumber          string         `json:"trainNumber"`
	TrainName            string         `json:"trainName"`
	RestaurantName       string         `json:"restaurantName"`
	PNRNumber            string         `json:"pnrNumber"`
	SeatNumber           string         `json:"seatNumber"`
	CoachNumber          string         `json:"coachNumber"`
	Items                []orderItemDTO `json:"items"`
	TotalAmount          float64        `json:"totalAmount"`
	Status               string         `json:"status"`
	DeliveryInstructions string         `json:"deliveryInstructions,omitempty"`
	Review               *reviewDTO     `json:"review"`
	CreatedAt            time.Time      `json:"createdAt"`
}

func toOrderDTO(o order.Order) orderDTO {
	out := orderDTO{
		ID:                   o.ID,
		UserID:               o.UserID,
		TrainNumber:          o.TrainNumber,
		TrainName:            o.TrainName,
		RestaurantName:       o.RestaurantName,
		PNRNumber:            o.PNRNumber,
		SeatNumber:           o.SeatNumber,
		CoachNumber:          o.CoachNumber,
		Items:                make([]orderItemDTO, len(o.Items)),
		TotalAmount:          o.Amount.InexactFloat64(),
		Status:               o.Status,
		DeliveryInstructions: o.DeliveryInstructions,
		CreatedAt:            o.CreatedAt,
	}
	for i, it := range o.Items {
		out.Items[i] = orderItemDTO{
			ID:       it.ID,
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.Price.InexactFloat64(),
			Subtotal: it.Subtotal.InexactFloat64(),
		}
	}
	if o.Review != nil {
		out.Review = &reviewDTO{Rating: o.Review.Rating, Comment: o.Review.Comment}
	}
	return out
}

type orderListDTO struct {
	State  string     `json:"state"`
	Orders []orderDTO `json:"orders"`
}

func toOrderList(s *order.Store) orderListDTO {
	orders := s.Orders()
	out := orderListDTO{
		State:  s.State().String(),
		Orders: make([]orderDTO, len(orders)),
	}
	for i, o := range orders {
		out.Orders[i] = toOrderDTO(o)
	}
	return out
}

type rateRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// ListOrders returns the cached order history. Read failures surface as an
// empty list, never as an error.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, toOrderList(sessionFrom(r.Context()).Orders()))
}

// RefreshOrders reloads the order history from the backend.
func (h *Handler) RefreshOrders(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context()).Orders()
	s.RefreshOrders(r.Context())
	respondJSON(w, r, http.StatusOK, toOrderList(s))
}

// GetOrder returns one order from the cache or the backend.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "orderID")
	if !ok {
		respondError(w, r, http.StatusBadRequest, "invalid order id")
		return
	}

	o := sessionFrom(r.Context()).Orders().GetOrderByID(r.Context(), id)
	if o == nil {
		respondError(w, r, http.StatusNotFound, "order not found")
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderDTO(*o))
}

// RateOrder submits a review for a delivered order.
func (h *Handler) RateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "orderID")
	if !ok {
		respondError(w, r, http.StatusBadRequest, "invalid order id")
		return
	}
	var req rateRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := sessionFrom(r.Context()).Orders().RateOrder(r.Context(), id, req.Rating, req.Comment); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
