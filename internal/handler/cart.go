package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/railmeal/internal/domain/cart"
)

type cartLineDTO struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	RestaurantID int64   `json:"restaurantId"`
	Quantity     int     `json:"quantity"`
	Subtotal     float64 `json:"subtotal"`
}

type orderInfoDTO struct {
	TrainID        *int64 `json:"trainId"`
	TrainName      string `json:"trainName"`
	RestaurantID   *int64 `json:"restaurantId"`
	RestaurantName string `json:"restaurantName"`
	PNRNumber      string `json:"pnrNumber"`
	SeatNumber     string `json:"seatNumber"`
	CoachNumber    string `json:"coachNumber"`
}

type cartDTO struct {
	Items     []cartLineDTO `json:"items"`
	OrderInfo orderInfoDTO  `json:"orderInfo"`
	Total     float64       `json:"total"`
	Version   uint64        `json:"version"`
}

func toCartDTO(s cart.Snapshot) cartDTO {
	out := cartDTO{
		Items:     make([]cartLineDTO, len(s.Lines)),
		OrderInfo: orderInfoDTO(s.Info),
		Total:     s.Total.InexactFloat64(),
		Version:   s.Version,
	}
	for i, l := range s.Lines {
		out.Items[i] = cartLineDTO{
			ID:           l.ID,
			Name:         l.Name,
			Price:        l.Price.InexactFloat64(),
			RestaurantID: l.RestaurantID,
			Quantity:     l.Quantity,
			Subtotal:     l.Subtotal().InexactFloat64(),
		}
	}
	return out
}

type addItemRequest struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	RestaurantID int64           `json:"restaurantId"`
}

type orderInfoPatchDTO struct {
	TrainID        *int64  `json:"trainId"`
	TrainName      *string `json:"trainName"`
	RestaurantID   *int64  `json:"restaurantId"`
	RestaurantName *string `json:"restaurantName"`
	PNRNumber      *string `json:"pnrNumber"`
	SeatNumber     *string `json:"seatNumber"`
	CoachNumber    *string `json:"coachNumber"`
}

// GetCart returns the session cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, toCartDTO(sessionFrom(r.Context()).Cart().Snapshot()))
}

// ClearCart empties the cart and resets the order info.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Cart()
	c.Clear()
	respondJSON(w, r, http.StatusOK, toCartDTO(c.Snapshot()))
}

// AddCartItem adds one unit of a menu item.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID <= 0 {
		respondError(w, r, http.StatusBadRequest, "id must be positive")
		return
	}
	if req.Price.IsNegative() {
		respondError(w, r, http.StatusBadRequest, "price must not be negative")
		return
	}

	c := sessionFrom(r.Context()).Cart()
	c.AddItem(cart.Item{
		ID:           req.ID,
		Name:         req.Name,
		Price:        req.Price,
		RestaurantID: req.RestaurantID,
	})
	respondJSON(w, r, http.StatusOK, toCartDTO(c.Snapshot()))
}

// RemoveCartItem removes one unit of an item. Unknown items are ignored.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "itemID")
	if !ok {
		respondError(w, r, http.StatusBadRequest, "invalid item id")
		return
	}

	c := sessionFrom(r.Context()).Cart()
	c.RemoveItem(id)
	respondJSON(w, r, http.StatusOK, toCartDTO(c.Snapshot()))
}

// UpdateOrderInfo merges the given fields into the cart's order info.
func (h *Handler) UpdateOrderInfo(w http.ResponseWriter, r *http.Request) {
	var req orderInfoPatchDTO
	if err := decode(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	c := sessionFrom(r.Context()).Cart()
	c.SetOrderInfo(cart.OrderInfoPatch(req))
	respondJSON(w, r, http.StatusOK, toCartDTO(c.Snapshot()))
}
