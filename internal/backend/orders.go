package backend

import (
	"context"
	"net/http"
	"strconv"

	"github.com/xenking/railmeal/internal/domain/order"
)

var (
	_ order.Remote   = (*OrderService)(nil)
	_ order.Reviewer = (*OrderService)(nil)
)

// OrderService is the backend order and review API.
type OrderService struct {
	c *Client
}

// Orders returns the order and review API.
func (c *Client) Orders() *OrderService {
	return &OrderService{c: c}
}

// UserOrders lists the orders of a user.
func (s *OrderService) UserOrders(ctx context.Context, userID int64) ([]order.Order, error) {
	var dtos []orderDTO
	err := s.c.call(ctx, request{
		method: http.MethodGet,
		path:   "/api/orders/user/" + strconv.FormatInt(userID, 10),
	}, &dtos)
	if err != nil {
		return nil, err
	}
	orders := make([]order.Order, len(dtos))
	for i, d := range dtos {
		orders[i] = d.toDomain()
	}
	return orders, nil
}

// Create places an order. The idempotency key, when set, is sent as a
// header so retried creations are deduplicated.
func (s *OrderService) Create(ctx context.Context, req order.CreateRequest) (*order.Order, error) {
	var dto orderDTO
	err := s.c.call(ctx, request{
		method:         http.MethodPost,
		path:           "/api/orders",
		body:           newCreateOrderDTO(req),
		idempotencyKey: req.IdempotencyKey,
	}, &dto)
	if err != nil {
		return nil, err
	}
	o := dto.toDomain()
	return &o, nil
}

// GetByID fetches a single order.
func (s *OrderService) GetByID(ctx context.Context, orderID int64) (*order.Order, error) {
	var dto orderDTO
	err := s.c.call(ctx, request{
		method: http.MethodGet,
		path:   "/api/orders/" + strconv.FormatInt(orderID, 10),
	}, &dto)
	if err != nil {
		return nil, err
	}
	o := dto.toDomain()
	return &o, nil
}

// AddReview rates an order.
func (s *OrderService) AddReview(ctx context.Context, review order.Review) error {
	return s.c.call(ctx, request{
		method: http.MethodPost,
		path:   "/api/reviews",
		body: reviewDTO{
			OrderID: review.OrderID,
			Rating:  review.Rating,
			Comment: review.Comment,
		},
	}, nil)
}
