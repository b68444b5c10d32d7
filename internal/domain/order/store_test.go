package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/railmeal/internal/apperr"
	"github.com/xenking/railmeal/internal/auth"
)

// --- Mock implementations ---

type fakeAuth struct {
	id *auth.Identity
}

func (f *fakeAuth) Current() (auth.Identity, bool) {
	if f.id == nil {
		return auth.Identity{}, false
	}
	return *f.id, true
}

type mockRemote struct {
	orders    []Order
	listErr   error
	created   *Order
	createErr error
	byID      map[int64]*Order
	getErr    error

	listCalls   int
	createCalls int
	getCalls    int
	lastCreate  CreateRequest
}

func (m *mockRemote) UserOrders(_ context.Context, _ int64) ([]Order, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.orders, nil
}

func (m *mockRemote) Create(_ context.Context, req CreateRequest) (*Order, error) {
	m.createCalls++
	m.lastCreate = req
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.orders = append(m.orders, *m.created)
	return m.created, nil
}

func (m *mockRemote) GetByID(_ context.Context, id int64) (*Order, error) {
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return o, nil
}

type mockReviewer struct {
	err    error
	calls  int
	review Review
}

func (m *mockReviewer) AddReview(_ context.Context, r Review) error {
	m.calls++
	m.review = r
	return m.err
}

// --- Helpers ---

func signedIn() *fakeAuth {
	return &fakeAuth{id: &auth.Identity{UserID: 7, DisplayName: "Asha"}}
}

func testOrder(id int64) Order {
	return Order{
		ID:     id,
		UserID: 7,
		Amount: decimal.RequireFromString("262.50"),
		Status: "PLACED",
	}
}

// --- Tests ---

func TestStore_InitialState(t *testing.T) {
	s := NewStore(signedIn(), &mockRemote{}, &mockReviewer{})
	assert.Equal(t, StateUninitialized, s.State())
	assert.Empty(t, s.Orders())
}

func TestFetchOrders_Success(t *testing.T) {
	remote := &mockRemote{orders: []Order{testOrder(1), testOrder(2)}}
	s := NewStore(signedIn(), remote, &mockReviewer{})

	s.FetchOrders(context.Background())

	assert.Equal(t, StateReady, s.State())
	assert.Len(t, s.Orders(), 2)
}

func TestFetchOrders_ReplacesList(t *testing.T) {
	remote := &mockRemote{orders: []Order{testOrder(1), testOrder(2)}}
	s := NewStore(signedIn(), remote, &mockReviewer{})
	s.FetchOrders(context.Background())

	remote.orders = []Order{testOrder(3)}
	s.RefreshOrders(context.Background())

	orders := s.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, int64(3), orders[0].ID)
}

func TestFetchOrders_RemoteFailureYieldsEmpty(t *testing.T) {
	remote := &mockRemote{orders: []Order{testOrder(1)}}
	s := NewStore(signedIn(), remote, &mockReviewer{})
	s.FetchOrders(context.Background())
	require.Len(t, s.Orders(), 1)

	remote.listErr = apperr.RemoteMessage("connection refused")
	s.FetchOrders(context.Background())

	assert.Empty(t, s.Orders())
	assert.Equal(t, StateEmpty, s.State())
}

func TestLoad_ReportsCause(t *testing.T) {
	t.Run("remote failure", func(t *testing.T) {
		remote := &mockRemote{listErr: apperr.RemoteMessage("backend down")}
		s := NewStore(signedIn(), remote, &mockReviewer{})

		err := s.Load(context.Background())
		require.ErrorIs(t, err, apperr.ErrRemoteUnavailable)
		assert.Equal(t, StateEmpty, s.State())
	})

	t.Run("no identity", func(t *testing.T) {
		remote := &mockRemote{orders: []Order{testOrder(1)}}
		s := NewStore(&fakeAuth{}, remote, &mockReviewer{})

		err := s.Load(context.Background())
		require.ErrorIs(t, err, apperr.ErrUnauthenticated)
		assert.Equal(t, StateEmpty, s.State())
		assert.Zero(t, remote.listCalls)
	})
}

func TestCreateOrder_Unauthenticated(t *testing.T) {
	remote := &mockRemote{}
	s := NewStore(&fakeAuth{}, remote, &mockReviewer{})

	_, err := s.CreateOrder(context.Background(), CreateRequest{TrainID: 1})
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.Zero(t, remote.createCalls)
	assert.Zero(t, remote.listCalls)
}

func TestCreateOrder_InjectsUserAndRefetches(t *testing.T) {
	created := testOrder(10)
	remote := &mockRemote{created: &created}
	s := NewStore(signedIn(), remote, &mockReviewer{})

	got, err := s.CreateOrder(context.Background(), CreateRequest{
		UserID:  999,
		TrainID: 12951,
		Items:   []CreateItem{{FoodItemID: 1, Quantity: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10), got.ID)
	assert.Equal(t, int64(7), remote.lastCreate.UserID)
	assert.Equal(t, 1, remote.listCalls)
	assert.Equal(t, StateReady, s.State())
	require.Len(t, s.Orders(), 1)
	assert.Equal(t, int64(10), s.Orders()[0].ID)
}

func TestCreateOrder_RemoteFailure(t *testing.T) {
	remote := &mockRemote{orders: []Order{testOrder(1)}, createErr: errors.New("validation failed")}
	s := NewStore(signedIn(), remote, &mockReviewer{})
	s.FetchOrders(context.Background())

	_, err := s.CreateOrder(context.Background(), CreateRequest{TrainID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
	assert.Equal(t, 1, remote.listCalls)
	assert.Len(t, s.Orders(), 1)
}

func TestLookup_CacheHitSkipsRemote(t *testing.T) {
	remote := &mockRemote{orders: []Order{testOrder(42)}}
	s := NewStore(signedIn(), remote, &mockReviewer{})
	s.FetchOrders(context.Background())

	o := s.GetOrderByID(context.Background(), 42)
	require.NotNil(t, o)
	assert.Equal(t, int64(42), o.ID)
	assert.Zero(t, remote.getCalls)
}

func TestLookup_MissFallsBackToRemote(t *testing.T) {
	remote := &mockRemote{byID: map[int64]*Order{77: ptr(testOrder(77))}}
	s := NewStore(signedIn(), remote, &mockReviewer{})

	o, err := s.Lookup(context.Background(), 77)
	require.NoError(t, err)
	assert.Equal(t, int64(77), o.ID)
	assert.Equal(t, 1, remote.getCalls)
}

func TestLookup_NotFound(t *testing.T) {
	remote := &mockRemote{byID: map[int64]*Order{}}
	s := NewStore(signedIn(), remote, &mockReviewer{})

	_, err := s.Lookup(context.Background(), 5)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Nil(t, s.GetOrderByID(context.Background(), 5))
}

func TestGetOrderByID_RemoteFailureReturnsNil(t *testing.T) {
	remote := &mockRemote{getErr: apperr.RemoteMessage("timeout")}
	s := NewStore(signedIn(), remote, &mockReviewer{})

	assert.Nil(t, s.GetOrderByID(context.Background(), 1))
	assert.Equal(t, 1, remote.getCalls)
}

func TestRateOrder_Success(t *testing.T) {
	rated := testOrder(3)
	remote := &mockRemote{orders: []Order{testOrder(3)}}
	reviews := &mockReviewer{}
	s := NewStore(signedIn(), remote, reviews)
	s.FetchOrders(context.Background())

	rated.Review = &Review{OrderID: 3, Rating: 4, Comment: "hot and fresh"}
	remote.orders = []Order{rated}

	err := s.RateOrder(context.Background(), 3, 4, "hot and fresh")
	require.NoError(t, err)

	assert.Equal(t, Review{OrderID: 3, Rating: 4, Comment: "hot and fresh"}, reviews.review)
	assert.Equal(t, 2, remote.listCalls)
	require.Len(t, s.Orders(), 1)
	assert.True(t, s.Orders()[0].Rated())
}

func TestRateOrder_Failure(t *testing.T) {
	remote := &mockRemote{orders: []Order{testOrder(3)}}
	reviews := &mockReviewer{err: errors.New("already reviewed")}
	s := NewStore(signedIn(), remote, reviews)
	s.FetchOrders(context.Background())

	err := s.RateOrder(context.Background(), 3, 5, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already reviewed")
	assert.Equal(t, 1, remote.listCalls)
	assert.False(t, s.Orders()[0].Rated())
}

func TestRateOrder_InvalidRating(t *testing.T) {
	reviews := &mockReviewer{}
	s := NewStore(signedIn(), &mockRemote{}, reviews)

	for _, r := range []int{0, 6, -1} {
		require.ErrorIs(t, s.RateOrder(context.Background(), 1, r, ""), ErrInvalidRating)
	}
	assert.Zero(t, reviews.calls)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "empty", StateEmpty.String())
}

func ptr[T any](v T) *T { return &v }

// gatedRemote holds the order list of user 1 until release is closed.
type gatedRemote struct {
	mockRemote
	started chan struct{}
	release chan struct{}
	byUser  map[int64][]Order
}

func (g *gatedRemote) UserOrders(_ context.Context, userID int64) ([]Order, error) {
	if userID == 1 {
		close(g.started)
		<-g.release
	}
	return g.byUser[userID], nil
}

func ordersOf(userID int64, ids ...int64) []Order {
	var orders []Order
	for _, id := range ids {
		o := testOrder(id)
		o.UserID = userID
		orders = append(orders, o)
	}
	return orders
}

func TestLoad_SlowLoadAfterIdentitySwitchIsDiscarded(t *testing.T) {
	src := &fakeAuth{id: &auth.Identity{UserID: 1}}
	remote := &gatedRemote{
		started: make(chan struct{}),
		release: make(chan struct{}),
		byUser: map[int64][]Order{
			1: ordersOf(1, 100),
			2: ordersOf(2, 200),
		},
	}
	s := NewStore(src, remote, &mockReviewer{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.Load(ctx) }()
	<-remote.started

	src.id = &auth.Identity{UserID: 2}
	require.NoError(t, s.Load(ctx))

	close(remote.release)
	require.NoError(t, <-done)

	assert.Equal(t, StateReady, s.State())
	require.Len(t, s.Orders(), 1)
	assert.Equal(t, int64(200), s.Orders()[0].ID)
	assert.Nil(t, s.GetOrderByID(ctx, 100))
}

func TestReset_DiscardsInflightLoad(t *testing.T) {
	remote := &gatedRemote{
		started: make(chan struct{}),
		release: make(chan struct{}),
		byUser:  map[int64][]Order{1: ordersOf(1, 100)},
	}
	s := NewStore(&fakeAuth{id: &auth.Identity{UserID: 1}}, remote, &mockReviewer{})

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()
	<-remote.started

	s.Reset()
	close(remote.release)
	require.NoError(t, <-done)

	assert.Empty(t, s.Orders())
	assert.Equal(t, StateUninitialized, s.State())
}
