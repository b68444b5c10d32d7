package payment

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/railmeal/internal/apperr"
)

type mockGateway struct {
	mu    sync.Mutex
	reqs  []OrderRequest
	err   error
	empty bool
}

func (m *mockGateway) CreateOrder(_ context.Context, req OrderRequest) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	if m.err != nil {
		return nil, m.err
	}
	if m.empty {
		return &Intent{}, nil
	}
	return &Intent{
		GatewayOrderID: "order_test1",
		Amount:         req.Amount,
		Currency:       req.Currency,
		Receipt:        req.Receipt,
		Status:         "created",
	}, nil
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func newService(gw Gateway, secrets ...string) *IntentService {
	return NewIntentService(gw, "INR", NewReceiptIssuer(fixedClock(1700000000000)), NewRedactor(secrets...))
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"250", 25000},
		{"250.5", 25050},
		{"0.01", 1},
		{"99.994", 9999},
		{"99.995", 10000},
		{"262.5", 26250},
		{"1234.567", 123457},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToMinorUnits(decimal.RequireFromString(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToMinorUnits_Invalid(t *testing.T) {
	for _, in := range []string{
		"0", "-1", "-0.5", "0.004",
		"92233720368547758.08",
		"184467440737095516.17",
		"1e30",
	} {
		minor, err := ToMinorUnits(decimal.RequireFromString(in))
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
		assert.Zero(t, minor, in)
	}
}

func TestToMinorUnits_Largest(t *testing.T) {
	minor, err := ToMinorUnits(decimal.RequireFromString("92233720368547758.07"))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), minor)
}

func TestFromMinorUnits(t *testing.T) {
	assert.True(t, decimal.RequireFromString("250.5").Equal(FromMinorUnits(25050)))
}

func TestIntentService_Create(t *testing.T) {
	gw := &mockGateway{}
	svc := newService(gw)

	intent, err := svc.Create(context.Background(), decimal.RequireFromString("250.5"))
	require.NoError(t, err)

	assert.Equal(t, "order_test1", intent.GatewayOrderID)
	assert.Equal(t, int64(25050), intent.Amount)
	assert.Equal(t, "INR", intent.Currency)
	assert.Equal(t, "receipt_1700000000000", intent.Receipt)

	require.Len(t, gw.reqs, 1)
	assert.Equal(t, OrderRequest{Amount: 25050, Currency: "INR", Receipt: "receipt_1700000000000"}, gw.reqs[0])
}

func TestIntentService_Deterministic(t *testing.T) {
	gw := &mockGateway{}
	svc := newService(gw)

	for range 3 {
		_, err := svc.Create(context.Background(), decimal.RequireFromString("250.5"))
		require.NoError(t, err)
	}
	require.Len(t, gw.reqs, 3)
	for _, req := range gw.reqs {
		assert.Equal(t, int64(25050), req.Amount)
	}
}

func TestIntentService_InvalidAmountSkipsGateway(t *testing.T) {
	gw := &mockGateway{}
	svc := newService(gw)

	for _, in := range []string{"0", "184467440737095516.17"} {
		_, err := svc.Create(context.Background(), decimal.RequireFromString(in))
		require.ErrorIs(t, err, ErrInvalidAmount, in)
		assert.True(t, IsInvalidAmount(err), in)
	}
	assert.Empty(t, gw.reqs)
}

func TestIntentService_GatewayFailure(t *testing.T) {
	gw := &mockGateway{err: errors.New("Authentication failed for key s3cr3t-key (Basic cnpwX3Rlc3Q6czNjcjN0LWtleQ==)")}
	svc := newService(gw, "s3cr3t-key")

	_, err := svc.Create(context.Background(), decimal.NewFromInt(100))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrRemoteUnavailable)
	assert.NotContains(t, err.Error(), "s3cr3t-key")
	assert.NotContains(t, err.Error(), "cnpwX3Rlc3Q6czNjcjN0LWtleQ==")
	assert.Contains(t, err.Error(), "Authentication failed")
}

func TestIntentService_MissingOrderID(t *testing.T) {
	svc := newService(&mockGateway{empty: true})

	_, err := svc.Create(context.Background(), decimal.NewFromInt(100))
	assert.ErrorIs(t, err, apperr.ErrRemoteUnavailable)
}

func TestReceiptIssuer_SameMillisecond(t *testing.T) {
	issuer := NewReceiptIssuer(fixedClock(42))

	assert.Equal(t, "receipt_42", issuer.Next())
	assert.Equal(t, "receipt_42_1", issuer.Next())
	assert.Equal(t, "receipt_42_2", issuer.Next())
}

func TestReceiptIssuer_Concurrent(t *testing.T) {
	issuer := NewReceiptIssuer(fixedClock(7))

	const n = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{}, n)
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := issuer.Next()
			mu.Lock()
			seen[r] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for r := range seen {
		assert.True(t, strings.HasPrefix(r, "receipt_7"), r)
	}
}

func TestRedactor(t *testing.T) {
	r := NewRedactor("topsecret", "")

	assert.Equal(t, "key [REDACTED] rejected", r.Redact("key topsecret rejected"))
	assert.Equal(t, "auth [REDACTED]", r.Redact("auth Bearer abcdefghijklmnopqrstuvwxyz"))
	assert.Equal(t, "plain message", r.Redact("plain message"))

	var nilRedactor *Redactor
	assert.Equal(t, "[REDACTED]", nilRedactor.Redact("Basic dXNlcjpwYXNzd29yZA=="))
}
