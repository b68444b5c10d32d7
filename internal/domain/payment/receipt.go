package payment

import (
	"strconv"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	receiptPrefix = "receipt_"
	// receiptWindow bounds how many receipts the filter tracks before it is
	// reset. Receipts are millisecond-based, so only recent ones can collide.
	receiptWindow = 100_000
	receiptFPR    = 0.0001
)

// ReceiptIssuer hands out timestamp-derived receipt ids. Requests landing in
// the same millisecond are told apart with a numeric suffix.
type ReceiptIssuer struct {
	now func() time.Time

	mu     sync.Mutex
	filter *bloom.BloomFilter
	issued uint
}

// NewReceiptIssuer returns a ReceiptIssuer using the given clock.
func NewReceiptIssuer(now func() time.Time) *ReceiptIssuer {
	if now == nil {
		now = time.Now
	}
	return &ReceiptIssuer{
		now:    now,
		filter: bloom.NewWithEstimates(receiptWindow, receiptFPR),
	}
}

// Next returns a receipt id not issued recently by this issuer.
func (r *ReceiptIssuer) Next() string {
	base := receiptPrefix + strconv.FormatInt(r.now().UnixMilli(), 10)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.issued >= receiptWindow {
		r.filter.ClearAll()
		r.issued = 0
	}

	receipt := base
	for n := 1; r.filter.TestOrAddString(receipt); n++ {
		receipt = base + "_" + strconv.Itoa(n)
	}
	r.issued++
	return receipt
}
