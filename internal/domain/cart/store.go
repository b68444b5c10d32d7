package cart

import (
	"slices"
	"sync"

	"github.com/shopspring/decimal"
)

// Store is the in-memory cart of one session. All operations are synchronous;
// subscribers are notified after every mutation with the resulting snapshot.
type Store struct {
	mu      sync.RWMutex
	lines   []Line
	info    OrderInfo
	version uint64

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int

	// pubMu orders deliveries; published is the last delivered version.
	pubMu     sync.Mutex
	published uint64
}

// NewStore returns an empty cart with default order info.
func NewStore() *Store {
	return &Store{subs: make(map[int]func(Snapshot))}
}

// AddItem increments the quantity of an existing line with the same id, or
// appends a new line with quantity 1.
func (s *Store) AddItem(item Item) {
	s.mu.Lock()
	if i := s.indexOf(item.ID); i >= 0 {
		s.lines[i].Quantity++
	} else {
		s.lines = append(s.lines, Line{
			ID:           item.ID,
			Name:         item.Name,
			Price:        item.Price,
			RestaurantID: item.RestaurantID,
			Quantity:     1,
		})
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// RemoveItem decrements the line with the given id, deleting it when its
// quantity reaches zero. Unknown ids are ignored.
func (s *Store) RemoveItem(itemID int64) {
	s.mu.Lock()
	i := s.indexOf(itemID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	if s.lines[i].Quantity <= 1 {
		s.lines = slices.Delete(s.lines, i, i+1)
	} else {
		s.lines[i].Quantity--
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// Clear empties the cart and resets the order info in one step.
func (s *Store) Clear() {
	s.mu.Lock()
	s.lines = nil
	s.info = OrderInfo{}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// SetOrderInfo merges the non-nil fields of patch into the order info.
func (s *Store) SetOrderInfo(patch OrderInfoPatch) {
	s.mu.Lock()
	patch.apply(&s.info)
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// Total returns the sum of price × quantity over all lines.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalOf(s.lines)
}

// Lines returns a copy of the current lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lines)
}

// Info returns a copy of the current order info.
func (s *Store) Info() OrderInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.clone()
}

// Snapshot returns lines, info and total read together.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every mutation. The
// returned function removes the subscription. Deliveries are serialized and
// arrive in version order; when mutations race, a snapshot older than one
// already delivered is skipped. fn must not mutate the store.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) indexOf(id int64) int {
	return slices.IndexFunc(s.lines, func(l Line) bool { return l.ID == id })
}

// commitLocked bumps the version and captures the new state. Caller holds mu.
func (s *Store) commitLocked() Snapshot {
	s.version++
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Lines:   slices.Clone(s.lines),
		Info:    s.info.clone(),
		Total:   totalOf(s.lines),
		Version: s.version,
	}
}

func (s *Store) publish(snap Snapshot) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if snap.Version <= s.published {
		return
	}
	s.published = snap.Version

	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func totalOf(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
