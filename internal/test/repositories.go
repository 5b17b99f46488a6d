package test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
	"github.com/polkiloo/ordercheckout/internal/domain/model"
	"github.com/polkiloo/ordercheckout/internal/domain/repository"
)

// UserRepositoryStub stores users in-memory for tests.
type UserRepositoryStub struct {
	Users map[string]*model.User
	ByID  map[int64]*model.User
	Next  int64
	Err   error
}

// NewUserRepositoryStub constructs stub repository with initialized maps.
func NewUserRepositoryStub() *UserRepositoryStub {
	return &UserRepositoryStub{
		Users: make(map[string]*model.User),
		ByID:  make(map[int64]*model.User),
		Next:  1,
	}
}

// Create registers user unless already exists or stub has explicit error.
func (s *UserRepositoryStub) Create(ctx context.Context, login, passwordHash string) (*model.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if _, exists := s.Users[login]; exists {
		return nil, domainErrors.ErrAlreadyExists
	}
	if s.Next == 0 {
		s.Next = 1
	}
	user := &model.User{ID: s.Next, Login: login, PasswordHash: passwordHash}
	s.Next++
	s.Users[login] = user
	s.ByID[user.ID] = user
	return user, nil
}

// GetByLogin fetches user by login or returns not found.
func (s *UserRepositoryStub) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if user, ok := s.Users[login]; ok {
		return user, nil
	}
	return nil, domainErrors.ErrNotFound
}

// GetByID fetches user by identifier or returns not found.
func (s *UserRepositoryStub) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if user, ok := s.ByID[id]; ok {
		return user, nil
	}
	return nil, domainErrors.ErrNotFound
}

// MemoryStore is an in-memory repository.Factory. A transaction holds the store
// mutex for its whole duration and restores a snapshot when fn fails.
type MemoryStore struct {
	mu sync.Mutex

	users      *UserRepositoryStub
	variations map[uuid.UUID]model.ProductVariation
	orders     map[uuid.UUID]*model.Order
	intents    map[string]model.PaymentIntentRecord
	sweepAfter map[uuid.UUID]time.Time

	// Fail makes the named repository method return the error.
	Fail map[string]error

	Commits   int
	Rollbacks int
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      NewUserRepositoryStub(),
		variations: make(map[uuid.UUID]model.ProductVariation),
		orders:     make(map[uuid.UUID]*model.Order),
		intents:    make(map[string]model.PaymentIntentRecord),
		sweepAfter: make(map[uuid.UUID]time.Time),
		Fail:       make(map[string]error),
	}
}

var _ repository.Factory = (*MemoryStore)(nil)

func (s *MemoryStore) Users() repository.UserRepository      { return s.users }
func (s *MemoryStore) Orders() repository.OrderRepository    { return memOrderReader{s} }
func (s *MemoryStore) Catalog() repository.CatalogRepository { return memCatalog{s} }

// WithinTransaction runs fn with exclusive access to the store.
func (s *MemoryStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("Begin"); err != nil {
		return err
	}
	saved := s.snapshot()
	if err := fn(ctx, memTx{s}); err != nil {
		s.variations, s.orders, s.intents, s.sweepAfter = saved.variations, saved.orders, saved.intents, saved.sweepAfter
		s.Rollbacks++
		return err
	}
	s.Commits++
	return nil
}

// AddVariation seeds a product variation.
func (s *MemoryStore) AddVariation(v model.ProductVariation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variations[v.ID] = v
}

// AddOrder seeds an order and the intent it references.
func (s *MemoryStore) AddOrder(order *model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = cloneOrder(order)
	if order.PaymentIntentID != "" {
		s.intents[order.PaymentIntentID] = model.PaymentIntentRecord{
			ID:      order.PaymentIntentID,
			OrderID: order.ID,
			Attempt: order.PaymentAttempt,
		}
	}
}

// Order returns a copy of the stored order or nil.
func (s *MemoryStore) Order(id uuid.UUID) *model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		return cloneOrder(o)
	}
	return nil
}

// AllOrders returns copies of every stored order.
func (s *MemoryStore) AllOrders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *cloneOrder(o))
	}
	return out
}

// Intent returns the stored intent record.
func (s *MemoryStore) Intent(id string) (model.PaymentIntentRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.intents[id]
	return rec, ok
}

// SweepAfter reports until when the order's expiry sweep is deferred.
func (s *MemoryStore) SweepAfter(id uuid.UUID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.sweepAfter[id]
	return t, ok
}

// Available returns the stock of a variation.
func (s *MemoryStore) Available(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.variations[id].Available
}

func (s *MemoryStore) fail(op string) error {
	return s.Fail[op]
}

type storeState struct {
	variations map[uuid.UUID]model.ProductVariation
	orders     map[uuid.UUID]*model.Order
	intents    map[string]model.PaymentIntentRecord
	sweepAfter map[uuid.UUID]time.Time
}

func (s *MemoryStore) snapshot() storeState {
	st := storeState{
		variations: make(map[uuid.UUID]model.ProductVariation, len(s.variations)),
		orders:     make(map[uuid.UUID]*model.Order, len(s.orders)),
		intents:    make(map[string]model.PaymentIntentRecord, len(s.intents)),
		sweepAfter: make(map[uuid.UUID]time.Time, len(s.sweepAfter)),
	}
	for k, v := range s.variations {
		st.variations[k] = v
	}
	for k, v := range s.orders {
		st.orders[k] = cloneOrder(v)
	}
	for k, v := range s.intents {
		st.intents[k] = v
	}
	for k, v := range s.sweepAfter {
		st.sweepAfter[k] = v
	}
	return st
}

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.Items = append([]model.OrderItem(nil), o.Items...)
	return &c
}

type memCatalog struct{ s *MemoryStore }

func (c memCatalog) Snapshot(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.ProductVariation, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.s.fail("Snapshot"); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]model.ProductVariation, len(ids))
	for _, id := range ids {
		if v, ok := c.s.variations[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type memOrderReader struct{ s *MemoryStore }

func (r memOrderReader) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("GetByID"); err != nil {
		return nil, err
	}
	o, ok := r.s.orders[id]
	if !ok {
		return nil, &domainErrors.OrderNotFoundError{OrderID: id}
	}
	return cloneOrder(o), nil
}

func (r memOrderReader) ListByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("ListByUser"); err != nil {
		return nil, err
	}
	var out []model.Order
	for _, o := range r.s.orders {
		if o.UserID == userID && !o.IsDeleted {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memOrderReader) SelectExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("SelectExpired"); err != nil {
		return nil, err
	}
	var due []*model.Order
	for _, o := range r.s.orders {
		waiting := o.Status == model.OrderStatusAwaitingPayment || o.Status == model.OrderStatusPaymentFailed
		deferred, ok := r.s.sweepAfter[o.ID]
		if ok && deferred.After(now) {
			continue
		}
		if waiting && !o.ExpiresAt.After(now) {
			due = append(due, o)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	ids := make([]uuid.UUID, 0, len(due))
	for _, o := range due {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func (r memOrderReader) DeferSweep(ctx context.Context, id uuid.UUID, until time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("DeferSweep"); err != nil {
		return err
	}
	if _, ok := r.s.orders[id]; !ok {
		return &domainErrors.OrderNotFoundError{OrderID: id}
	}
	r.s.sweepAfter[id] = until
	return nil
}

func (r memOrderReader) SoftDelete(ctx context.Context, id uuid.UUID, userID int64) (model.Outcome, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("SoftDelete"); err != nil {
		return model.OutcomeUnchanged, err
	}
	o, ok := r.s.orders[id]
	if !ok || o.UserID != userID || o.IsDeleted {
		return model.OutcomeNotFound, nil
	}
	if !o.Status.IsTerminal() {
		return model.OutcomeConflict, nil
	}
	o.IsDeleted = true
	return model.OutcomeOK, nil
}

type memTx struct{ s *MemoryStore }

func (t memTx) Orders() repository.OrderTxRepository        { return memOrders(t) }
func (t memTx) Stock() repository.StockRepository           { return memStock(t) }
func (t memTx) Intents() repository.PaymentIntentRepository { return memIntents(t) }

type memOrders struct{ s *MemoryStore }

func (r memOrders) Insert(ctx context.Context, order *model.Order) error {
	if err := r.s.fail("Insert"); err != nil {
		return err
	}
	if _, exists := r.s.orders[order.ID]; exists {
		return domainErrors.ErrAlreadyExists
	}
	r.s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r memOrders) Lock(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	if err := r.s.fail("Lock"); err != nil {
		return nil, err
	}
	o, ok := r.s.orders[id]
	if !ok {
		return nil, &domainErrors.OrderNotFoundError{OrderID: id}
	}
	return cloneOrder(o), nil
}

func (r memOrders) LockByIntent(ctx context.Context, intentID string) (*model.Order, error) {
	if err := r.s.fail("LockByIntent"); err != nil {
		return nil, err
	}
	rec, ok := r.s.intents[intentID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return r.Lock(ctx, rec.OrderID)
}

func (r memOrders) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, expected ...model.OrderStatus) (bool, error) {
	if err := r.s.fail("UpdateStatus"); err != nil {
		return false, err
	}
	o, ok := r.s.orders[id]
	if !ok {
		return false, nil
	}
	for _, e := range expected {
		if o.Status == e {
			o.Status = status
			return true, nil
		}
	}
	return false, nil
}

func (r memOrders) SetStockReserved(ctx context.Context, id uuid.UUID, reserved bool) (bool, error) {
	if err := r.s.fail("SetStockReserved"); err != nil {
		return false, err
	}
	o, ok := r.s.orders[id]
	if !ok || o.IsStockReserved == reserved {
		return false, nil
	}
	o.IsStockReserved = reserved
	return true, nil
}

func (r memOrders) SetPayment(ctx context.Context, id uuid.UUID, intent model.PaymentIntent, attempt int) error {
	if err := r.s.fail("SetPayment"); err != nil {
		return err
	}
	o, ok := r.s.orders[id]
	if !ok {
		return &domainErrors.OrderNotFoundError{OrderID: id}
	}
	o.PaymentIntentID = intent.ID
	o.ClientSecret = intent.ClientSecret
	o.PaymentURL = intent.PaymentURL
	o.PaymentAttempt = attempt
	return nil
}

func (r memOrders) SetExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	if err := r.s.fail("SetExpiry"); err != nil {
		return err
	}
	o, ok := r.s.orders[id]
	if !ok {
		return &domainErrors.OrderNotFoundError{OrderID: id}
	}
	o.ExpiresAt = expiresAt
	delete(r.s.sweepAfter, id)
	return nil
}

type memStock struct{ s *MemoryStore }

func (r memStock) Decrement(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	if err := r.s.fail("Decrement"); err != nil {
		return false, err
	}
	v, ok := r.s.variations[id]
	if !ok || v.Available < qty {
		return false, nil
	}
	v.Available -= qty
	r.s.variations[id] = v
	return true, nil
}

func (r memStock) Increment(ctx context.Context, id uuid.UUID, qty int) error {
	if err := r.s.fail("Increment"); err != nil {
		return err
	}
	v, ok := r.s.variations[id]
	if !ok {
		return domainErrors.ErrProductNotFound
	}
	v.Available += qty
	r.s.variations[id] = v
	return nil
}

func (r memStock) Available(ctx context.Context, id uuid.UUID) (int, error) {
	if err := r.s.fail("Available"); err != nil {
		return 0, err
	}
	return r.s.variations[id].Available, nil
}

type memIntents struct{ s *MemoryStore }

func (r memIntents) Record(ctx context.Context, record model.PaymentIntentRecord) error {
	if err := r.s.fail("Record"); err != nil {
		return err
	}
	if _, exists := r.s.intents[record.ID]; !exists {
		r.s.intents[record.ID] = record
	}
	return nil
}

func (r memIntents) SetStatus(ctx context.Context, intentID string, status model.IntentStatus) error {
	if err := r.s.fail("SetIntentStatus"); err != nil {
		return err
	}
	if rec, ok := r.s.intents[intentID]; ok && !rec.Status.IsTerminal() {
		rec.Status = status
		r.s.intents[intentID] = rec
	}
	return nil
}

func (r memIntents) Supersede(ctx context.Context, intentID string, at time.Time) error {
	if err := r.s.fail("Supersede"); err != nil {
		return err
	}
	if rec, ok := r.s.intents[intentID]; ok && rec.SupersededAt == nil {
		rec.SupersededAt = &at
		r.s.intents[intentID] = rec
	}
	return nil
}
