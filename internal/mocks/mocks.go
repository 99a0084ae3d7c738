package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"thriftstore/internal/lock"
	"thriftstore/internal/payment"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.Order, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Order), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, data interface{}) error {
	args := m.Called(ctx, routingKey, data)
	return args.Error(0)
}

// Transactor runs the unit of work inline, reporting Tx as its transactional
// mode.
type Transactor struct {
	Tx bool
}

func (t Transactor) Transactional() bool { return t.Tx }

func (t Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Lock is an in-process Locker. Err, when set, is returned by every Acquire.
type Lock struct {
	mu   sync.Mutex
	held map[string]bool

	Err error
}

func NewLock() *Lock {
	return &Lock{held: map[string]bool{}}
}

func (l *Lock) Acquire(ctx context.Context, name string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Err != nil {
		return nil, l.Err
	}
	if l.held[name] {
		return nil, lock.ErrLocked
	}
	l.held[name] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, name)
	}, nil
}

// Hold takes name without returning a release func.
func (l *Lock) Hold(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[name] = true
}
