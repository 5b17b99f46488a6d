package repository

import "context"

// Tx exposes repositories bound to one database transaction.
type Tx interface {
	Orders() OrderTxRepository
	Stock() StockRepository
	Intents() PaymentIntentRepository
}

// Transactor runs fn inside a transaction, committing when fn returns nil.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
