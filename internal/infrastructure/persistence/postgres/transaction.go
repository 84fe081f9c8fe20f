package postgres

import (
	"context"

	"gorm.io/gorm"

	"storyloom-ai-api/internal/domain/repository"
)

var _ repository.Transactor = (*Transactor)(nil)

// Transactor 把 gorm 事务放进 ctx，仓储通过 conn 取用
type Transactor struct {
	db *gorm.DB
}

func NewTransactor(client *Client) *Transactor {
	return &Transactor{db: client.db}
}

// WithTransaction 嵌套调用复用外层事务
func (t *Transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, repository.TxKey{}, tx))
	})
}

func txFrom(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(repository.TxKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}

// conn 事务优先，否则使用连接池
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := txFrom(ctx); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}
