package vipstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-group-guard/internal/domain"
	"tg-group-guard/internal/infra/metrics"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS vip_users (
	user_id  TEXT PRIMARY KEY,
	position BIGSERIAL NOT NULL,
	added_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres хранит VIP в таблице vip_users. Порядок задаётся колонкой position.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.VipStore = (*Postgres)(nil)

// NewPostgres создаёт хранилище поверх пула.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureSchema создаёт таблицу, если её нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, schemaSQL)
	metrics.ObserveNetworkRequest("postgres", "ensure_schema", "vip_users", start, err)
	if err != nil {
		return fmt.Errorf("создание таблицы vip_users: %w", err)
	}
	return nil
}

// Load возвращает идентификаторы в порядке добавления.
func (p *Postgres) Load(ctx context.Context) ([]string, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT user_id FROM vip_users ORDER BY position`)
	metrics.ObserveNetworkRequest("postgres", "vip_select", "vip_users", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка VIP: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("чтение VIP: %w", err)
	}
	return ids, nil
}

// Save дописывает отсутствующие идентификаторы в одной транзакции. Удалений нет: список только растёт.
func (p *Postgres) Save(ctx context.Context, ids []string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "vip_users", start, err)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(`INSERT INTO vip_users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, id)
	}
	start = time.Now()
	err = tx.SendBatch(ctx, batch).Close()
	metrics.ObserveNetworkRequest("postgres", "vip_insert", "vip_users", start, err)
	if err != nil {
		return fmt.Errorf("запись VIP: %w", err)
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "vip_users", start, err)
	if err != nil {
		return fmt.Errorf("фиксация транзакции: %w", err)
	}
	return nil
}
