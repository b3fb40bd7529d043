// Package postgres is the PostgreSQL persistence collaborator. Every
// read-check-write runs in a RepeatableRead transaction that locks the
// affected rows with SELECT ... FOR UPDATE, so two actions on the same
// resource never interleave.
package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synergy-framework/blogguard/analytics"
)

//go:embed schema.sql
var schema string

// Open creates a connection pool and verifies it with a ping.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return pool, nil
}

// Migrate creates the tables when they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Store groups the content and role stores over one pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Posts returns the post store.
func (s *Store) Posts() *PostStore { return &PostStore{pool: s.pool} }

// Comments returns the comment store.
func (s *Store) Comments() *CommentStore { return &CommentStore{pool: s.pool} }

// Terms returns the category and tag store.
func (s *Store) Terms() *TermStore { return &TermStore{pool: s.pool} }

// Roles returns the role assignment store.
func (s *Store) Roles() *RoleStore { return &RoleStore{pool: s.pool} }

const inventorySQL = `
SELECT
    (SELECT count(*) FROM users),
    (SELECT count(*) FROM posts),
    (SELECT count(*) FROM posts WHERE state = 'published'),
    (SELECT count(*) FROM comments)`

// Inventory counts stored entities for the site summary.
func (s *Store) Inventory(ctx context.Context) (analytics.Inventory, error) {
	var inv analytics.Inventory
	err := s.pool.QueryRow(ctx, inventorySQL).Scan(&inv.Users, &inv.Posts, &inv.PublishedPosts, &inv.Comments)
	if err != nil {
		return analytics.Inventory{}, fmt.Errorf("postgres: inventory: %w", err)
	}
	return inv, nil
}
