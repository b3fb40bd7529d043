package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/post"
)

const postColumns = `id, author_id, category_id, slug, title, content, state, created_at, updated_at, published_at`

// PostStore implements post.Store.
type PostStore struct {
	pool *pgxpool.Pool
}

func scanPost(row scanner) (blogguard.Post, error) {
	var (
		p     blogguard.Post
		state string
	)
	err := row.Scan(&p.ID, &p.AuthorID, &p.CategoryID, &p.Slug, &p.Title, &p.Content,
		&state, &p.CreatedAt, &p.UpdatedAt, &p.PublishedAt)
	if err != nil {
		return blogguard.Post{}, err
	}
	if err := p.State.UnmarshalText([]byte(state)); err != nil {
		return blogguard.Post{}, err
	}
	return p, nil
}

func (s *PostStore) Create(ctx context.Context, p blogguard.Post) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO posts (`+postColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.AuthorID, p.CategoryID, p.Slug, p.Title, p.Content,
		p.State.String(), p.CreatedAt, p.UpdatedAt, p.PublishedAt)
	if err != nil {
		return fmt.Errorf("postgres: create post: %w", err)
	}
	return nil
}

func (s *PostStore) Get(ctx context.Context, id string) (blogguard.Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return blogguard.Post{}, blogguard.ErrPostNotFound
	}
	if err != nil {
		return blogguard.Post{}, fmt.Errorf("postgres: get post: %w", err)
	}
	return p, nil
}

func (s *PostStore) List(ctx context.Context, filter post.Filter) ([]blogguard.Post, error) {
	var (
		where []string
		args  []any
	)
	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		where = append(where, fmt.Sprintf("author_id = $%d", len(args)))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.TagID != "" {
		args = append(args, filter.TagID)
		where = append(where, fmt.Sprintf("EXISTS (SELECT 1 FROM post_terms pt WHERE pt.post_id = posts.id AND pt.term_id = $%d)", len(args)))
	}
	if filter.State != nil {
		args = append(args, filter.State.String())
		where = append(where, fmt.Sprintf("state = $%d", len(args)))
	}

	query := `SELECT ` + postColumns + ` FROM posts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list posts: %w", err)
	}
	defer rows.Close()

	out := make([]blogguard.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan post: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list posts: %w", err)
	}
	return out, nil
}

// lockPost reads the post and holds its row lock until tx ends.
func lockPost(ctx context.Context, tx pgx.Tx, id string) (blogguard.Post, error) {
	p, err := scanPost(tx.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return blogguard.Post{}, blogguard.ErrPostNotFound
	}
	if err != nil {
		return blogguard.Post{}, fmt.Errorf("postgres: lock post: %w", err)
	}
	return p, nil
}

func (s *PostStore) Update(ctx context.Context, id string, fn func(blogguard.Post) (blogguard.Post, error)) (blogguard.Post, error) {
	var out blogguard.Post
	err := WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		cur, err := lockPost(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		next.ID = id
		_, err = tx.Exec(ctx, `
UPDATE posts
SET author_id = $2, category_id = $3, slug = $4, title = $5, content = $6,
    state = $7, updated_at = $8, published_at = $9
WHERE id = $1`,
			id, next.AuthorID, next.CategoryID, next.Slug, next.Title, next.Content,
			next.State.String(), next.UpdatedAt, next.PublishedAt)
		if err != nil {
			return fmt.Errorf("postgres: update post: %w", err)
		}
		out = next
		return nil
	})
	if err != nil {
		return blogguard.Post{}, err
	}
	return out, nil
}

// Delete removes the post; its comments and tag links go with it through the
// foreign key cascade.
func (s *PostStore) Delete(ctx context.Context, id string, check func(blogguard.Post) error) error {
	return WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		cur, err := lockPost(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := check(cur); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
			return fmt.Errorf("postgres: delete post: %w", err)
		}
		return nil
	})
}

var _ post.Store = (*PostStore)(nil)
