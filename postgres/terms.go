package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/taxonomy"
)

const termColumns = `id, kind, name, slug, description, created_at, updated_at`

// TermStore implements taxonomy.Store. Uniqueness of names and slugs within
// a kind is left to the terms table indexes.
type TermStore struct {
	pool *pgxpool.Pool
}

func scanTerm(row scanner) (blogguard.Term, error) {
	var (
		t    blogguard.Term
		kind string
	)
	if err := row.Scan(&t.ID, &kind, &t.Name, &t.Slug, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return blogguard.Term{}, err
	}
	if err := t.Kind.UnmarshalText([]byte(kind)); err != nil {
		return blogguard.Term{}, err
	}
	return t, nil
}

func (s *TermStore) Create(ctx context.Context, t blogguard.Term) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO terms (`+termColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Kind.String(), t.Name, t.Slug, t.Description, t.CreatedAt, t.UpdatedAt)
	if isUniqueViolation(err) {
		return blogguard.ErrTermExists
	}
	if err != nil {
		return fmt.Errorf("postgres: create term: %w", err)
	}
	return nil
}

func (s *TermStore) Get(ctx context.Context, id string) (blogguard.Term, error) {
	t, err := scanTerm(s.pool.QueryRow(ctx, `SELECT `+termColumns+` FROM terms WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return blogguard.Term{}, blogguard.ErrTermNotFound
	}
	if err != nil {
		return blogguard.Term{}, fmt.Errorf("postgres: get term: %w", err)
	}
	return t, nil
}

func (s *TermStore) List(ctx context.Context, kind blogguard.TermKind, offset, limit int) ([]blogguard.Term, error) {
	args := []any{kind.String()}
	query := `SELECT ` + termColumns + ` FROM terms WHERE kind = $1 ORDER BY name, id`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return s.query(ctx, "list terms", query, args...)
}

func (s *TermStore) query(ctx context.Context, op, query string, args ...any) ([]blogguard.Term, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	out := make([]blogguard.Term, 0)
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan term: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	return out, nil
}

func lockTerm(ctx context.Context, tx pgx.Tx, id string) (blogguard.Term, error) {
	t, err := scanTerm(tx.QueryRow(ctx, `SELECT `+termColumns+` FROM terms WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return blogguard.Term{}, blogguard.ErrTermNotFound
	}
	if err != nil {
		return blogguard.Term{}, fmt.Errorf("postgres: lock term: %w", err)
	}
	return t, nil
}

func (s *TermStore) Update(ctx context.Context, id string, fn func(blogguard.Term) (blogguard.Term, error)) (blogguard.Term, error) {
	var out blogguard.Term
	err := WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		cur, err := lockTerm(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		next.ID = id
		next.Kind = cur.Kind
		_, err = tx.Exec(ctx, `
UPDATE terms SET name = $2, slug = $3, description = $4, updated_at = $5
WHERE id = $1`,
			id, next.Name, next.Slug, next.Description, next.UpdatedAt)
		if isUniqueViolation(err) {
			return blogguard.ErrTermExists
		}
		if err != nil {
			return fmt.Errorf("postgres: update term: %w", err)
		}
		out = next
		return nil
	})
	if err != nil {
		return blogguard.Term{}, err
	}
	return out, nil
}

// Delete clears the category from its posts in the same transaction; tag
// links go through the foreign key cascade.
func (s *TermStore) Delete(ctx context.Context, id string, check func(blogguard.Term) error) error {
	return WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		cur, err := lockTerm(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := check(cur); err != nil {
			return err
		}
		if cur.Kind == blogguard.TermCategory {
			if _, err := tx.Exec(ctx, `UPDATE posts SET category_id = '' WHERE category_id = $1`, id); err != nil {
				return fmt.Errorf("postgres: detach category: %w", err)
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM terms WHERE id = $1`, id); err != nil {
			return fmt.Errorf("postgres: delete term: %w", err)
		}
		return nil
	})
}

// linkable holds the post and the tag until tx ends so neither is deleted
// under the link.
func linkable(ctx context.Context, tx pgx.Tx, postID, tagID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT true FROM posts WHERE id = $1 FOR SHARE`, postID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return blogguard.ErrPostNotFound
		}
		return fmt.Errorf("postgres: lock post: %w", err)
	}
	var kind string
	if err := tx.QueryRow(ctx, `SELECT kind FROM terms WHERE id = $1 FOR SHARE`, tagID).Scan(&kind); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return blogguard.ErrTermNotFound
		}
		return fmt.Errorf("postgres: lock tag: %w", err)
	}
	if kind != blogguard.TermTag.String() {
		return blogguard.ErrTermNotFound
	}
	return nil
}

func (s *TermStore) Tag(ctx context.Context, postID, tagID string) (bool, error) {
	var added bool
	err := WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := linkable(ctx, tx, postID, tagID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
INSERT INTO post_terms (post_id, term_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING`, postID, tagID)
		if err != nil {
			return fmt.Errorf("postgres: tag post: %w", err)
		}
		added = tag.RowsAffected() == 1
		return nil
	})
	return added, err
}

func (s *TermStore) Untag(ctx context.Context, postID, tagID string) (bool, error) {
	var removed bool
	err := WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := linkable(ctx, tx, postID, tagID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM post_terms WHERE post_id = $1 AND term_id = $2`, postID, tagID)
		if err != nil {
			return fmt.Errorf("postgres: untag post: %w", err)
		}
		removed = tag.RowsAffected() == 1
		return nil
	})
	return removed, err
}

func (s *TermStore) TagsOf(ctx context.Context, postID string) ([]blogguard.Term, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("postgres: tags of post: %w", err)
	}
	if !exists {
		return nil, blogguard.ErrPostNotFound
	}
	return s.query(ctx, "tags of post", `
SELECT t.id, t.kind, t.name, t.slug, t.description, t.created_at, t.updated_at
FROM terms t JOIN post_terms pt ON pt.term_id = t.id
WHERE pt.post_id = $1
ORDER BY t.name, t.id`, postID)
}

var _ taxonomy.Store = (*TermStore)(nil)
