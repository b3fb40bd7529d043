package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/comment"
)

const commentColumns = `id, post_id, COALESCE(parent_id, ''), author_id, content, created_at, updated_at`

// CommentStore implements comment.Store.
type CommentStore struct {
	pool *pgxpool.Pool
}

func scanComment(row scanner) (blogguard.Comment, error) {
	var c blogguard.Comment
	err := row.Scan(&c.ID, &c.PostID, &c.ParentID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func collectComments(rows pgx.Rows) ([]blogguard.Comment, error) {
	defer rows.Close()
	out := make([]blogguard.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create share-locks the post, hands it to fn and inserts what fn returns
// in the same transaction. Publish and unpublish take the row exclusively,
// so the state fn saw is the state the comment is committed under.
func (s *CommentStore) Create(ctx context.Context, postID string, fn func(blogguard.Post) (blogguard.Comment, error)) (blogguard.Comment, error) {
	var out blogguard.Comment
	err := WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		target, err := scanPost(tx.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1 FOR SHARE`, postID))
		if errors.Is(err, pgx.ErrNoRows) {
			return blogguard.ErrPostNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: lock post: %w", err)
		}

		c, err := fn(target)
		if err != nil {
			return err
		}
		c.PostID = target.ID

		if c.ParentID != "" {
			var one int
			err = tx.QueryRow(ctx, `SELECT 1 FROM comments WHERE id = $1 FOR SHARE`, c.ParentID).Scan(&one)
			if errors.Is(err, pgx.ErrNoRows) {
				return blogguard.ErrCommentNotFound
			}
			if err != nil {
				return fmt.Errorf("postgres: lock parent: %w", err)
			}
		}

		_, err = tx.Exec(ctx, `
INSERT INTO comments (id, post_id, parent_id, author_id, content, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID, c.PostID, nullable(c.ParentID), c.AuthorID, c.Content, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("postgres: create comment: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return blogguard.Comment{}, err
	}
	return out, nil
}

func (s *CommentStore) Get(ctx context.Context, id string) (blogguard.Comment, error) {
	c, err := scanComment(s.pool.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return blogguard.Comment{}, blogguard.ErrCommentNotFound
	}
	if err != nil {
		return blogguard.Comment{}, fmt.Errorf("postgres: get comment: %w", err)
	}
	return c, nil
}

func (s *CommentStore) ListByPost(ctx context.Context, postID string) ([]blogguard.Comment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+commentColumns+` FROM comments WHERE post_id = $1 ORDER BY created_at, id`, postID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list comments: %w", err)
	}
	out, err := collectComments(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list comments: %w", err)
	}
	return out, nil
}

func (s *CommentStore) Update(ctx context.Context, id string, fn func(blogguard.Comment) (blogguard.Comment, error)) (blogguard.Comment, error) {
	var out blogguard.Comment
	err := WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		cur, err := scanComment(tx.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return blogguard.ErrCommentNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: lock comment: %w", err)
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		// identity and placement are immutable
		next.ID, next.PostID, next.ParentID = cur.ID, cur.PostID, cur.ParentID
		_, err = tx.Exec(ctx, `UPDATE comments SET author_id = $2, content = $3, updated_at = $4 WHERE id = $1`,
			id, next.AuthorID, next.Content, next.UpdatedAt)
		if err != nil {
			return fmt.Errorf("postgres: update comment: %w", err)
		}
		out = next
		return nil
	})
	if err != nil {
		return blogguard.Comment{}, err
	}
	return out, nil
}

// DeleteTree locks every comment of the root's post, so no reply can attach
// to the subtree while fn decides, then deletes the chosen ids in one statement.
func (s *CommentStore) DeleteTree(ctx context.Context, id string, fn func(root blogguard.Comment, thread []blogguard.Comment) ([]string, error)) (int, error) {
	var n int
	err := WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var postID string
		err := tx.QueryRow(ctx, `SELECT post_id FROM comments WHERE id = $1`, id).Scan(&postID)
		if errors.Is(err, pgx.ErrNoRows) {
			return blogguard.ErrCommentNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: get comment: %w", err)
		}

		rows, err := tx.Query(ctx, `SELECT `+commentColumns+` FROM comments WHERE post_id = $1 ORDER BY created_at, id FOR UPDATE`, postID)
		if err != nil {
			return fmt.Errorf("postgres: lock thread: %w", err)
		}
		thread, err := collectComments(rows)
		if err != nil {
			return fmt.Errorf("postgres: lock thread: %w", err)
		}

		var root blogguard.Comment
		found := false
		for _, c := range thread {
			if c.ID == id {
				root, found = c, true
				break
			}
		}
		if !found {
			return blogguard.ErrCommentNotFound
		}

		ids, err := fn(root, thread)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM comments WHERE id = ANY($1)`, ids)
		if err != nil {
			return fmt.Errorf("postgres: delete comments: %w", err)
		}
		n = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

var _ comment.Store = (*CommentStore)(nil)
