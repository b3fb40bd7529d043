package memory

import (
	"context"
	"sort"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/post"
)

// PostStore is the post.Store of a Service. Mutations run under the service
// write lock, which serializes every read-check-write on a post.
type PostStore struct {
	s *Service
}

func (p *PostStore) Create(_ context.Context, np blogguard.Post) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.posts[np.ID] = np
	return nil
}

func (p *PostStore) Get(_ context.Context, id string) (blogguard.Post, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	found, ok := p.s.posts[id]
	if !ok {
		return blogguard.Post{}, blogguard.ErrPostNotFound
	}
	return found, nil
}

func (p *PostStore) List(_ context.Context, filter post.Filter) ([]blogguard.Post, error) {
	p.s.mu.RLock()
	out := make([]blogguard.Post, 0)
	for _, candidate := range p.s.posts {
		if !filter.Matches(candidate) {
			continue
		}
		if _, tagged := p.s.postTags[candidate.ID][filter.TagID]; filter.TagID == "" || tagged {
			out = append(out, candidate)
		}
	}
	p.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, filter.Offset, filter.Limit), nil
}

func (p *PostStore) Update(_ context.Context, id string, fn func(blogguard.Post) (blogguard.Post, error)) (blogguard.Post, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	cur, ok := p.s.posts[id]
	if !ok {
		return blogguard.Post{}, blogguard.ErrPostNotFound
	}
	next, err := fn(cur)
	if err != nil {
		return blogguard.Post{}, err
	}
	next.ID = id
	p.s.posts[id] = next
	return next, nil
}

func (p *PostStore) Delete(_ context.Context, id string, check func(blogguard.Post) error) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	cur, ok := p.s.posts[id]
	if !ok {
		return blogguard.ErrPostNotFound
	}
	if err := check(cur); err != nil {
		return err
	}
	delete(p.s.posts, id)
	delete(p.s.postTags, id)
	for cid, c := range p.s.comments {
		if c.PostID == id {
			delete(p.s.comments, cid)
		}
	}
	return nil
}

var _ post.Store = (*PostStore)(nil)
