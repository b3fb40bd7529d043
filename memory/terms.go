package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/synergy-framework/blogguard"
	"github.com/synergy-framework/blogguard/taxonomy"
)

// TermStore is the taxonomy.Store of a Service. Names compare
// case-insensitively within a kind; slugs compare exactly.
type TermStore struct {
	s *Service
}

func (t *TermStore) Create(_ context.Context, term blogguard.Term) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.conflicts(term) {
		return blogguard.ErrTermExists
	}
	t.s.terms[term.ID] = term
	return nil
}

func (t *TermStore) Get(_ context.Context, id string) (blogguard.Term, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	found, ok := t.s.terms[id]
	if !ok {
		return blogguard.Term{}, blogguard.ErrTermNotFound
	}
	return found, nil
}

func (t *TermStore) List(_ context.Context, kind blogguard.TermKind, offset, limit int) ([]blogguard.Term, error) {
	t.s.mu.RLock()
	out := make([]blogguard.Term, 0)
	for _, term := range t.s.terms {
		if term.Kind == kind {
			out = append(out, term)
		}
	}
	t.s.mu.RUnlock()
	sortTerms(out)
	return paginate(out, offset, limit), nil
}

func (t *TermStore) Update(_ context.Context, id string, fn func(blogguard.Term) (blogguard.Term, error)) (blogguard.Term, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	cur, ok := t.s.terms[id]
	if !ok {
		return blogguard.Term{}, blogguard.ErrTermNotFound
	}
	next, err := fn(cur)
	if err != nil {
		return blogguard.Term{}, err
	}
	next.ID = id
	next.Kind = cur.Kind
	if t.conflicts(next) {
		return blogguard.Term{}, blogguard.ErrTermExists
	}
	t.s.terms[id] = next
	return next, nil
}

func (t *TermStore) Delete(_ context.Context, id string, check func(blogguard.Term) error) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	cur, ok := t.s.terms[id]
	if !ok {
		return blogguard.ErrTermNotFound
	}
	if err := check(cur); err != nil {
		return err
	}
	delete(t.s.terms, id)
	switch cur.Kind {
	case blogguard.TermCategory:
		for pid, p := range t.s.posts {
			if p.CategoryID == id {
				p.CategoryID = ""
				t.s.posts[pid] = p
			}
		}
	case blogguard.TermTag:
		for _, tags := range t.s.postTags {
			delete(tags, id)
		}
	}
	return nil
}

func (t *TermStore) Tag(_ context.Context, postID, tagID string) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.linkable(postID, tagID); err != nil {
		return false, err
	}
	tags := t.s.postTags[postID]
	if tags == nil {
		tags = make(map[string]struct{})
		t.s.postTags[postID] = tags
	}
	if _, ok := tags[tagID]; ok {
		return false, nil
	}
	tags[tagID] = struct{}{}
	return true, nil
}

func (t *TermStore) Untag(_ context.Context, postID, tagID string) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.linkable(postID, tagID); err != nil {
		return false, err
	}
	if _, ok := t.s.postTags[postID][tagID]; !ok {
		return false, nil
	}
	delete(t.s.postTags[postID], tagID)
	return true, nil
}

func (t *TermStore) TagsOf(_ context.Context, postID string) ([]blogguard.Term, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	if _, ok := t.s.posts[postID]; !ok {
		return nil, blogguard.ErrPostNotFound
	}
	out := make([]blogguard.Term, 0, len(t.s.postTags[postID]))
	for id := range t.s.postTags[postID] {
		out = append(out, t.s.terms[id])
	}
	sortTerms(out)
	return out, nil
}

// must hold t.s.mu
func (t *TermStore) conflicts(term blogguard.Term) bool {
	for id, other := range t.s.terms {
		if id == term.ID || other.Kind != term.Kind {
			continue
		}
		if strings.EqualFold(other.Name, term.Name) || other.Slug == term.Slug {
			return true
		}
	}
	return false
}

// must hold t.s.mu
func (t *TermStore) linkable(postID, tagID string) error {
	if _, ok := t.s.posts[postID]; !ok {
		return blogguard.ErrPostNotFound
	}
	if tag, ok := t.s.terms[tagID]; !ok || tag.Kind != blogguard.TermTag {
		return blogguard.ErrTermNotFound
	}
	return nil
}

func sortTerms(terms []blogguard.Term) {
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Name != terms[j].Name {
			return terms[i].Name < terms[j].Name
		}
		return terms[i].ID < terms[j].ID
	})
}

var _ taxonomy.Store = (*TermStore)(nil)
