package repository

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sifan077/ShortLife/internal/app/model"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrTokenCollision signals that a live link already uses the token.
	ErrTokenCollision = errors.New("token already in use")
)

// MutateFunc inspects and optionally changes a live link while its record lock is held.
// Only AccessLimit and AccessCount changes are kept, and only when err is nil.
// Returning evict=true removes the link from both indices before the lock is released.
type MutateFunc func(link *model.Link) (evict bool, err error)

// LinkRepository defines the data access contract for short links.
type LinkRepository interface {
	Insert(link *model.Link) error
	Get(token string) (model.Link, bool)
	Remove(token string)
	ListByOwner(ownerID uuid.UUID) []model.Link
	ForEach(visit func(link model.Link) bool)
	Mutate(token string, fn MutateFunc) (model.Link, error)
	Len() int
}

// record guards the mutable part of one link.
// removed is set once the record left the indices; holders of a stale pointer must treat it as absent.
type record struct {
	mu      sync.Mutex
	link    model.Link
	removed bool
}

// linkRepository keeps the token index and the owner index behind one RWMutex.
// The store lock is never held while a record lock is being acquired.
type linkRepository struct {
	mu      sync.RWMutex
	links   map[string]*record
	byOwner map[uuid.UUID]map[string]*record
}

// NewLinkRepository returns an in-memory LinkRepository.
func NewLinkRepository() LinkRepository {
	return &linkRepository{
		links:   make(map[string]*record),
		byOwner: make(map[uuid.UUID]map[string]*record),
	}
}

func (r *linkRepository) Insert(link *model.Link) error {
	rec := &record{link: *link}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.links[link.Token]; ok {
		return ErrTokenCollision
	}

	r.links[link.Token] = rec
	bucket, ok := r.byOwner[link.OwnerID]
	if !ok {
		bucket = make(map[string]*record)
		r.byOwner[link.OwnerID] = bucket
	}
	bucket[link.Token] = rec
	return nil
}

func (r *linkRepository) Get(token string) (model.Link, bool) {
	rec := r.lookup(token)
	if rec == nil {
		return model.Link{}, false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed {
		return model.Link{}, false
	}
	return rec.link, true
}

func (r *linkRepository) Remove(token string) {
	rec := r.lookup(token)
	if rec == nil {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	r.detach(rec)
}

func (r *linkRepository) ListByOwner(ownerID uuid.UUID) []model.Link {
	r.mu.RLock()
	bucket := r.byOwner[ownerID]
	recs := make([]*record, 0, len(bucket))
	for _, rec := range bucket {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	result := make([]model.Link, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		if !rec.removed {
			result = append(result, rec.link)
		}
		rec.mu.Unlock()
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].Token < result[j].Token
	})
	return result
}

// ForEach visits a snapshot of every live link. The visitor may remove or mutate links;
// links inserted during the walk may or may not be visited.
func (r *linkRepository) ForEach(visit func(link model.Link) bool) {
	r.mu.RLock()
	recs := make([]*record, 0, len(r.links))
	for _, rec := range r.links {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	for _, rec := range recs {
		rec.mu.Lock()
		link, live := rec.link, !rec.removed
		rec.mu.Unlock()

		if !live {
			continue
		}
		if !visit(link) {
			return
		}
	}
}

func (r *linkRepository) Mutate(token string, fn MutateFunc) (model.Link, error) {
	rec := r.lookup(token)
	if rec == nil {
		return model.Link{}, ErrLinkNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed {
		return model.Link{}, ErrLinkNotFound
	}

	draft := rec.link
	evict, err := fn(&draft)
	if err == nil {
		rec.link.AccessLimit = draft.AccessLimit
		rec.link.AccessCount = draft.AccessCount
	}
	if evict {
		r.detach(rec)
	}
	return rec.link, err
}

func (r *linkRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.links)
}

func (r *linkRepository) lookup(token string) *record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.links[token]
}

// detach removes rec from both indices. The caller holds rec.mu.
func (r *linkRepository) detach(rec *record) {
	if rec.removed {
		return
	}
	rec.removed = true

	r.mu.Lock()
	defer r.mu.Unlock()

	token := rec.link.Token
	if r.links[token] == rec {
		delete(r.links, token)
	}
	if bucket, ok := r.byOwner[rec.link.OwnerID]; ok {
		if bucket[token] == rec {
			delete(bucket, token)
		}
		if len(bucket) == 0 {
			delete(r.byOwner, rec.link.OwnerID)
		}
	}
}
