package repository

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/ShortLife/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errVeto = errors.New("veto")

func newLink(token string, owner uuid.UUID, created time.Time) *model.Link {
	return &model.Link{
		Token:       token,
		TargetURL:   "https://example.com/" + token,
		OwnerID:     owner,
		AccessLimit: 5,
		ExpiresAt:   created.Add(time.Hour),
		CreatedAt:   created,
	}
}

func TestLinkRepository_InsertAndGet(t *testing.T) {
	repo := NewLinkRepository()
	owner := uuid.New()
	now := time.Now()

	require.NoError(t, repo.Insert(newLink("abc12345", owner, now)))

	got, ok := repo.Get("abc12345")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/abc12345", got.TargetURL)
	assert.Equal(t, owner, got.OwnerID)
	assert.Equal(t, 1, repo.Len())

	_, ok = repo.Get("missing")
	assert.False(t, ok)
}

func TestLinkRepository_InsertCollision(t *testing.T) {
	repo := NewLinkRepository()
	now := time.Now()
	first := newLink("dup00000", uuid.New(), now)
	second := newLink("dup00000", uuid.New(), now)
	second.TargetURL = "https://other.example.com"

	require.NoError(t, repo.Insert(first))
	err := repo.Insert(second)
	require.ErrorIs(t, err, ErrTokenCollision)

	got, ok := repo.Get("dup00000")
	require.True(t, ok)
	assert.Equal(t, first.TargetURL, got.TargetURL, "collision must not overwrite the live record")
	assert.Len(t, repo.ListByOwner(second.OwnerID), 0)
}

func TestLinkRepository_RemoveKeepsIndicesConsistent(t *testing.T) {
	repo := NewLinkRepository()
	owner := uuid.New()
	now := time.Now()
	require.NoError(t, repo.Insert(newLink("aaaaaaaa", owner, now)))
	require.NoError(t, repo.Insert(newLink("bbbbbbbb", owner, now.Add(time.Second))))

	repo.Remove("aaaaaaaa")
	repo.Remove("aaaaaaaa")
	repo.Remove("never-existed")

	_, ok := repo.Get("aaaaaaaa")
	assert.False(t, ok)
	links := repo.ListByOwner(owner)
	require.Len(t, links, 1)
	assert.Equal(t, "bbbbbbbb", links[0].Token)
	assert.Equal(t, 1, repo.Len())
}

func TestLinkRepository_ListByOwnerReturnsCopiesInCreationOrder(t *testing.T) {
	repo := NewLinkRepository()
	alice, bob := uuid.New(), uuid.New()
	base := time.Now()

	require.NoError(t, repo.Insert(newLink("cccccccc", alice, base.Add(2*time.Second))))
	require.NoError(t, repo.Insert(newLink("aaaaaaaa", alice, base)))
	require.NoError(t, repo.Insert(newLink("bbbbbbbb", bob, base.Add(time.Second))))

	links := repo.ListByOwner(alice)
	require.Len(t, links, 2)
	assert.Equal(t, "aaaaaaaa", links[0].Token)
	assert.Equal(t, "cccccccc", links[1].Token)

	links[0].AccessCount = 99
	got, _ := repo.Get("aaaaaaaa")
	assert.Equal(t, 0, got.AccessCount, "listing must not expose live records")

	assert.Empty(t, repo.ListByOwner(uuid.New()))
}

func TestLinkRepository_Mutate(t *testing.T) {
	repo := NewLinkRepository()
	owner := uuid.New()
	require.NoError(t, repo.Insert(newLink("mmmmmmmm", owner, time.Now())))

	t.Run("applies mutable fields only", func(t *testing.T) {
		got, err := repo.Mutate("mmmmmmmm", func(link *model.Link) (bool, error) {
			link.AccessCount++
			link.AccessLimit = 7
			link.TargetURL = "https://evil.example.com"
			return false, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, got.AccessCount)
		assert.Equal(t, 7, got.AccessLimit)
		assert.Equal(t, "https://example.com/mmmmmmmm", got.TargetURL)
	})

	t.Run("discards changes when the func fails", func(t *testing.T) {
		_, err := repo.Mutate("mmmmmmmm", func(link *model.Link) (bool, error) {
			link.AccessLimit = 0
			return false, errVeto
		})
		require.ErrorIs(t, err, errVeto)
		got, _ := repo.Get("mmmmmmmm")
		assert.Equal(t, 7, got.AccessLimit)
	})

	t.Run("evicts from both indices", func(t *testing.T) {
		_, err := repo.Mutate("mmmmmmmm", func(link *model.Link) (bool, error) {
			return true, errVeto
		})
		require.ErrorIs(t, err, errVeto)
		_, ok := repo.Get("mmmmmmmm")
		assert.False(t, ok)
		assert.Empty(t, repo.ListByOwner(owner))
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := repo.Mutate("mmmmmmmm", func(link *model.Link) (bool, error) {
			t.Fatal("func must not run for a missing token")
			return false, nil
		})
		require.ErrorIs(t, err, ErrLinkNotFound)
	})
}

func TestLinkRepository_ForEachToleratesRemoval(t *testing.T) {
	repo := NewLinkRepository()
	owner := uuid.New()
	now := time.Now()
	for i := 0; i < 20; i++ {
		require.NoError(t, repo.Insert(newLink(fmt.Sprintf("tok%05d", i), owner, now)))
	}

	visited := 0
	repo.ForEach(func(link model.Link) bool {
		visited++
		repo.Remove(link.Token)
		return true
	})

	assert.Equal(t, 20, visited)
	assert.Equal(t, 0, repo.Len())
	assert.Empty(t, repo.ListByOwner(owner))
}

func TestLinkRepository_ForEachStopsEarly(t *testing.T) {
	repo := NewLinkRepository()
	now := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(newLink(fmt.Sprintf("tok%05d", i), uuid.New(), now)))
	}

	visited := 0
	repo.ForEach(func(link model.Link) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}

func TestLinkRepository_StaleRemoveDoesNotDropReusedToken(t *testing.T) {
	repo := NewLinkRepository()
	first, second := uuid.New(), uuid.New()
	now := time.Now()

	require.NoError(t, repo.Insert(newLink("reused00", first, now)))
	stale := repo.(*linkRepository).lookup("reused00")
	repo.Remove("reused00")
	require.NoError(t, repo.Insert(newLink("reused00", second, now)))

	stale.mu.Lock()
	repo.(*linkRepository).detach(stale)
	stale.mu.Unlock()

	got, ok := repo.Get("reused00")
	require.True(t, ok)
	assert.Equal(t, second, got.OwnerID)
	assert.Len(t, repo.ListByOwner(second), 1)
}

func TestLinkRepository_ConcurrentMutationsAreAtomic(t *testing.T) {
	repo := NewLinkRepository()
	link := newLink("hot00000", uuid.New(), time.Now())
	link.AccessLimit = 50
	require.NoError(t, repo.Insert(link))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Mutate("hot00000", func(l *model.Link) (bool, error) {
				if l.AccessCount >= l.AccessLimit {
					return false, errVeto
				}
				l.AccessCount++
				return false, nil
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, ok := repo.Get("hot00000")
	require.True(t, ok)
	assert.Equal(t, 50, successes)
	assert.Equal(t, 50, got.AccessCount)
}

func TestLinkRepository_ConcurrentInsertRemove(t *testing.T) {
	repo := NewLinkRepository()
	owner := uuid.New()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := fmt.Sprintf("c%07d", i)
			_ = repo.Insert(newLink(token, owner, now))
			if i%2 == 0 {
				repo.Remove(token)
			}
		}(i)
	}
	wg.Wait()

	links := repo.ListByOwner(owner)
	assert.Len(t, links, 25)
	assert.Equal(t, 25, repo.Len())
	for _, l := range links {
		_, ok := repo.Get(l.Token)
		assert.True(t, ok, "owner index lists %s but the token index does not", l.Token)
	}
}
