package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var compareConfig = cmp.Comparer(func(a, b ControlConfig) bool {
	return a.String() == b.String()
})

func fixtureShader(id, creator string, at time.Time, parent *Shader) Shader {
	s := Shader{
		ID:        id,
		CreatedAt: at,
		CreatorID: creator,
		LineageID: id,
		HTML:      "<!DOCTYPE html><html><body>" + id + "</body></html>",
		JSON:      MustControlConfig(`{"Zeta":{"speed":{"value":1,"min":0,"max":2}},"Alpha":{"color":{"value":"#00ff00"}}}`),
		Metadata: map[string]interface{}{
			MetadataPrompt: "prompt for " + id,
			MetadataModel:  DefaultModel,
		},
	}
	if parent != nil {
		s.ParentID = parent.ID
		s.LineageID = parent.LineageID
	}
	return s
}

// testShaderStore runs the behaviour every ShaderStore must share.
func testShaderStore(t *testing.T, store ShaderStore) {
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	root := fixtureShader("root000000000001", "alice", base, nil)
	child := fixtureShader("child00000000001", "bob", base.Add(time.Second), &root)
	other := fixtureShader("other00000000001", "alice", base.Add(2*time.Second), nil)

	for _, s := range []Shader{root, child, other} {
		s := s
		require.NoError(t, store.Insert(ctx, &s))
	}

	t.Run("get round trips", func(t *testing.T) {
		got, err := store.GetByID(ctx, child.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(child, *got, compareConfig); diff != "" {
			t.Fatalf("shader mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, []string{"Zeta", "Alpha"}, got.JSON.Keys())
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := store.GetByID(ctx, "nope")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("duplicate id", func(t *testing.T) {
		dup := root
		err := store.Insert(ctx, &dup)
		var storageErr *StorageError
		require.True(t, errors.As(err, &storageErr), "got %v", err)
		status, _, _ := ClassifyError(err)
		assert.Equal(t, 500, status)
	})

	t.Run("recent newest first", func(t *testing.T) {
		got, err := store.Recent(ctx, RecentFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, other.ID, got[0].ID)
		assert.Equal(t, child.ID, got[1].ID)
	})

	t.Run("recent by creator", func(t *testing.T) {
		got, err := store.Recent(ctx, RecentFilter{CreatorID: "alice"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, other.ID, got[0].ID)
		assert.Equal(t, root.ID, got[1].ID)

		got, err = store.Recent(ctx, RecentFilter{CreatorID: "nobody"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("recent default limit", func(t *testing.T) {
		for i := 0; i < 6; i++ {
			s := fixtureShader(fmt.Sprintf("bulk%012d", i), "carol", base.Add(time.Duration(10+i)*time.Second), nil)
			require.NoError(t, store.Insert(ctx, &s))
		}
		got, err := store.Recent(ctx, RecentFilter{})
		require.NoError(t, err)
		require.Len(t, got, DefaultRecentLimit)
		assert.Equal(t, "bulk000000000005", got[0].ID)
		for i := 1; i < len(got); i++ {
			assert.False(t, got[i].CreatedAt.After(got[i-1].CreatedAt))
		}
	})
}

func TestRecentFilterClampLimit(t *testing.T) {
	assert.Equal(t, DefaultRecentLimit, RecentFilter{}.ClampLimit())
	assert.Equal(t, DefaultRecentLimit, RecentFilter{Limit: -3}.ClampLimit())
	assert.Equal(t, 1, RecentFilter{Limit: 1}.ClampLimit())
	assert.Equal(t, MaxRecentLimit, RecentFilter{Limit: 1000}.ClampLimit())
}

func TestSQLiteShaderStore(t *testing.T) {
	store, err := OpenSQLiteShaderStore(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	testShaderStore(t, store)
}

func TestSQLiteShaderStoreRejectsEmptyHTML(t *testing.T) {
	store, err := OpenSQLiteShaderStore(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	defer store.Close()

	s := fixtureShader("empty0000000001", "u", time.Now(), nil)
	s.HTML = ""
	err = store.Insert(context.Background(), &s)
	var storageErr *StorageError
	assert.True(t, errors.As(err, &storageErr))
}

func TestDynamoShaderStore(t *testing.T) {
	fake := newFakeDynamo()
	store := NewDynamoShaderStore(fake, "shaders", nil)

	testShaderStore(t, store)

	// every row carries the numeric sort key used by both indexes
	for _, item := range fake.items {
		assert.Contains(t, item, "createdAtMs")
		assert.Contains(t, item, "feed")
	}
}

func TestDynamoShaderStoreQueryFailure(t *testing.T) {
	fake := newFakeDynamo()
	fake.queryErr = errors.New("throttled")
	store := NewDynamoShaderStore(fake, "shaders", nil)

	_, err := store.Recent(context.Background(), RecentFilter{})
	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "recent", storageErr.Op)
}
