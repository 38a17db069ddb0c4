package shared

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	cases := []struct {
		name                   string
		page, perPage, total   int
		wantPage, wantPer, pgs int
	}{
		{"exact", 1, 10, 20, 1, 10, 2},
		{"partial", 2, 10, 21, 2, 10, 3},
		{"empty", 1, 10, 0, 1, 10, 0},
		{"defaults", 0, 0, 5, 1, DefaultPageSize, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPagination(tc.page, tc.perPage, tc.total)
			assert.Equal(t, tc.wantPage, p.Page)
			assert.Equal(t, tc.wantPer, p.PerPage)
			assert.Equal(t, tc.total, p.Total)
			assert.Equal(t, tc.pgs, p.TotalPages)
		})
	}
}

func TestScopedKey(t *testing.T) {
	assert.Equal(t, "payments.import:abc", scopedKey("payments.import", "abc"))
	assert.NotEqual(t, scopedKey("a", "b:c"), scopedKey("a:b", "d"))
}

func TestIdempotencyStoreGuards(t *testing.T) {
	var nilStore *IdempotencyStore
	ctx := context.Background()
	assert.Error(t, nilStore.CheckAndInsert(ctx, "k", "m"))
	assert.NoError(t, nilStore.Release(ctx, "k", "m"))
	removed, err := nilStore.Cleanup(ctx, time.Hour)
	assert.NoError(t, err)
	assert.Zero(t, removed)

	store := NewIdempotencyStore(nil)
	assert.Error(t, store.CheckAndInsert(ctx, "", "m"))
	assert.Error(t, store.CheckAndInsert(ctx, "k", ""))
	assert.Error(t, store.Release(ctx, "", "m"))
}
