package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductUnmarshalJSON(t *testing.T) {
	t.Run("modern id field", func(t *testing.T) {
		var p Product
		err := json.Unmarshal([]byte(`{"id":"rose-001","name":"Red Rose","price":12.5}`), &p)
		require.NoError(t, err)
		assert.Equal(t, "rose-001", p.ID)
		assert.Equal(t, "Red Rose", p.Name)
	})

	t.Run("legacy _id field", func(t *testing.T) {
		var p Product
		err := json.Unmarshal([]byte(`{"_id":"64f1a2b3c4d5e6f7a8b9c0d1","name":"Tulip Mix"}`), &p)
		require.NoError(t, err)
		assert.Equal(t, "64f1a2b3c4d5e6f7a8b9c0d1", p.ID)
	})

	t.Run("id wins over _id when both present", func(t *testing.T) {
		var p Product
		err := json.Unmarshal([]byte(`{"id":"canonical","_id":"legacy","name":"Lily"}`), &p)
		require.NoError(t, err)
		assert.Equal(t, "canonical", p.ID)
	})

	t.Run("invalid payload", func(t *testing.T) {
		var p Product
		err := json.Unmarshal([]byte(`{"id":42}`), &p)
		assert.Error(t, err)
	})
}

func TestWishlistContainsAndIndexOf(t *testing.T) {
	w := Wishlist{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	assert.True(t, w.Contains("b"))
	assert.False(t, w.Contains("z"))
	assert.Equal(t, 2, w.IndexOf("c"))
	assert.Equal(t, -1, w.IndexOf("z"))
}

func TestWishlistClone(t *testing.T) {
	w := Wishlist{{ID: "a", Images: []string{"a.jpg"}}, {ID: "b"}}

	clone := w.Clone()
	clone[0].ID = "mutated"
	clone[0].Images[0] = "mutated.jpg"

	assert.Equal(t, "a", w[0].ID)
	assert.Equal(t, "a.jpg", w[0].Images[0])
}

func TestWishlistCloneNil(t *testing.T) {
	var w Wishlist
	assert.Nil(t, w.Clone())
}

func TestWishlistWithout(t *testing.T) {
	w := Wishlist{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	got := w.Without("b")
	assert.Equal(t, Wishlist{{ID: "a"}, {ID: "c"}}, got)
	assert.Len(t, w, 3, "original must be untouched")

	assert.Equal(t, w, w.Without("missing"))
}

func TestWishlistDedupe(t *testing.T) {
	w := Wishlist{
		{ID: "a", Name: "first"},
		{ID: "b"},
		{ID: "a", Name: "second"},
	}

	got := w.Dedupe()
	assert.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Name, "first occurrence wins")
	assert.Equal(t, "b", got[1].ID)
}
