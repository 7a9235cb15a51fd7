package domain

import "encoding/json"

// Product is a storefront catalog item saved in a wishlist. The agent treats
// it as read-only; the storefront API owns the record.
type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	OriginalPrice float64  `json:"originalPrice,omitempty"`
	Description   string   `json:"description,omitempty"`
	Images        []string `json:"images,omitempty"`
	InStock       bool     `json:"inStock"`
	Category      string   `json:"category,omitempty"`
}

// UnmarshalJSON normalizes product identity at the boundary. Upstream payloads
// key the identity as "id" or the legacy Mongo "_id" depending on endpoint
// age; both resolve to ID here so the rest of the agent never branches on
// field names. "id" wins when both are present.
func (p *Product) UnmarshalJSON(data []byte) error {
	type alias Product
	aux := struct {
		*alias
		LegacyID string `json:"_id"`
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = aux.LegacyID
	}
	return nil
}

// Wishlist is an ordered collection of saved products. Insertion order is
// display order. A well-formed wishlist never holds two entries with the
// same ID; Dedupe enforces this at the boundaries.
type Wishlist []Product

// Contains reports whether a product with the given ID is in the wishlist.
func (w Wishlist) Contains(id string) bool {
	return w.IndexOf(id) >= 0
}

// IndexOf returns the position of the product with the given ID, or -1.
func (w Wishlist) IndexOf(id string) int {
	for i := range w {
		if w[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a copy of the wishlist that shares no backing arrays with
// the original. Snapshots rely on this.
func (w Wishlist) Clone() Wishlist {
	if w == nil {
		return nil
	}
	out := make(Wishlist, len(w))
	copy(out, w)
	for i := range out {
		if out[i].Images != nil {
			images := make([]string, len(out[i].Images))
			copy(images, out[i].Images)
			out[i].Images = images
		}
	}
	return out
}

// Without returns a copy of the wishlist with the given product removed.
func (w Wishlist) Without(id string) Wishlist {
	out := make(Wishlist, 0, len(w))
	for _, p := range w {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

// Dedupe returns a copy with duplicate IDs removed; the first occurrence
// wins, preserving display order.
func (w Wishlist) Dedupe() Wishlist {
	seen := make(map[string]struct{}, len(w))
	out := make(Wishlist, 0, len(w))
	for _, p := range w {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
