package models

import "strings"

// HasEmail reports whether the customer left an address for confirmations.
func (r *Reservation) HasEmail() bool {
	return strings.TrimSpace(r.Email) != ""
}

// NeedsController reports whether the customer asked for a gamepad.
func (r *Reservation) NeedsController() bool {
	switch strings.ToLower(strings.TrimSpace(r.Controller)) {
	case ControllerYes, ControllerGamepad:
		return true
	default:
		return false
	}
}

// BoardgameIDs returns distinct boardgame ids in cart order.
func (r *Reservation) BoardgameIDs() []int64 {
	seen := make(map[int64]bool, len(r.Items))
	var ids []int64
	for _, it := range r.Items {
		if it.Type != TypeBoardgame || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		ids = append(ids, it.ID)
	}
	return ids
}

// SameItems compares carts by id and type, ignoring denormalized fields.
func SameItems(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Type != b[i].Type {
			return false
		}
	}
	return true
}

// ValidItemType reports whether t is a known catalog type.
func ValidItemType(t string) bool {
	return t == TypeBoardgame || t == TypeVideogame
}
