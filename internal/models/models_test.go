package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReservation_Helpers(t *testing.T) {
	r := &Reservation{
		Controller: "Yes",
		Email:      "  ",
		Items: []Item{
			{ID: 1, Type: TypeBoardgame},
			{ID: 2, Type: TypeVideogame},
			{ID: 1, Type: TypeBoardgame},
			{ID: 3, Type: TypeBoardgame},
		},
	}

	t.Run("HasEmail", func(t *testing.T) {
		assert.False(t, r.HasEmail())
		assert.True(t, (&Reservation{Email: "a@b.fi"}).HasEmail())
	})

	t.Run("NeedsController", func(t *testing.T) {
		assert.True(t, r.NeedsController())
		assert.True(t, (&Reservation{Controller: ControllerGamepad}).NeedsController())
		assert.False(t, (&Reservation{Controller: ControllerKeyboardMouse}).NeedsController())
	})

	t.Run("BoardgameIDs", func(t *testing.T) {
		assert.Equal(t, []int64{1, 3}, r.BoardgameIDs())
		assert.Nil(t, (&Reservation{}).BoardgameIDs())
	})
}

func TestSameItems(t *testing.T) {
	a := []Item{{ID: 1, Type: TypeBoardgame, Name: "Catan"}}
	b := []Item{{ID: 1, Type: TypeBoardgame, Name: "Catan (old name)"}}
	assert.True(t, SameItems(a, b))
	assert.False(t, SameItems(a, []Item{{ID: 1, Type: TypeVideogame}}))
	assert.False(t, SameItems(a, nil))
}

func TestGame_AvailableCopies(t *testing.T) {
	assert.Equal(t, 1, Game{}.AvailableCopies())
	assert.Equal(t, 3, Game{Copies: 3}.AvailableCopies())
}
