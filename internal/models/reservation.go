package models

import "time"

// Reservation is a customer's cart submitted for a visit, addressed by its public code.
type Reservation struct {
	Code           string     `json:"code"`
	Items          []Item     `json:"items"`
	Name           string     `json:"name"`
	Email          string     `json:"email,omitempty"`
	Controller     string     `json:"controller"`
	AdditionalInfo string     `json:"additionalInfo,omitempty"`
	Date           string     `json:"date,omitempty"` // YYYY-MM-DD, empty when no visit date was chosen
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

// Item is a cart line; name and image are copied from the catalog at submission time.
type Item struct {
	ID    int64  `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Image string `json:"image,omitempty" yaml:"image"`
	Type  string `json:"type" yaml:"type"`
}

// ReservationFilter narrows admin listings.
type ReservationFilter struct {
	Date   string
	Limit  int
	Offset int
}

// Statistics aggregates reservation counts for the admin dashboard.
type Statistics struct {
	TotalReservations  int            `json:"totalReservations"`
	UniqueDates        int            `json:"uniqueDates"`
	WithEmail          int            `json:"withEmail"`
	NeedsController    int            `json:"needsController"`
	ReservationsByDate map[string]int `json:"reservationsByDate"`
}
