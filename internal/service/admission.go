package service

import (
	"context"
	"strings"
	"time"

	"kaptam/internal/domain"
	"kaptam/internal/metrics"
	"kaptam/internal/models"

	"github.com/rs/zerolog"
)

// ReservationInput is what a customer or admin submits.
type ReservationInput struct {
	Items          []models.Item
	Name           string
	Email          string
	Controller     string
	AdditionalInfo string
	Date           string
}

type AdmissionConfig struct {
	MaxPerDate int
	MaxItems   int
	// MaxAdvanceDays > 0 turns on the visit date window: no past dates and
	// nothing further ahead than this. Zero accepts any well-formed date.
	MaxAdvanceDays int
}

// Admission validates reservations and enforces the per-date and per-copy caps.
type Admission struct {
	repo    domain.Repository
	catalog domain.Catalog
	cfg     AdmissionConfig
	now     func() time.Time
	logger  *zerolog.Logger
}

func NewAdmission(repo domain.Repository, catalog domain.Catalog, cfg AdmissionConfig, logger *zerolog.Logger) *Admission {
	if cfg.MaxPerDate <= 0 {
		cfg.MaxPerDate = models.DefaultMaxReservationsPerDate
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = models.DefaultMaxItemsPerReservation
	}
	return &Admission{
		repo:    repo,
		catalog: catalog,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
	}
}

// Normalize trims text fields, fills item names and images from the catalog
// and validates the result.
func (a *Admission) Normalize(in ReservationInput) (ReservationInput, error) {
	out := ReservationInput{
		Name:           strings.TrimSpace(in.Name),
		Email:          strings.TrimSpace(in.Email),
		Controller:     strings.TrimSpace(in.Controller),
		AdditionalInfo: strings.TrimSpace(in.AdditionalInfo),
		Date:           strings.TrimSpace(in.Date),
	}

	if len(in.Items) == 0 {
		return out, invalidf("Cart is empty")
	}
	if len(in.Items) > a.cfg.MaxItems {
		return out, invalidf("Maximum %d items allowed per reservation", a.cfg.MaxItems)
	}
	if out.Name == "" {
		return out, invalidf("Name is required")
	}
	if out.Controller == "" {
		return out, invalidf("Controller preference is required")
	}

	out.Items = make([]models.Item, 0, len(in.Items))
	for _, it := range in.Items {
		it.Type = strings.ToLower(strings.TrimSpace(it.Type))
		it.Name = strings.TrimSpace(it.Name)
		if !models.ValidItemType(it.Type) || it.ID <= 0 {
			return out, invalidf("Invalid item in cart")
		}
		if a.catalog != nil {
			if g, ok := a.catalog.Lookup(it.Type, it.ID); ok {
				if it.Name == "" {
					it.Name = g.Name
				}
				if it.Image == "" {
					it.Image = g.Image
				}
			}
		}
		if it.Name == "" {
			return out, invalidf("Invalid item in cart")
		}
		out.Items = append(out.Items, it)
	}

	if out.Date != "" {
		if _, err := time.Parse(models.DateLayout, out.Date); err != nil {
			return out, invalidf("Invalid date format, expected YYYY-MM-DD")
		}
	}
	return out, nil
}

// Admit checks capacity for a normalized input. existing is nil for new
// reservations; for updates the reservation itself is excluded from all counts
// and a check only runs when what it guards has changed.
func (a *Admission) Admit(ctx context.Context, in ReservationInput, existing *models.Reservation) error {
	if in.Date == "" {
		return nil
	}

	excludeCode := ""
	dateChanged := true
	itemsChanged := true
	if existing != nil {
		excludeCode = existing.Code
		dateChanged = existing.Date != in.Date
		itemsChanged = !models.SameItems(existing.Items, in.Items)
	}

	if dateChanged {
		if err := a.checkDateWindow(in.Date); err != nil {
			return err
		}

		count, err := a.repo.CountOnDate(ctx, in.Date, excludeCode)
		if err != nil {
			return err
		}
		if count >= a.cfg.MaxPerDate {
			a.reject("date_full", in.Date)
			return &DateFullyBookedError{Date: in.Date, Max: a.cfg.MaxPerDate}
		}
	}

	if !dateChanged && !itemsChanged {
		return nil
	}

	probe := models.Reservation{Items: in.Items}
	for _, id := range probe.BoardgameIDs() {
		copies := 1
		name := itemName(in.Items, id)
		if a.catalog != nil {
			copies = a.catalog.Copies(id)
			if g, ok := a.catalog.Boardgame(id); ok {
				name = g.Name
			}
		}

		reserved, err := a.repo.CountBoardgameOnDate(ctx, in.Date, id, excludeCode)
		if err != nil {
			return err
		}
		if reserved >= copies {
			a.reject("game_full", in.Date)
			return &GameFullyReservedError{GameID: id, GameName: name, Date: in.Date}
		}
	}
	return nil
}

func (a *Admission) checkDateWindow(date string) error {
	if a.cfg.MaxAdvanceDays <= 0 {
		return nil
	}
	now := a.now()
	today := now.Format(models.DateLayout)
	if date < today {
		return invalidf("Date cannot be in the past")
	}
	last := now.AddDate(0, 0, a.cfg.MaxAdvanceDays).Format(models.DateLayout)
	if date > last {
		return invalidf("Date cannot be more than %d days ahead", a.cfg.MaxAdvanceDays)
	}
	return nil
}

func (a *Admission) reject(reason, date string) {
	metrics.IncAdmissionRejection(reason)
	a.logger.Info().Str("reason", reason).Str("date", date).Msg("reservation rejected")
}

func itemName(items []models.Item, id int64) string {
	for _, it := range items {
		if it.Type == models.TypeBoardgame && it.ID == id {
			return it.Name
		}
	}
	return ""
}
