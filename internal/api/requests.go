package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"kaptam/internal/models"
	"kaptam/internal/service"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

type cartItemRequest struct {
	ID    int64  `json:"id" validate:"gt=0"`
	Name  string `json:"name" validate:"max=200"`
	Image string `json:"image" validate:"max=500"`
	Type  string `json:"type" validate:"oneof=boardgame videogame"`
}

// cartRequest is the body of submit and update calls. Emptiness checks are
// left to admission so the customer sees the same messages on every path.
// Email is free text; the mailer skips addresses it cannot use.
type cartRequest struct {
	Items          []cartItemRequest `json:"items" validate:"dive"`
	Name           string            `json:"name" validate:"max=100"`
	Email          string            `json:"email" validate:"max=254"`
	Controller     string            `json:"controller" validate:"max=50"`
	AdditionalInfo string            `json:"additionalInfo" validate:"max=2000"`
	Date           string            `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (c *cartRequest) trim() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Controller = strings.TrimSpace(c.Controller)
	c.AdditionalInfo = strings.TrimSpace(c.AdditionalInfo)
	c.Date = strings.TrimSpace(c.Date)
	for i := range c.Items {
		c.Items[i].Type = strings.ToLower(strings.TrimSpace(c.Items[i].Type))
	}
}

func (c *cartRequest) input() service.ReservationInput {
	items := make([]models.Item, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, models.Item{ID: it.ID, Name: it.Name, Image: it.Image, Type: it.Type})
	}
	return service.ReservationInput{
		Items:          items,
		Name:           c.Name,
		Email:          c.Email,
		Controller:     c.Controller,
		AdditionalInfo: c.AdditionalInfo,
		Date:           c.Date,
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

type verifyRequest struct {
	Token string `json:"token" validate:"required"`
}

var errInvalidJSON = &service.ValidationError{Message: "Invalid JSON body"}

// decodeJSON reads a single JSON document from the request body.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return errInvalidJSON
	}
	if dec.More() {
		return errInvalidJSON
	}
	return nil
}

// validationMessage turns the first validator failure into a customer-facing message.
func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "Invalid request"
	}
	e := ve[0]

	if strings.Contains(e.Namespace(), "items[") {
		return "Invalid item in cart"
	}
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "datetime":
		return "Invalid date format, expected YYYY-MM-DD"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param())
	default:
		return fmt.Sprintf("Invalid value for %s", e.Field())
	}
}
