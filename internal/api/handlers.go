package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kaptam/internal/models"
	"kaptam/internal/service"

	"github.com/go-chi/chi/v5"
)

type healthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
}

type mutationResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		Timestamp:   h.now().UTC().Format(time.RFC3339Nano),
		Environment: h.cfg.App.Environment,
	}
	if h.deps.Health != nil {
		if err := h.deps.Health.HealthCheck(r.Context()); err != nil {
			h.logger.Error().Err(err).Msg("health check failed")
			resp.Status = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) dateAvailability(w http.ResponseWriter, r *http.Request) {
	counts, err := h.deps.Reservations.DateAvailability(r.Context())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *Handler) boardgames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Catalog.Boardgames())
}

func (h *Handler) videogames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Catalog.Videogames())
}

// readCart decodes and validates a cart body, writing the error response itself.
func (h *Handler) readCart(w http.ResponseWriter, r *http.Request) (*cartRequest, bool) {
	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.write(w, r, err)
		return nil, false
	}
	req.trim()
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return nil, false
	}
	return &req, true
}

func (h *Handler) submitCart(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCart(w, r)
	if !ok {
		return
	}

	res, err := h.deps.Reservations.Submit(r.Context(), req.input())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{
		Success: true,
		Code:    res.Code,
		Message: "Reservation created successfully",
	})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Reservations.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) updateCart(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.deps.Reservations.Update)
}

type updateFunc func(ctx context.Context, code string, in service.ReservationInput) (*models.Reservation, error)

func (h *Handler) update(w http.ResponseWriter, r *http.Request, apply updateFunc) {
	code := chi.URLParam(r, "code")
	if _, ok := service.NormalizeCode(code); !ok {
		writeError(w, http.StatusBadRequest, "Invalid code format")
		return
	}

	req, ok := h.readCart(w, r)
	if !ok {
		return
	}

	res, err := apply(r.Context(), code, req.input())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{
		Success: true,
		Code:    res.Code,
		Message: "Reservation updated successfully",
	})
}

type loginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
	Message   string    `json:"message"`
}

func (h *Handler) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	token, expiresAt, err := h.deps.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Success:   true,
		Token:     token,
		Username:  req.Username,
		ExpiresAt: expiresAt.UTC(),
		Message:   "Login successful",
	})
}

type verifyResponse struct {
	Success  bool   `json:"success"`
	Valid    bool   `json:"valid"`
	Username string `json:"username"`
}

func (h *Handler) adminVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Token is required")
		return
	}

	claims, err := h.deps.Auth.VerifyToken(req.Token)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Success: true, Valid: true, Username: claims.Subject})
}

type listResponse struct {
	Success      bool                 `json:"success"`
	Reservations []models.Reservation `json:"reservations"`
	Count        int                  `json:"count"`
}

// listFilter parses ?date=&limit=&offset=.
func listFilter(r *http.Request) (models.ReservationFilter, error) {
	q := r.URL.Query()
	f := models.ReservationFilter{Date: strings.TrimSpace(q.Get("date"))}

	if f.Date != "" {
		if _, err := time.Parse(models.DateLayout, f.Date); err != nil {
			return f, &service.ValidationError{Message: "Invalid date format, expected YYYY-MM-DD"}
		}
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &f.Limit}, {"offset", &f.Offset}} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, &service.ValidationError{Message: "Invalid " + p.name}
		}
		*p.dst = n
	}
	return f, nil
}

func (h *Handler) adminList(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	list, err := h.deps.Reservations.List(r.Context(), filter)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, Reservations: list, Count: len(list)})
}

func (h *Handler) adminGet(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Reservations.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "reservation": res})
}

func (h *Handler) adminUpdate(w http.ResponseWriter, r *http.Request) {
	h.logger.Info().Str("admin", adminFromContext(r.Context())).Str("code", chi.URLParam(r, "code")).Msg("admin update")
	h.update(w, r, h.deps.Reservations.AdminUpdate)
}

func (h *Handler) adminDelete(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := h.deps.Reservations.Delete(r.Context(), code); err != nil {
		h.errs.write(w, r, err)
		return
	}
	h.logger.Info().Str("admin", adminFromContext(r.Context())).Str("code", code).Msg("admin delete")
	writeJSON(w, http.StatusOK, mutationResponse{Success: true, Message: "Reservation deleted successfully"})
}

func (h *Handler) adminStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Reservations.Statistics(r.Context())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "statistics": stats})
}
