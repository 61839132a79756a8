package api

import (
	"fmt"
	"net/http"
	"strings"

	"kaptam/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	exportSheet       = "Reservations"
	exportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportTimeLayout  = "2006-01-02 15:04"
)

var exportHeader = []interface{}{"Code", "Name", "Email", "Controller", "Date", "Boardgames", "Videogames", "Additional Info", "Created At", "Updated At"}

// adminExport streams the filtered reservation list as an xlsx workbook.
func (h *Handler) adminExport(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	var all []models.Reservation
	if filter.Limit > 0 {
		all, err = h.deps.Reservations.List(r.Context(), filter)
	} else {
		all, err = h.listAll(r, filter)
	}
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	f, err := buildWorkbook(all)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	defer f.Close()

	name := "kaptam-reservations-" + h.now().UTC().Format(models.DateLayout)
	if filter.Date != "" {
		name += "-for-" + filter.Date
	}
	w.Header().Set("Content-Type", exportContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, name))
	if err := f.Write(w); err != nil {
		h.logger.Error().Err(err).Msg("write export workbook")
	}
}

// listAll pages through the store until a short page comes back.
func (h *Handler) listAll(r *http.Request, filter models.ReservationFilter) ([]models.Reservation, error) {
	filter.Limit = models.MaxPageSize
	var all []models.Reservation
	for {
		page, err := h.deps.Reservations.List(r.Context(), filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < filter.Limit {
			return all, nil
		}
		filter.Offset += len(page)
	}
}

func buildWorkbook(list []models.Reservation) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := f.SetRowStyle(exportSheet, 1, 1, bold); err != nil {
		f.Close()
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i := range list {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := exportRow(&list[i])
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "E", 14)
	_ = f.SetColWidth(exportSheet, "F", "H", 40)
	_ = f.SetColWidth(exportSheet, "I", "J", 18)
	return f, nil
}

func exportRow(r *models.Reservation) []interface{} {
	var board, video []string
	for _, it := range r.Items {
		if it.Type == models.TypeBoardgame {
			board = append(board, it.Name)
		} else {
			video = append(video, it.Name)
		}
	}
	updated := ""
	if r.UpdatedAt != nil {
		updated = r.UpdatedAt.UTC().Format(exportTimeLayout)
	}
	return []interface{}{
		r.Code,
		r.Name,
		r.Email,
		r.Controller,
		r.Date,
		strings.Join(board, ", "),
		strings.Join(video, ", "),
		r.AdditionalInfo,
		r.CreatedAt.UTC().Format(exportTimeLayout),
		updated,
	}
}
