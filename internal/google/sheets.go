package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"kaptam/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	sheetName      = "Reservations"
	lastColumn     = "I"
	timeLayout     = "2006-01-02 15:04:05"
	cacheRefresh   = time.Hour
	warmUpDeadline = 30 * time.Second
)

// ErrRowNotFound is returned when no row carries the requested code.
var ErrRowNotFound = errors.New("reservation row not found")

var header = []interface{}{"Code", "Name", "Email", "Controller", "Date", "Games", "Additional Info", "Created At", "Updated At"}

// SheetsService mirrors reservations into a spreadsheet, one row per code.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *zerolog.Logger

	rowCache map[string]int
	cacheMu  sync.RWMutex
}

func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string, logger *zerolog.Logger) (*SheetsService, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newSheetsService(srv, spreadsheetID, logger), nil
}

func newSheetsService(srv *sheets.Service, spreadsheetID string, logger *zerolog.Logger) *SheetsService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		logger:        logger,
		rowCache:      make(map[string]int),
	}
}

// ServiceAccountEmail reads client_email from a service account key file.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// TestConnection проверяет доступ к листу
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// Start warms the row cache and refreshes it hourly until ctx is done.
func (s *SheetsService) Start(ctx context.Context) {
	refresh := func() {
		wctx, cancel := context.WithTimeout(ctx, warmUpDeadline)
		defer cancel()
		if err := s.WarmUpCache(wctx); err != nil && ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("sheets row cache refresh failed")
		}
	}

	refresh()
	ticker := time.NewTicker(cacheRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// WarmUpCache rebuilds the code → row index from column A.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	cache := make(map[string]int, len(resp.Values))
	for i, row := range resp.Values {
		if code := cellCode(row); code != "" {
			cache[code] = i + 1
		}
	}

	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

// EnsureHeader writes the header row.
func (s *SheetsService) EnsureHeader(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, sheetName+"!A1:"+lastColumn+"1", &sheets.ValueRange{
		Values: [][]interface{}{header},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// UpsertReservation rewrites the row for r.Code or appends a new one.
func (s *SheetsService) UpsertReservation(ctx context.Context, r *models.Reservation) error {
	if r == nil {
		return errors.New("reservation is nil")
	}

	rowIdx, err := s.FindReservationRow(ctx, r.Code)
	if errors.Is(err, ErrRowNotFound) {
		return s.appendReservation(ctx, r)
	}
	if err != nil {
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:%s%d", sheetName, rowIdx, lastColumn, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{reservationRowValues(r)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *SheetsService) appendReservation(ctx context.Context, r *models.Reservation) error {
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, sheetName+"!A:A", &sheets.ValueRange{
		Values: [][]interface{}{reservationRowValues(r)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return err
	}

	if resp.Updates != nil {
		if row, ok := firstRow(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(r.Code, row)
		}
	}
	return nil
}

// DeleteReservation clears the row for code. A missing row is not an error.
func (s *SheetsService) DeleteReservation(ctx context.Context, code string) error {
	rowIdx, err := s.FindReservationRow(ctx, code)
	if errors.Is(err, ErrRowNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:%s%d", sheetName, rowIdx, lastColumn, rowIdx)
	_, err = s.service.Spreadsheets.Values.Clear(s.spreadsheetID, rangeData, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err == nil {
		s.deleteCachedRow(code)
	}
	return err
}

// FindReservationRow returns the 1-based row index holding code.
func (s *SheetsService) FindReservationRow(ctx context.Context, code string) (int, error) {
	if code == "" {
		return 0, errors.New("reservation code is required")
	}
	if row, ok := s.getCachedRow(code); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for i, row := range resp.Values {
		if cellCode(row) == code {
			s.setCachedRow(code, i+1)
			return i + 1, nil
		}
	}
	return 0, ErrRowNotFound
}

func (s *SheetsService) getCachedRow(code string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[code]
	return row, ok
}

func (s *SheetsService) setCachedRow(code string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[code] = row
}

func (s *SheetsService) deleteCachedRow(code string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.rowCache, code)
}

// ClearCache drops the row index cache.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
}

func reservationRowValues(r *models.Reservation) []interface{} {
	games := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		games = append(games, fmt.Sprintf("%s (%s)", it.Name, it.Type))
	}

	updated := ""
	if r.UpdatedAt != nil {
		updated = r.UpdatedAt.UTC().Format(timeLayout)
	}

	return []interface{}{
		r.Code,
		r.Name,
		r.Email,
		r.Controller,
		r.Date,
		strings.Join(games, ", "),
		r.AdditionalInfo,
		r.CreatedAt.UTC().Format(timeLayout),
		updated,
	}
}

func cellCode(row []interface{}) string {
	if len(row) == 0 || row[0] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[0]))
}

// firstRow extracts the starting row from an A1 range such as "Reservations!A7:I7".
func firstRow(a1 string) (int, bool) {
	if i := strings.LastIndex(a1, "!"); i >= 0 {
		a1 = a1[i+1:]
	}
	a1 = strings.TrimLeft(a1, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	if i := strings.IndexByte(a1, ':'); i >= 0 {
		a1 = a1[:i]
	}
	var row int
	if _, err := fmt.Sscanf(a1, "%d", &row); err != nil || row <= 0 {
		return 0, false
	}
	return row, true
}
