package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"kaptam/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type fakeSheets struct {
	mu       sync.Mutex
	column   [][]interface{}
	requests []string
	bodies   map[string]sheets.ValueRange
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sid/values/")
	f.requests = append(f.requests, key)

	if r.Method == http.MethodPut || r.Method == http.MethodPost {
		var vr sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.bodies[key] = vr
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: f.column})
	case strings.HasSuffix(r.URL.Path, ":append"):
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{
			Updates: &sheets.UpdateValuesResponse{UpdatedRange: "Reservations!A4:I4"},
		})
	case strings.HasSuffix(r.URL.Path, ":clear"):
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	default:
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	}
}

func (f *fakeSheets) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func setupSheets(t *testing.T) (*fakeSheets, *SheetsService) {
	t.Helper()
	fake := &fakeSheets{
		column: [][]interface{}{{"Code"}, {"ABC234"}, {"XYZ789"}},
		bodies: make(map[string]sheets.ValueRange),
	}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	return fake, newSheetsService(srv, "sid", nil)
}

func testReservation(code string) *models.Reservation {
	updated := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	return &models.Reservation{
		Code:       code,
		Name:       "Aino",
		Controller: models.ControllerGamepad,
		Date:       "2026-10-20",
		Items: []models.Item{
			{ID: 1, Name: "Catan", Type: models.TypeBoardgame},
			{ID: 1, Name: "Tekken 8", Type: models.TypeVideogame},
		},
		CreatedAt: time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC),
		UpdatedAt: &updated,
	}
}

func TestSheetsService_TestConnection(t *testing.T) {
	fake, s := setupSheets(t)
	require.NoError(t, s.TestConnection(context.Background()))
	assert.Equal(t, []string{"GET Reservations!A1"}, fake.calls())
}

func TestSheetsService_WarmUpCache(t *testing.T) {
	_, s := setupSheets(t)
	require.NoError(t, s.WarmUpCache(context.Background()))

	row, ok := s.getCachedRow("XYZ789")
	assert.True(t, ok)
	assert.Equal(t, 3, row)
	_, ok = s.getCachedRow("MISSING")
	assert.False(t, ok)
}

func TestSheetsService_UpsertExistingRow(t *testing.T) {
	fake, s := setupSheets(t)

	require.NoError(t, s.UpsertReservation(context.Background(), testReservation("ABC234")))
	calls := fake.calls()
	require.Equal(t, []string{"GET Reservations!A:A", "PUT Reservations!A2:I2"}, calls)

	body := fake.bodies["PUT Reservations!A2:I2"]
	require.Len(t, body.Values, 1)
	assert.Equal(t, "ABC234", body.Values[0][0])
	assert.Equal(t, "Catan (boardgame), Tekken 8 (videogame)", body.Values[0][5])
	assert.Equal(t, "2026-10-19 08:00:00", body.Values[0][8])

	// second upsert hits the cache
	require.NoError(t, s.UpsertReservation(context.Background(), testReservation("ABC234")))
	assert.Len(t, fake.calls(), 3)
}

func TestSheetsService_UpsertAppendsNewRow(t *testing.T) {
	fake, s := setupSheets(t)

	require.NoError(t, s.UpsertReservation(context.Background(), testReservation("NEW234")))
	assert.Equal(t, []string{"GET Reservations!A:A", "POST Reservations!A:A:append"}, fake.calls())

	row, ok := s.getCachedRow("NEW234")
	assert.True(t, ok)
	assert.Equal(t, 4, row)
}

func TestSheetsService_DeleteReservation(t *testing.T) {
	fake, s := setupSheets(t)

	require.NoError(t, s.DeleteReservation(context.Background(), "XYZ789"))
	assert.Equal(t, []string{"GET Reservations!A:A", "POST Reservations!A3:I3:clear"}, fake.calls())
	_, ok := s.getCachedRow("XYZ789")
	assert.False(t, ok)

	// unknown code is a no-op
	require.NoError(t, s.DeleteReservation(context.Background(), "NOPE22"))
}

func TestSheetsService_Errors(t *testing.T) {
	_, s := setupSheets(t)

	assert.Error(t, s.UpsertReservation(context.Background(), nil))
	_, err := s.FindReservationRow(context.Background(), "")
	assert.Error(t, err)
	_, err = s.FindReservationRow(context.Background(), "NOPE22")
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestSheetsService_EnsureHeader(t *testing.T) {
	fake, s := setupSheets(t)
	require.NoError(t, s.EnsureHeader(context.Background()))

	body := fake.bodies["PUT Reservations!A1:I1"]
	require.Len(t, body.Values, 1)
	assert.Equal(t, "Code", body.Values[0][0])
}

func TestFirstRow(t *testing.T) {
	row, ok := firstRow("Reservations!A7:I7")
	assert.True(t, ok)
	assert.Equal(t, 7, row)

	_, ok = firstRow("Reservations!A:A")
	assert.False(t, ok)
}

func TestServiceAccountEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"client_email":"sync@kaptam.iam.gserviceaccount.com"}`), 0o600))

	email, err := ServiceAccountEmail(path)
	require.NoError(t, err)
	assert.Equal(t, "sync@kaptam.iam.gserviceaccount.com", email)

	_, err = ServiceAccountEmail(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
