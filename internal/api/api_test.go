package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/erazemk/alergo/internal/auth"
	"github.com/erazemk/alergo/internal/db"
	"github.com/erazemk/alergo/internal/model"
	"github.com/erazemk/alergo/internal/store"
)

const testJWTSecret = "test-secret"

var testToday = time.Date(2026, time.October, 19, 9, 30, 0, 0, time.UTC)

type testServer struct {
	*httptest.Server
	DB    *sql.DB
	Token string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	database := db.NewTestDB(t)
	router := LoggingMiddleware(NewRouter(Config{
		DB:        database,
		JWTSecret: testJWTSecret,
		Now:       func() time.Time { return testToday },
	}))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	hash, _ := auth.HashPassword("password")
	store.CreateUser(context.Background(), database, "admin", hash, model.RoleAdmin)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "password"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var login struct {
		Token string `json:"token"`
	}
	json.NewDecoder(resp.Body).Decode(&login)
	if login.Token == "" {
		t.Fatal("empty token from login")
	}

	return &testServer{Server: server, DB: database, Token: login.Token}
}

// do sends a JSON request and decodes the response into out if non-nil.
func (s *testServer) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestLoginEndpoint(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"wrong password", map[string]string{"username": "admin", "password": "wrong"}, http.StatusUnauthorized},
		{"unknown user", map[string]string{"username": "ghost", "password": "password"}, http.StatusUnauthorized},
		{"missing fields", map[string]string{"username": "admin"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.do(t, "POST", "/api/auth/login", "", tt.body, nil); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	s := setupTestServer(t)

	if got := s.do(t, "GET", "/api/extracts", s.Token, nil, nil); got != http.StatusOK {
		t.Fatalf("expected 200 before logout, got %d", got)
	}
	if got := s.do(t, "POST", "/api/auth/logout", s.Token, nil, nil); got != http.StatusOK {
		t.Fatalf("expected 200 from logout, got %d", got)
	}
	if got := s.do(t, "GET", "/api/extracts", s.Token, nil, nil); got != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", got)
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := setupTestServer(t)

	resp, err := http.Get(s.URL + "/api/extracts")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("expected a generated request id")
	}

	const id = "0b8f3a52-6f49-4c8e-9d55-0a5c3f1e2d7b"
	req, _ := http.NewRequest("GET", s.URL+"/api/extracts", nil)
	req.Header.Set(RequestIDHeader, id)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != id {
		t.Errorf("expected incoming id to be echoed, got %q", got)
	}
}

func TestExtractsAPIFlow(t *testing.T) {
	s := setupTestServer(t)

	var created model.Extract
	code := s.do(t, "POST", "/api/extracts", s.Token, map[string]any{
		"name":             "Birch pollen",
		"batch_number":     "B-1",
		"expiry_date":      "2026-11-02",
		"quantity_on_hand": 3,
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}

	if code := s.do(t, "POST", "/api/extracts", s.Token, map[string]any{"name": ""}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty name, got %d", code)
	}
	if code := s.do(t, "POST", "/api/extracts", s.Token, map[string]any{"name": "X", "expiry_date": "02/11/2026"}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date, got %d", code)
	}

	path := "/api/extracts/" + itoa(created.ID)

	var update struct {
		Result string `json:"result"`
	}
	s.do(t, "PUT", path, s.Token, map[string]any{
		"name": "Birch pollen", "batch_number": "B-1", "expiry_date": "2026-11-02", "quantity_on_hand": 3,
	}, &update)
	if update.Result != "no change" {
		t.Errorf("expected no change, got %q", update.Result)
	}

	s.do(t, "PUT", path, s.Token, map[string]any{"name": "Birch pollen", "quantity_on_hand": 3, "notes": "fridge 2"}, &update)
	if update.Result != "updated" {
		t.Errorf("expected updated, got %q", update.Result)
	}

	if code := s.do(t, "PUT", "/api/extracts/999", s.Token, map[string]any{"name": "X"}, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 updating missing extract, got %d", code)
	}

	var stock stockResponse
	if code := s.do(t, "POST", path+"/stock", s.Token, map[string]int{"delta": -2}, &stock); code != http.StatusOK || stock.QuantityOnHand != 1 {
		t.Errorf("expected 200 with quantity 1, got %d %+v", code, stock)
	}
	if code := s.do(t, "POST", path+"/stock", s.Token, map[string]int{"delta": -5}, &stock); code != http.StatusConflict || stock.QuantityOnHand != 1 {
		t.Errorf("expected 409 with unchanged quantity 1, got %d %+v", code, stock)
	}
	if code := s.do(t, "POST", "/api/extracts/999/stock", s.Token, map[string]int{"delta": 1}, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for stock on missing extract, got %d", code)
	}
	if code := s.do(t, "POST", path+"/stock", s.Token, map[string]int{}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 without delta, got %d", code)
	}

	if code := s.do(t, "DELETE", path, s.Token, nil, nil); code != http.StatusOK {
		t.Errorf("expected 200 deleting, got %d", code)
	}
	if code := s.do(t, "GET", path, s.Token, nil, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", code)
	}
}

func TestReportsAPI(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()

	day := func(n int) *time.Time {
		d := model.Day(testToday).AddDate(0, 0, n)
		return &d
	}
	store.CreateExtract(ctx, s.DB, model.ExtractInput{Name: "today", ExpiryDate: day(0), QuantityOnHand: 11})
	store.CreateExtract(ctx, s.DB, model.ExtractInput{Name: "soon", ExpiryDate: day(5), QuantityOnHand: 10})
	store.CreateExtract(ctx, s.DB, model.ExtractInput{Name: "later", ExpiryDate: day(60), QuantityOnHand: 1})

	var expiring struct {
		Days     int `json:"days"`
		Extracts []struct {
			Name     string `json:"name"`
			DaysLeft int    `json:"days_left"`
		} `json:"extracts"`
	}
	if code := s.do(t, "GET", "/api/reports/nearing-expiry", s.Token, nil, &expiring); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if expiring.Days != store.DefaultExpiryDays || len(expiring.Extracts) != 1 || expiring.Extracts[0].DaysLeft != 5 {
		t.Errorf("unexpected nearing expiry report %+v", expiring)
	}

	s.do(t, "GET", "/api/reports/nearing-expiry?days=90", s.Token, nil, &expiring)
	if len(expiring.Extracts) != 2 {
		t.Errorf("expected 2 extracts within 90 days, got %d", len(expiring.Extracts))
	}

	var low struct {
		Extracts []model.Extract `json:"extracts"`
	}
	s.do(t, "GET", "/api/reports/low-stock", s.Token, nil, &low)
	var names []string
	for _, e := range low.Extracts {
		names = append(names, e.Name)
	}
	if diff := cmp.Diff([]string{"later", "soon"}, names); diff != "" {
		t.Errorf("low stock mismatch (-want +got):\n%s", diff)
	}

	if code := s.do(t, "GET", "/api/reports/low-stock?threshold=-1", s.Token, nil, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative threshold, got %d", code)
	}
}

func TestPanelLifecycleAPI(t *testing.T) {
	s := setupTestServer(t)

	var panel model.Panel
	if code := s.do(t, "POST", "/api/panels", s.Token, map[string]string{"name": "Standard"}, &panel); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if code := s.do(t, "POST", "/api/panels", s.Token, map[string]string{"name": "Standard"}, nil); code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate panel, got %d", code)
	}

	var added []model.InventoryExtract
	code := s.do(t, "POST", "/api/inventory", s.Token, map[string]any{
		"name": "Cat", "type": "inhalant", "lot_number": "C1", "manufacturer": "ALK",
		"expiration_date": "2027-01-01", "quantity": 2,
	}, &added)
	if code != http.StatusCreated || len(added) != 2 {
		t.Fatalf("expected 2 inventory rows, got %d %d", code, len(added))
	}
	if !added[0].LoadingDate.Equal(model.Day(testToday)) {
		t.Errorf("expected loading date to default to today, got %v", added[0].LoadingDate)
	}

	var pe model.PanelExtract
	code = s.do(t, "POST", "/api/panels/"+itoa(panel.ID)+"/extracts", s.Token, map[string]int64{"inventory_id": added[0].ID}, &pe)
	if code != http.StatusCreated {
		t.Fatalf("expected 201 assigning, got %d", code)
	}

	var closed store.CloseResult
	code = s.do(t, "POST", "/api/panel-extracts/"+itoa(pe.ID)+"/close", s.Token, nil, &closed)
	if code != http.StatusOK {
		t.Fatalf("expected 200 closing, got %d", code)
	}
	if closed.Replacement == nil {
		t.Fatal("expected the second Cat extract as replacement")
	}

	if code := s.do(t, "POST", "/api/panel-extracts/"+itoa(pe.ID)+"/close", s.Token, nil, nil); code != http.StatusConflict {
		t.Errorf("expected 409 closing twice, got %d", code)
	}

	var fetched model.PanelExtract
	if code := s.do(t, "GET", "/api/panel-extracts/"+itoa(pe.ID), s.Token, nil, &fetched); code != http.StatusOK {
		t.Fatalf("expected 200 fetching closed extract, got %d", code)
	}
	if fetched.Active() || fetched.PanelName != "Standard" {
		t.Errorf("expected a closed Standard extract, got %+v", fetched)
	}
	if code := s.do(t, "GET", "/api/panel-extracts/"+itoa(added[0].ID), s.Token, nil, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for a consumed inventory id, got %d", code)
	}

	var inventory []model.InventoryExtract
	s.do(t, "GET", "/api/inventory", s.Token, nil, &inventory)
	if len(inventory) != 0 {
		t.Errorf("expected inventory to be consumed, got %d rows", len(inventory))
	}

	resp, err := authGet(s, "/api/reports/usage?year=2026&format=csv")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "usage_report_2026.csv") {
		t.Errorf("unexpected Content-Disposition %q", resp.Header.Get("Content-Disposition"))
	}
	if !strings.Contains(string(body), "Cat,inhalant,C1,ALK,2026-10-19,2026-10-19,Standard") {
		t.Errorf("usage csv missing closed extract:\n%s", body)
	}

	if code := s.do(t, "DELETE", "/api/panels/"+itoa(panel.ID), s.Token, nil, nil); code != http.StatusOK {
		t.Errorf("expected 200 deleting panel, got %d", code)
	}
}

func TestLabelUpload(t *testing.T) {
	s := setupTestServer(t)

	e, _ := store.CreateExtract(context.Background(), s.DB, model.ExtractInput{Name: "Labelled"})
	path := s.URL + "/api/extracts/" + itoa(e.ID) + "/label"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("image", "label.txt")
	fw.Write([]byte("definitely not an image"))
	mw.Close()

	req, _ := http.NewRequest("PUT", path, &buf)
	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for non-image upload, got %d", resp.StatusCode)
	}

	resp, err = authGet(s, "/api/extracts/"+itoa(e.ID)+"/label")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 without label, got %d", resp.StatusCode)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	s := setupTestServer(t)

	if code := s.do(t, "GET", "/api/extracts", "", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", code)
	}
	if code := s.do(t, "GET", "/api/extracts", "garbage", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("expected 401 with bad token, got %d", code)
	}
}

func TestRoleBasedAccess(t *testing.T) {
	s := setupTestServer(t)

	hash, _ := auth.HashPassword("password")
	viewer, _ := store.CreateUser(context.Background(), s.DB, "viewer", hash, model.RoleViewer)
	staff, _ := store.CreateUser(context.Background(), s.DB, "staff", hash, model.RoleStaff)
	viewerToken, _ := auth.GenerateToken(testJWTSecret, viewer.ID, viewer.Username, viewer.Role)
	staffToken, _ := auth.GenerateToken(testJWTSecret, staff.ID, staff.Username, staff.Role)

	tests := []struct {
		name   string
		token  string
		method string
		path   string
		body   any
		want   int
	}{
		{"viewer reads", viewerToken, "GET", "/api/extracts", nil, http.StatusOK},
		{"viewer cannot create", viewerToken, "POST", "/api/extracts", map[string]string{"name": "X"}, http.StatusForbidden},
		{"staff creates", staffToken, "POST", "/api/extracts", map[string]string{"name": "X"}, http.StatusCreated},
		{"staff cannot manage users", staffToken, "GET", "/api/users", nil, http.StatusForbidden},
		{"admin manages users", s.Token, "GET", "/api/users", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.do(t, tt.method, tt.path, tt.token, tt.body, nil); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestUsersAPI(t *testing.T) {
	s := setupTestServer(t)

	var u model.User
	code := s.do(t, "POST", "/api/users", s.Token, map[string]string{"username": "nurse", "password": "longenough", "role": "staff"}, &u)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if code := s.do(t, "POST", "/api/users", s.Token, map[string]string{"username": "nurse", "password": "longenough"}, nil); code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate username, got %d", code)
	}
	if code := s.do(t, "POST", "/api/users", s.Token, map[string]string{"username": "short", "password": "x"}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for short password, got %d", code)
	}

	admin, _ := store.GetUserByUsername(context.Background(), s.DB, "admin")
	if code := s.do(t, "PUT", "/api/users/"+itoa(admin.ID), s.Token, map[string]string{"role": "viewer"}, nil); code != http.StatusConflict {
		t.Errorf("expected 409 demoting the last admin, got %d", code)
	}
	if code := s.do(t, "DELETE", "/api/users/"+itoa(admin.ID), s.Token, nil, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 deleting yourself, got %d", code)
	}
	if code := s.do(t, "DELETE", "/api/users/"+itoa(u.ID), s.Token, nil, nil); code != http.StatusOK {
		t.Errorf("expected 200 deleting user, got %d", code)
	}
}

func authGet(s *testServer, path string) (*http.Response, error) {
	req, err := http.NewRequest("GET", s.URL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)
	return http.DefaultClient.Do(req)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
