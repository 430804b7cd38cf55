package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/alergo/internal/metrics"
	"github.com/erazemk/alergo/internal/model"
)

// Config holds the dependencies of the API handlers.
type Config struct {
	DB        *sql.DB
	JWTSecret string
	Metrics   *metrics.Metrics
	// Now returns the current time; "today" for reports and panel changes
	// is its calendar date. Defaults to time.Now.
	Now func() time.Time
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	db := cfg.DB
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: cfg.JWTSecret}
	usersHandler := &UsersHandler{DB: db}
	extractsHandler := &ExtractsHandler{DB: db, Metrics: cfg.Metrics}
	reportsHandler := &ReportsHandler{DB: db, Now: cfg.Now}
	panelsHandler := &PanelsHandler{DB: db, Metrics: cfg.Metrics, Now: cfg.Now}
	inventoryHandler := &InventoryHandler{DB: db, Now: cfg.Now}

	authMW := AuthMiddleware(cfg.JWTSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireStaff := RequireRole(model.RoleStaff)

	read := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	write := func(h http.HandlerFunc) http.Handler { return authMW(requireStaff(h)) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	mux.Handle("POST /api/auth/logout", read(authHandler.Logout))
	mux.Handle("PUT /api/auth/password", read(authHandler.ChangePassword))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Stock-tracked extracts: read (all roles), write (staff+).
	mux.Handle("GET /api/extracts", read(extractsHandler.List))
	mux.Handle("POST /api/extracts", write(extractsHandler.Create))
	mux.Handle("GET /api/extracts/{id}", read(extractsHandler.Get))
	mux.Handle("PUT /api/extracts/{id}", write(extractsHandler.Update))
	mux.Handle("DELETE /api/extracts/{id}", write(extractsHandler.Delete))
	mux.Handle("POST /api/extracts/{id}/stock", write(extractsHandler.Stock))
	mux.Handle("PUT /api/extracts/{id}/label", write(extractsHandler.UploadLabel))
	mux.Handle("GET /api/extracts/{id}/label", read(extractsHandler.GetLabel))

	// Reports (all roles).
	mux.Handle("GET /api/reports/nearing-expiry", read(reportsHandler.NearingExpiry))
	mux.Handle("GET /api/reports/low-stock", read(reportsHandler.LowStock))
	mux.Handle("GET /api/reports/usage", read(reportsHandler.Usage))

	// Panels: read (all roles), write (staff+).
	mux.Handle("GET /api/panels", read(panelsHandler.List))
	mux.Handle("POST /api/panels", write(panelsHandler.Create))
	mux.Handle("GET /api/panels/{id}", read(panelsHandler.Get))
	mux.Handle("DELETE /api/panels/{id}", write(panelsHandler.Delete))
	mux.Handle("POST /api/panels/{id}/extracts", write(panelsHandler.Assign))
	mux.Handle("GET /api/panel-extracts/{id}", read(panelsHandler.GetExtract))
	mux.Handle("POST /api/panel-extracts/{id}/close", write(panelsHandler.Close))

	// Inventory: read (all roles), write (staff+).
	mux.Handle("GET /api/inventory", read(inventoryHandler.List))
	mux.Handle("POST /api/inventory", write(inventoryHandler.Add))
	mux.Handle("DELETE /api/inventory/{id}", write(inventoryHandler.Delete))

	return mux
}
