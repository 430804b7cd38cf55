package web

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/alergo/internal/metrics"
	"github.com/erazemk/alergo/internal/model"
	"github.com/erazemk/alergo/internal/notify"
	webembed "github.com/erazemk/alergo/web"
)

// Config holds the dependencies of the web pages.
type Config struct {
	DB        *sql.DB
	JWTSecret string
	Metrics   *metrics.Metrics
	Notifier  *notify.Notifier
	Now       func() time.Time
}

// NewRouter creates the web page router with all page routes registered.
func NewRouter(cfg Config) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Server{
		DB:        cfg.DB,
		Templates: templates,
		JWTSecret: cfg.JWTSecret,
		Metrics:   cfg.Metrics,
		Notifier:  cfg.Notifier,
		Now:       cfg.Now,
	}

	mux := http.NewServeMux()
	cookieAuth := CookieAuthMiddleware(cfg.JWTSecret, cfg.DB)
	staff := requireWebRole(model.RoleStaff)
	admin := requireWebRole(model.RoleAdmin)

	read := func(h http.HandlerFunc) http.Handler { return cookieAuth(h) }
	write := func(h http.HandlerFunc) http.Handler { return cookieAuth(staff(h)) }
	adminOnly := func(h http.HandlerFunc) http.Handler { return cookieAuth(admin(h)) }

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	// Public routes.
	mux.HandleFunc("GET /login", s.LoginPage)
	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.HandleFunc("POST /logout", s.Logout)

	mux.Handle("GET /{$}", read(s.Dashboard))

	mux.Handle("GET /extracts", read(s.ExtractsPage))
	mux.Handle("POST /extracts", write(s.ExtractCreateSubmit))
	mux.Handle("GET /extracts/{id}", read(s.ExtractDetailPage))
	mux.Handle("POST /extracts/{id}", write(s.ExtractUpdateSubmit))
	mux.Handle("POST /extracts/{id}/delete", write(s.ExtractDeleteSubmit))
	mux.Handle("POST /extracts/{id}/stock", write(s.ExtractStockSubmit))
	mux.Handle("POST /extracts/{id}/label", write(s.ExtractLabelSubmit))
	mux.Handle("GET /extracts/{id}/label", read(s.ExtractLabelGet))

	mux.Handle("GET /reports/nearing-expiry", read(s.NearingExpiryPage))
	mux.Handle("POST /reports/nearing-expiry", read(s.NearingExpiryPage))
	mux.Handle("GET /reports/low-stock", read(s.LowStockPage))
	mux.Handle("POST /reports/low-stock", read(s.LowStockPage))
	mux.Handle("GET /reports/usage", read(s.UsagePage))
	mux.Handle("POST /reports/usage", read(s.UsageDownload))
	mux.Handle("POST /notifications/send", write(s.SendNotification))

	mux.Handle("GET /panels", read(s.PanelsPage))
	mux.Handle("POST /panels", write(s.PanelCreateSubmit))
	mux.Handle("GET /panels/{id}", read(s.PanelDetailPage))
	mux.Handle("POST /panels/{id}/extracts", write(s.PanelAssignSubmit))
	mux.Handle("POST /panels/{id}/delete", write(s.PanelDeleteSubmit))
	mux.Handle("POST /panel-extracts/{id}/close", write(s.PanelExtractCloseSubmit))

	mux.Handle("GET /inventory", read(s.InventoryPage))
	mux.Handle("POST /inventory", write(s.InventoryAddSubmit))
	mux.Handle("POST /inventory/{id}/delete", write(s.InventoryDeleteSubmit))

	mux.Handle("GET /users", adminOnly(s.UsersPage))
	mux.Handle("POST /users", adminOnly(s.UserCreateSubmit))
	mux.Handle("POST /users/{id}/role", adminOnly(s.UserUpdateRoleSubmit))
	mux.Handle("POST /users/{id}/password", adminOnly(s.UserResetPasswordSubmit))
	mux.Handle("POST /users/{id}/delete", adminOnly(s.UserDeleteSubmit))

	mux.Handle("GET /settings", read(s.SettingsPage))
	mux.Handle("POST /settings/password", read(s.PasswordSubmit))
	mux.Handle("POST /settings/notifications", adminOnly(s.NotificationSettingsSubmit))

	return mux, nil
}
