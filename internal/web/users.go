package web

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/alergo/internal/auth"
	"github.com/erazemk/alergo/internal/model"
	"github.com/erazemk/alergo/internal/store"
)

// UsersPage handles GET /users (admin only).
func (s *Server) UsersPage(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list users", "error", err)
	}

	s.Templates.Render(w, "users.html", &struct {
		PageData
		Users []model.User
		Roles []string
	}{
		PageData: s.page(r, "Users"),
		Users:    users,
		Roles:    []string{model.RoleViewer, model.RoleStaff, model.RoleAdmin},
	})
}

// UserCreateSubmit handles POST /users (admin only).
func (s *Server) UserCreateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	role := r.FormValue("role")
	if role == "" {
		role = model.RoleViewer
	}

	if username == "" {
		redirectError(w, r, "/users", "Enter a username.")
		return
	}
	if err := model.ValidatePassword(password); err != nil {
		redirectError(w, r, "/users", userMessage(err))
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		redirectError(w, r, "/users", "Could not create the user.")
		return
	}

	user, err := store.CreateUser(r.Context(), s.DB, username, hash, role)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		redirectError(w, r, "/users", "That username is taken.")
		return
	case errors.Is(err, model.ErrInvalid):
		redirectError(w, r, "/users", userMessage(err))
		return
	case err != nil:
		slog.Error("failed to create user", "error", err)
		redirectError(w, r, "/users", "Could not create the user.")
		return
	}

	slog.Info("user created", "user", claims.Username, "new_user", user.Username, "role", user.Role)
	redirectOK(w, r, "/users", "Created "+user.Username+".")
}

// UserUpdateRoleSubmit handles POST /users/{id}/role (admin only).
func (s *Server) UserUpdateRoleSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		redirectError(w, r, "/users", "Invalid user.")
		return
	}

	role := r.FormValue("role")
	if !model.ValidRole(role) {
		redirectError(w, r, "/users", "Unknown role.")
		return
	}
	if role != model.RoleAdmin {
		if ok, err := s.keepsAnAdmin(r.Context(), id); err != nil {
			slog.Error("failed to count administrators", "error", err)
			redirectError(w, r, "/users", "Could not change the role.")
			return
		} else if !ok {
			redirectError(w, r, "/users", "The last administrator cannot be demoted.")
			return
		}
	}

	if err := store.UpdateUserRole(r.Context(), s.DB, id, role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			redirectError(w, r, "/users", "That user no longer exists.")
			return
		}
		slog.Error("failed to update role", "error", err)
		redirectError(w, r, "/users", "Could not change the role.")
		return
	}

	slog.Info("user role updated", "user", claims.Username, "target_user", id, "new_role", role)
	redirectOK(w, r, "/users", "Role updated.")
}

// UserResetPasswordSubmit handles POST /users/{id}/password (admin only).
func (s *Server) UserResetPasswordSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		redirectError(w, r, "/users", "Invalid user.")
		return
	}

	newPassword := r.FormValue("new_password")
	if err := model.ValidatePassword(newPassword); err != nil {
		redirectError(w, r, "/users", userMessage(err))
		return
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		redirectError(w, r, "/users", "Could not reset the password.")
		return
	}
	if err := store.UpdateUserPassword(r.Context(), s.DB, id, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			redirectError(w, r, "/users", "That user no longer exists.")
			return
		}
		slog.Error("failed to reset password", "error", err)
		redirectError(w, r, "/users", "Could not reset the password.")
		return
	}

	slog.Info("user password reset", "user", claims.Username, "target_user", id)
	redirectOK(w, r, "/users", "Password reset.")
}

// UserDeleteSubmit handles POST /users/{id}/delete (admin only).
func (s *Server) UserDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		redirectError(w, r, "/users", "Invalid user.")
		return
	}
	if id == claims.UserID {
		redirectError(w, r, "/users", "You cannot delete your own account.")
		return
	}
	if ok, err := s.keepsAnAdmin(r.Context(), id); err != nil {
		slog.Error("failed to count administrators", "error", err)
		redirectError(w, r, "/users", "Could not delete the user.")
		return
	} else if !ok {
		redirectError(w, r, "/users", "The last administrator cannot be deleted.")
		return
	}

	if err := store.DeleteUser(r.Context(), s.DB, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			redirectError(w, r, "/users", "That user no longer exists.")
			return
		}
		slog.Error("failed to delete user", "error", err)
		redirectError(w, r, "/users", "Could not delete the user.")
		return
	}

	slog.Info("user deleted", "user", claims.Username, "deleted_user", id)
	redirectOK(w, r, "/users", "User deleted.")
}

// keepsAnAdmin reports whether at least one administrator remains when user
// id stops being one.
func (s *Server) keepsAnAdmin(ctx context.Context, id int64) (bool, error) {
	user, err := store.GetUser(ctx, s.DB, id)
	if err != nil || user == nil || user.Role != model.RoleAdmin {
		return true, err
	}
	n, err := store.CountAdmins(ctx, s.DB)
	if err != nil {
		return false, err
	}
	return n > 1, nil
}

// SettingsPage handles GET /settings.
func (s *Server) SettingsPage(w http.ResponseWriter, r *http.Request) {
	pd := s.page(r, "Settings")

	to, days, err := notifySettings(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to load notification settings", "error", err)
	}

	s.Templates.Render(w, "settings.html", &struct {
		PageData
		NotifyTo   string
		NotifyDays string
	}{
		PageData:   pd,
		NotifyTo:   to,
		NotifyDays: days,
	})
}

func notifySettings(ctx context.Context, db *sql.DB) (to, days string, err error) {
	if to, _, err = store.GetSetting(ctx, db, store.SettingNotifyTo); err != nil {
		return "", "", err
	}
	if days, _, err = store.GetSetting(ctx, db, store.SettingNotifyDays); err != nil {
		return "", "", err
	}
	return to, days, nil
}

// PasswordSubmit handles POST /settings/password for the signed-in user.
func (s *Server) PasswordSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	newPassword := r.FormValue("new_password")
	if err := model.ValidatePassword(newPassword); err != nil {
		redirectError(w, r, "/settings", userMessage(err))
		return
	}
	if newPassword != r.FormValue("confirm_password") {
		redirectError(w, r, "/settings", "The new passwords do not match.")
		return
	}

	user, err := store.GetUser(r.Context(), s.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		redirectError(w, r, "/settings", "Could not change the password.")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, r.FormValue("current_password")) {
		redirectError(w, r, "/settings", "The current password is incorrect.")
		return
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		redirectError(w, r, "/settings", "Could not change the password.")
		return
	}
	if err := store.UpdateUserPassword(r.Context(), s.DB, user.ID, hash); err != nil {
		slog.Error("failed to update password", "error", err)
		redirectError(w, r, "/settings", "Could not change the password.")
		return
	}

	slog.Info("user changed own password", "user", claims.Username)
	redirectOK(w, r, "/settings", "Password changed.")
}

// NotificationSettingsSubmit handles POST /settings/notifications (admin only).
// Empty fields fall back to the server configuration.
func (s *Server) NotificationSettingsSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	to := strings.TrimSpace(r.FormValue("notify_to"))
	if to != "" && !strings.Contains(to, "@") {
		redirectError(w, r, "/settings", "Enter a valid email address.")
		return
	}
	days := strings.TrimSpace(r.FormValue("notify_days"))
	if days != "" {
		if n, err := strconv.Atoi(days); err != nil || n <= 0 {
			redirectError(w, r, "/settings", "The notification window must be a positive number of days.")
			return
		}
	}

	for key, value := range map[string]string{
		store.SettingNotifyTo:   to,
		store.SettingNotifyDays: days,
	} {
		if err := store.SetSetting(r.Context(), s.DB, key, value); err != nil {
			slog.Error("failed to save setting", "key", key, "error", err)
			redirectError(w, r, "/settings", "Could not save the settings.")
			return
		}
	}

	slog.Info("notification settings updated", "user", claims.Username, "to", to, "days", days)
	redirectOK(w, r, "/settings", "Notification settings saved.")
}
