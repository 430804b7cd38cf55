package notify

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/erazemk/alergo/internal/metrics"
	"github.com/erazemk/alergo/internal/store"
)

// Result describes a notification run.
type Result struct {
	Sent   bool   `json:"sent"`
	Count  int    `json:"count"`
	Reason string `json:"reason"`
}

// Notifier mails the list of inventory extracts nearing expiry.
type Notifier struct {
	DB      *sql.DB
	Sender  Sender // nil when no API key is configured
	Metrics *metrics.Metrics
	To      string
	From    string
	Days    int
	Now     func() time.Time
}

func (n *Notifier) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

// recipient returns the stored recipient and window, falling back to the
// configured ones.
func (n *Notifier) recipient(ctx context.Context) (string, int, error) {
	to, days := n.To, n.Days

	if v, ok, err := store.GetSetting(ctx, n.DB, store.SettingNotifyTo); err != nil {
		return "", 0, err
	} else if ok && v != "" {
		to = v
	}
	if v, ok, err := store.GetSetting(ctx, n.DB, store.SettingNotifyDays); err != nil {
		return "", 0, err
	} else if ok {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			days = d
		}
	}
	if days <= 0 {
		days = store.DefaultNotifyDays
	}
	return to, days, nil
}

// Enabled reports whether a run can deliver mail: a sender is configured
// and a recipient is known, either stored in settings or configured.
func (n *Notifier) Enabled(ctx context.Context) (bool, error) {
	if n.Sender == nil {
		return false, nil
	}
	to, _, err := n.recipient(ctx)
	if err != nil {
		return false, err
	}
	return to != "", nil
}

// Run sends one notification. A run with nothing to report or without
// delivery configured is skipped with a reason rather than failing.
func (n *Notifier) Run(ctx context.Context) (*Result, error) {
	res, err := n.run(ctx)
	switch {
	case err != nil:
		n.Metrics.Notification(metrics.OutcomeFailed)
	case res.Sent:
		n.Metrics.Notification(metrics.OutcomeSent)
	default:
		n.Metrics.Notification(metrics.OutcomeSkipped)
	}
	return res, err
}

func (n *Notifier) run(ctx context.Context) (*Result, error) {
	if n.Sender == nil {
		return &Result{Reason: "SendGrid API key is not configured"}, nil
	}

	to, days, err := n.recipient(ctx)
	if err != nil {
		return nil, err
	}
	if to == "" {
		return &Result{Reason: "no notification recipient is configured"}, nil
	}

	today := n.now()
	extracts, err := store.ExpiringInventory(ctx, n.DB, today, days)
	if err != nil {
		return nil, err
	}
	if len(extracts) == 0 {
		return &Result{Reason: fmt.Sprintf("no extracts expire within %d days", days)}, nil
	}

	msg, err := Render(today, days, extracts)
	if err != nil {
		return nil, err
	}
	if err := n.Sender.Send(ctx, to, n.From, msg); err != nil {
		return nil, err
	}

	slog.Info("expiry notification sent", "to", to, "extracts", len(extracts), "days", days)
	return &Result{
		Sent:   true,
		Count:  len(extracts),
		Reason: fmt.Sprintf("notification sent to %s", to),
	}, nil
}
