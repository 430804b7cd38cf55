// Package notify sends the expiry notification mail and schedules it.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/erazemk/alergo/internal/model"
	"github.com/erazemk/alergo/internal/report"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	HTML    string
}

// Row is one extract line of the notification table.
type Row struct {
	model.InventoryExtract
	DaysLeft int
}

var messageTmpl = template.Must(template.New("expiry").Parse(`<html>
<head>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
table { width: 100%; border-collapse: collapse; margin: 20px 0; }
th, td { padding: 12px 15px; border-bottom: 1px solid #ddd; text-align: left; }
th { background-color: #f8f8f8; }
.expired { color: #cc0000; font-weight: bold; }
</style>
</head>
<body>
<h1>Allergenic extracts nearing expiry</h1>
<p>The following extracts in inventory expire within <strong>{{.Days}} days</strong> of {{.Today}}.</p>
<table>
<tr><th>Name</th><th>Type</th><th>Lot</th><th>Manufacturer</th><th>Expires</th><th>Days left</th><th>Quantity</th></tr>
{{range .Rows}}<tr{{if le .DaysLeft 0}} class="expired"{{end}}>
<td>{{.Name}}</td><td>{{.Type}}</td><td>{{.LotNumber}}</td><td>{{.Manufacturer}}</td>
<td>{{.ExpirationDate.Format "2006-01-02"}}</td><td>{{.DaysLeft}}</td><td>{{.Quantity}}</td>
</tr>
{{end}}</table>
<p>Plan replacements for these extracts so panels are not left without stock.</p>
<p><small>This message was generated automatically. Please do not reply.</small></p>
</body>
</html>
`))

// Render builds the notification for extracts expiring within days of today.
func Render(today time.Time, days int, extracts []model.InventoryExtract) (*Message, error) {
	rows := make([]Row, 0, len(extracts))
	for _, x := range extracts {
		rows = append(rows, Row{InventoryExtract: x, DaysLeft: report.DaysLeft(today, x.ExpirationDate)})
	}

	var buf bytes.Buffer
	err := messageTmpl.Execute(&buf, map[string]any{
		"Days":  days,
		"Today": model.FormatDate(today),
		"Rows":  rows,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering notification: %w", err)
	}

	return &Message{
		Subject: fmt.Sprintf("%d allergenic extracts expire within %d days", len(extracts), days),
		HTML:    buf.String(),
	}, nil
}
