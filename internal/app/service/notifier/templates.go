package notifier

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/types"
)

type templateData struct {
	ShopName      string
	ShopPhone     string
	ShopAddress   string
	ShopHours     string
	CustomerName  string
	ServiceNumber string
	Device        string
	Date          string
	Fee           string
	Year          int
}

const layout = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: #4c51bf; color: white; padding: 30px; border-radius: 10px; text-align: center;">
    <h1 style="margin: 0; font-size: 24px;">{{.ShopName}}</h1>
    <p style="margin: 10px 0 0 0; opacity: 0.9;">Technical Service</p>
  </div>
  <div style="background: white; padding: 30px; border-radius: 10px; margin-top: 20px;">
    <p>Dear <strong>{{.CustomerName}}</strong>,</p>
    {{template "body" .}}
    <table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
      <tr><td><strong>Service No:</strong></td><td style="text-align: right;">{{.ServiceNumber}}</td></tr>
      <tr><td><strong>Device:</strong></td><td style="text-align: right;">{{.Device}}</td></tr>
      {{if .Fee}}<tr><td><strong>Fee:</strong></td><td style="text-align: right; font-weight: bold;">{{.Fee}}</td></tr>{{end}}
      <tr><td><strong>Date:</strong></td><td style="text-align: right;">{{.Date}}</td></tr>
    </table>
    {{if or .ShopPhone .ShopAddress .ShopHours}}<div style="background: #e9ecef; padding: 15px; border-radius: 8px;">
      {{if .ShopAddress}}<p><strong>Address:</strong> {{.ShopAddress}}</p>{{end}}
      {{if .ShopPhone}}<p><strong>Phone:</strong> {{.ShopPhone}}</p>{{end}}
      {{if .ShopHours}}<p><strong>Opening hours:</strong> {{.ShopHours}}</p>{{end}}
    </div>{{end}}
  </div>
  <p style="text-align: center; color: #666; font-size: 12px;">&copy; {{.Year}} {{.ShopName}}</p>
</div>`

type notificationTemplate struct {
	subject string
	tmpl    *template.Template
	// needsFee rejects rendering when no fee is known.
	needsFee bool
}

func mustTemplate(body string) *template.Template {
	t := template.Must(template.New("layout").Parse(layout))
	return template.Must(t.New("body").Parse(body))
}

var templates = map[types.NotificationType]notificationTemplate{
	types.NotificationTypeServiceReceived: {
		subject: "Your device has been received",
		tmpl:    mustTemplate(`<p>Your device has been checked in. We will keep you posted as the repair progresses.</p>`),
	},
	types.NotificationTypeCustomerApprovalPending: {
		subject:  "Your approval is needed",
		needsFee: true,
		tmpl:     mustTemplate(`<p>Diagnosis is complete and the repair has been quoted. Please confirm so we can start working on it.</p>`),
	},
	types.NotificationTypeServiceCompleted: {
		subject: "Your device is ready for pickup",
		tmpl:    mustTemplate(`<p>The repair is finished. You can collect your device during opening hours.</p>`),
	},
	types.NotificationTypePaymentReminder: {
		subject:  "Payment reminder",
		needsFee: true,
		tmpl:     mustTemplate(`<p>This is a friendly reminder that a payment is outstanding for the repair below.</p>`),
	},
}

func render(t types.NotificationType, data templateData) (string, string, error) {
	nt, ok := templates[t]
	if !ok {
		return "", "", apperr.Invalid("unknown notification type %q", t)
	}
	if nt.needsFee && data.Fee == "" {
		return nt.subject, "", apperr.Invalid("%s notification requires a fee", t)
	}
	var buf bytes.Buffer
	if err := nt.tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nt.subject, "", fmt.Errorf("render %s: %w", t, err)
	}
	return nt.subject, buf.String(), nil
}
