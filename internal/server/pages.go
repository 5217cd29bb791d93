package server

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/intentguard/internal/payment"
	"github.com/ppiankov/intentguard/internal/store"
)

type resultPage struct {
	ExecutionID      string
	SessionID        string
	BookingReference string
	Amount           string
	Error            string
}

const pageStyle = `<style>
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;display:flex;justify-content:center;align-items:center;min-height:100vh;margin:0;padding:20px;background:#f1f5f9}
.card{background:#fff;border-radius:20px;padding:48px;max-width:520px;width:100%;box-shadow:0 25px 50px -12px rgba(0,0,0,.25);text-align:center}
.ref{font-family:monospace;font-size:1.4em;margin:16px 0}
.muted{color:#64748b;font-size:.9em}
</style>`

var successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html><head><title>Payment Successful</title><meta name="viewport" content="width=device-width, initial-scale=1.0">` + pageStyle + `</head>
<body><div class="card">
{{if .Error}}<h1>Payment not confirmed</h1><p>{{.Error}}</p>
{{else}}<h1>Payment Successful</h1>
<p>Your booking has been confirmed.</p>
{{if .BookingReference}}<div class="ref">{{.BookingReference}}</div>{{end}}
{{if .Amount}}<p>Amount paid: {{.Amount}}</p>{{end}}
{{end}}
{{if .ExecutionID}}<p class="muted">Execution {{.ExecutionID}}</p>{{end}}
</div></body></html>`))

var cancelPage = template.Must(template.New("cancel").Parse(`<!DOCTYPE html>
<html><head><title>Payment Cancelled</title><meta name="viewport" content="width=device-width, initial-scale=1.0">` + pageStyle + `</head>
<body><div class="card">
<h1>Payment Cancelled</h1>
<p>No charge was made. You can return and try again at any time.</p>
{{if .ExecutionID}}<p class="muted">Execution {{.ExecutionID}}</p>{{end}}
</div></body></html>`))

func renderPage(w http.ResponseWriter, t *template.Template, page resultPage) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, page); err != nil {
		log.Error().Err(err).Str("template", t.Name()).Msg("failed to render page")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func formatSessionAmount(sess *store.Session) string {
	return payment.FormatAmount(sess.Amount, sess.Currency)
}
