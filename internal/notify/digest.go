package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/sha1n/invitewatch/internal/domain"
)

var funcs = map[string]any{
	"when": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("2006-01-02 15:04:05")
	},
}

var htmlDigest = htmltemplate.Must(htmltemplate.New("digest").Funcs(funcs).Parse(`<!DOCTYPE html>
<html><body style="font-family:sans-serif">
<h2>{{len .Codes}} new invite code(s)</h2>
<table cellpadding="6" style="border-collapse:collapse">
<tr style="background:#f2f2f2"><th align="left">Code</th><th align="left">Kind</th><th align="left">Source</th><th align="left">Seen</th><th align="left">Context</th></tr>
{{range .Codes}}<tr>
<td><strong style="font-size:1.2em;font-family:monospace">{{.Text}}</strong></td>
<td>{{.Kind}}</td>
<td>{{.Source}} {{.SourceID}}</td>
<td>{{when .DiscoveredAt}}</td>
<td>{{.Context}}</td>
</tr>
{{end}}</table>
<p style="color:#888">Sent by invitewatch at {{when .SentAt}}</p>
</body></html>
`))

var textDigest = texttemplate.Must(texttemplate.New("digest").Funcs(funcs).Parse(`{{len .Codes}} new invite code(s)
{{range .Codes}}
{{.Text}}  [{{.Kind}}, {{.Source}} {{.SourceID}}, {{when .DiscoveredAt}}]
  {{.Context}}
{{end}}
Sent by invitewatch at {{when .SentAt}}
`))

type digest struct {
	Codes  []domain.CodeCandidate
	SentAt time.Time
}

// Subject returns the message subject for a batch, listing the codes.
func Subject(codes []domain.CodeCandidate) string {
	texts := make([]string, len(codes))
	for i, c := range codes {
		texts[i] = c.Text
	}
	return fmt.Sprintf("[invitewatch] %d new invite code(s): %s", len(codes), strings.Join(texts, ", "))
}

// Render returns the HTML and plain-text bodies for a batch.
func Render(codes []domain.CodeCandidate, sentAt time.Time) (string, string, error) {
	d := digest{Codes: codes, SentAt: sentAt}

	var h, t bytes.Buffer
	if err := htmlDigest.Execute(&h, d); err != nil {
		return "", "", fmt.Errorf("failed to render HTML digest: %w", err)
	}
	if err := textDigest.Execute(&t, d); err != nil {
		return "", "", fmt.Errorf("failed to render text digest: %w", err)
	}
	return h.String(), t.String(), nil
}
