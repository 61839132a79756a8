package notify

import (
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"

	"kaptam/internal/models"
)

const (
	KindCreated = "created"
	KindUpdated = "updated"
)

// view is what the mail templates render.
type view struct {
	R          *models.Reservation
	Updated    bool
	ModifyLink string
}

func newView(kind string, r *models.Reservation, siteURL string) view {
	return view{R: r, Updated: kind == KindUpdated, ModifyLink: modifyLink(siteURL, r.Code)}
}

// modifyLink points the customer back at the cart page with their code filled in.
func modifyLink(siteURL, code string) string {
	if siteURL == "" {
		return ""
	}
	return strings.TrimRight(siteURL, "/") + "/cart.html?code=" + url.QueryEscape(code)
}

var customerText = texttemplate.Must(texttemplate.New("customer.txt").Parse(
	`{{if .Updated}}Your reservation has been updated.{{else}}Thank you for your reservation!{{end}}

Reservation code: {{.R.Code}}
Name: {{.R.Name}}
{{- if .R.Date}}
Visit date: {{.R.Date}}
{{- end}}

Games:
{{- range .R.Items}}
 - {{.Name}} ({{.Type}})
{{- end}}
{{- if .R.AdditionalInfo}}

Additional info: {{.R.AdditionalInfo}}
{{- end}}
{{- if .ModifyLink}}

Modify your reservation: {{.ModifyLink}}
{{- end}}

Keep your reservation code safe.
`))

var customerHTML = htmltemplate.Must(htmltemplate.New("customer.html").Parse(
	`<!DOCTYPE html>
<html><body>
<h1>Kaptam Gamers</h1>
<p>{{if .Updated}}Your reservation has been updated successfully!{{else}}Thank you for your reservation!{{end}}</p>
<h2>Reservation code: <strong>{{.R.Code}}</strong></h2>
<p>Name: {{.R.Name}}</p>
{{if .R.Date}}<p>Visit date: {{.R.Date}}</p>{{end}}
<h3>Games</h3>
<ul>{{range .R.Items}}<li>{{.Name}} <em>({{.Type}})</em></li>{{end}}</ul>
{{if .R.AdditionalInfo}}<p>Additional info: {{.R.AdditionalInfo}}</p>{{end}}
{{if .ModifyLink}}<p><a href="{{.ModifyLink}}">Modify your reservation</a></p>{{end}}
</body></html>
`))

var adminText = texttemplate.Must(texttemplate.New("admin.txt").Parse(
	`{{if .Updated}}Reservation updated{{else}}New reservation{{end}}: {{.R.Code}}

Name: {{.R.Name}}
Email: {{if .R.Email}}{{.R.Email}}{{else}}-{{end}}
Controller: {{.R.Controller}}
Visit date: {{if .R.Date}}{{.R.Date}}{{else}}not set{{end}}
{{- if .R.AdditionalInfo}}
Additional info: {{.R.AdditionalInfo}}
{{- end}}

Games ({{len .R.Items}}):
{{- range .R.Items}}
 - [{{.Type}}] {{.Name}} (#{{.ID}})
{{- end}}
`))

var adminHTML = htmltemplate.Must(htmltemplate.New("admin.html").Parse(
	`<!DOCTYPE html>
<html><body>
<h1>{{if .Updated}}Reservation Updated{{else}}New Reservation{{end}}</h1>
<h2>Reservation code: {{.R.Code}}</h2>
<p>Name: {{.R.Name}}<br>
Email: {{if .R.Email}}{{.R.Email}}{{else}}-{{end}}<br>
Controller: {{.R.Controller}}<br>
Visit date: {{if .R.Date}}{{.R.Date}}{{else}}not set{{end}}</p>
{{if .R.AdditionalInfo}}<p>Additional info: {{.R.AdditionalInfo}}</p>{{end}}
<h3>Games ({{len .R.Items}} items)</h3>
<ul>{{range .R.Items}}<li>[{{.Type}}] {{.Name}} (#{{.ID}})</li>{{end}}</ul>
</body></html>
`))

func customerSubject(kind string, r *models.Reservation) string {
	if kind == KindUpdated {
		return "Kaptam Reservation Updated - Code: " + r.Code
	}
	return "Kaptam Reservation Confirmation - Code: " + r.Code
}

func adminSubject(kind string, r *models.Reservation) string {
	if kind == KindUpdated {
		return "Reservation Updated - " + r.Name + " - Code: " + r.Code
	}
	return "New Reservation - " + r.Name + " - Code: " + r.Code
}
