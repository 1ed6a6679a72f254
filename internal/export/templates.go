package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var sheetTemplate = template.Must(template.New("press-sheet.html").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
	"formatDate": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2 January 2006")
	},
}).ParseFS(templateFS, "templates/press-sheet.html"))

// TemplateData holds data for press sheet rendering
type TemplateData struct {
	SiteName    string
	BaseURL     string
	GeneratedAt time.Time
	Sheet       Sheet
}

// RenderSheetHTML renders the press sheet template
func RenderSheetHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := sheetTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
