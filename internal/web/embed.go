package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*
var templatesFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"str":   strOrDash,
	"coord": coordOrDash,
	"inc":   func(i int) int { return i + 1 },
}).ParseFS(templatesFS, "templates/*.html"))

// GetTemplates returns the parsed templates.
func GetTemplates() *template.Template {
	return templates
}
