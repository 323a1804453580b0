package export

import (
	"bytes"
	"html/template"
)

var pageTemplate = template.Must(template.New("idea").Parse(ideaTemplate))

type templateData struct {
	Title       string
	OwnerName   string
	ContentHTML template.HTML
}

func renderPageHTML(page Page) (string, error) {
	data := templateData{
		Title:       page.Title,
		OwnerName:   page.OwnerName,
		ContentHTML: template.HTML(markdownToHTML(page.PublicMD)),
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const ideaTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    pre { background: #f5f5f5; padding: 1rem; overflow-x: auto; }
    code { font-family: monospace; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  {{if .OwnerName}}<div class="meta">by {{.OwnerName}}</div>{{end}}
  {{.ContentHTML}}
</body>
</html>`
