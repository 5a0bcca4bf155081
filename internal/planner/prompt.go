package planner

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/a3tai/pdf-formfill/internal/fielddata"
)

var promptTemplate = template.Must(template.New("plan").Parse(
	`I need to fill out this form page with the following data: {{.Data}}

The attached image is {{.Width}} pixels wide and {{.Height}} pixels tall. Origin is the top-left corner, x grows to the right and y grows downward.

Identify where each piece of data should be written. For every field you can place, give:
1. the field name exactly as it appears in my data,
2. the text to write,
3. the pixel coordinates (x, y) of the LEFT END OF THE TEXT BASELINE inside the blank area next to or below the printed label,
4. your confidence between 0 and 1.

Respond with a JSON array only, like this:
[
  {"field_name": "First Name", "text": "John", "x": 150, "y": 200, "confidence": 0.9}
]
{{if .Hint}}
{{.Hint}}{{end}}
Skip data that has no matching field on this page. Be precise with coordinates.`))

type promptData struct {
	Data   string
	Width  int
	Height int
	Hint   string
}

// BuildPrompt renders the instruction sent along with a page image.
func BuildPrompt(data fielddata.FieldData, width, height int, hint string) (string, error) {
	var b strings.Builder
	err := promptTemplate.Execute(&b, promptData{
		Data:   data.String(),
		Width:  width,
		Height: height,
		Hint:   strings.TrimSpace(hint),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return b.String(), nil
}
