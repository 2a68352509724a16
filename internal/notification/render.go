package notification

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/Rocksteady808/roolify-sub002/internal/routing"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// checkboxValues are the raw values Webflow submits for a ticked checkbox
var checkboxValues = map[string]struct{}{
	"on":      {},
	"true":    {},
	"yes":     {},
	"checked": {},
}

// Template is the per-form presentation configuration
type Template struct {
	Subject             string
	HTML                string
	CustomValueTemplate string
	CustomValues        map[string]string
}

// Content is the submission being rendered
type Content struct {
	FormName    string
	SiteID      string
	SubmittedAt time.Time
	Fields      routing.Fields
}

// Renderer fills subject and body templates from a submission
type Renderer struct {
	resolver routing.Resolver
}

// NewRenderer creates a renderer resolving placeholders with resolver
func NewRenderer(resolver routing.Resolver) *Renderer {
	return &Renderer{resolver: resolver}
}

// Render returns the subject and HTML body. Placeholders name a field (any
// casing or punctuation) or a builtin. Unknown placeholders render empty.
func (r *Renderer) Render(tmpl Template, c Content) (subject, body string) {
	subject = strings.TrimSpace(tmpl.Subject)
	if subject == "" {
		subject = "New submission: {{form_name}}"
	}
	subject = r.expand(subject, tmpl, c, false)
	subject = strings.Join(strings.Fields(subject), " ")

	if strings.TrimSpace(tmpl.HTML) == "" {
		return subject, r.defaultHTML(tmpl, c)
	}
	return subject, r.expand(tmpl.HTML, tmpl, c, true)
}

func (r *Renderer) expand(s string, tmpl Template, c Content, escape bool) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := r.builtin(name, tmpl, c, escape); ok {
			return v
		}

		res := r.resolver.Resolve(c.Fields, name)
		if !res.Found {
			return ""
		}
		value, _ := c.Fields.Get(res.Key)
		display := r.display(res.Key, value, tmpl)
		if escape {
			return html.EscapeString(display)
		}
		return display
	})
}

func (r *Renderer) builtin(name string, tmpl Template, c Content, escape bool) (string, bool) {
	var v string
	switch strings.ToLower(name) {
	case "form_name":
		v = c.FormName
	case "site_id":
		v = c.SiteID
	case "submitted_at":
		v = formatTime(c.SubmittedAt)
	case "all_fields":
		if escape {
			return r.fieldsTable(tmpl, c.Fields), true
		}
		v = r.fieldsText(tmpl, c.Fields)
	default:
		return "", false
	}
	if escape {
		v = html.EscapeString(v)
	}
	return v, true
}

// display applies the form's value mapping to one field
func (r *Renderer) display(name string, value routing.Value, tmpl Template) string {
	want := routing.Normalize(name)
	for k, v := range tmpl.CustomValues {
		if routing.Normalize(k) == want {
			return v
		}
	}

	raw := strings.Join(value.Strings(), ", ")
	if tmpl.CustomValueTemplate != "" {
		if _, ok := checkboxValues[strings.ToLower(strings.TrimSpace(raw))]; ok {
			out := strings.ReplaceAll(tmpl.CustomValueTemplate, "{{value}}", raw)
			return strings.ReplaceAll(out, "{{field}}", name)
		}
	}
	return raw
}

func (r *Renderer) fieldsTable(tmpl Template, fields routing.Fields) string {
	var sb strings.Builder
	sb.WriteString(`<table cellpadding="6" cellspacing="0" border="1" style="border-collapse:collapse">`)
	for _, f := range fields {
		fmt.Fprintf(&sb, "<tr><th align=\"left\">%s</th><td>%s</td></tr>",
			html.EscapeString(f.Name),
			html.EscapeString(r.display(f.Name, f.Value, tmpl)),
		)
	}
	sb.WriteString("</table>")
	return sb.String()
}

func (r *Renderer) fieldsText(tmpl Template, fields routing.Fields) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Name+": "+r.display(f.Name, f.Value, tmpl))
	}
	return strings.Join(parts, ", ")
}

func (r *Renderer) defaultHTML(tmpl Template, c Content) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<h2>New submission: %s</h2>", html.EscapeString(c.FormName))
	sb.WriteString(r.fieldsTable(tmpl, c.Fields))
	if !c.SubmittedAt.IsZero() {
		fmt.Fprintf(&sb, "<p>Submitted at %s</p>", html.EscapeString(formatTime(c.SubmittedAt)))
	}
	return sb.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05 MST")
}
