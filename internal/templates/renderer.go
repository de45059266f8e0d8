package templates

import (
	"regexp"
	"time"

	"github.com/jStrider/grafana-publisher/internal/config"
	"github.com/jStrider/grafana-publisher/internal/domain/alert"
	"github.com/jStrider/grafana-publisher/internal/pkg/logger"
)

// Built-in fallback used when a rule references a template that was never
// configured. Mirrors the default task naming of the publisher.
var defaultTemplate = config.Template{
	Title:       "[{customer_id}][{vm}] {alert_name}",
	Description: "{description}",
}

// Renderer fills {placeholder} tokens in configured templates from alert
// attributes.
type Renderer struct {
	templates map[string]config.Template
	logger    *logger.Logger
	now       func() time.Time
}

// NewRenderer creates a renderer over the configured template set
func NewRenderer(templates map[string]config.Template, log *logger.Logger) *Renderer {
	return &Renderer{templates: templates, logger: log, now: time.Now}
}

var placeholder = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Render resolves the named template against a classified alert and returns
// the rendered title and description. An unknown template name falls back to
// the built-in default; an unresolvable placeholder renders as an explicit
// [missing:x] marker instead of failing, so one bad template never blocks a
// batch.
func (r *Renderer) Render(name string, c alert.Classified) (title, description string) {
	tpl, ok := r.templates[name]
	if !ok {
		if name != "" && name != alert.DefaultRuleName {
			r.logger.With("template", name).Debug("template not configured, using default")
		}
		tpl = defaultTemplate
	}

	ctx := r.buildContext(c)
	return r.substitute(tpl.Title, ctx), r.substitute(tpl.Description, ctx)
}

// buildContext assembles the substitution values. Precedence on key
// collision: rule extra fields, then annotations, then labels, then computed
// values.
func (r *Renderer) buildContext(c alert.Classified) map[string]string {
	a := c.Alert

	ctx := map[string]string{
		"customer_id": a.CustomerID,
		"vm":          a.VM,
		"alert_name":  a.Name,
		"description": a.Description,
		"severity":    a.Severity,
		"priority":    c.Priority,
		"instance":    a.Instance,
		"source":      a.Source,
		"state":       a.State,
		"timestamp":   r.now().Format(time.RFC3339),
	}

	for k, v := range a.Labels {
		ctx["label_"+k] = v
		ctx[k] = v
	}
	for k, v := range a.Annotations {
		ctx["annotation_"+k] = v
		ctx[k] = v
	}
	for k, v := range c.Fields {
		ctx[k] = v
	}

	return ctx
}

func (r *Renderer) substitute(pattern string, ctx map[string]string) string {
	return placeholder.ReplaceAllStringFunc(pattern, func(token string) string {
		key := token[1 : len(token)-1]
		if v, ok := ctx[key]; ok {
			return v
		}
		return "[missing:" + key + "]"
	})
}
