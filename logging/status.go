package logging

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StatusKey is the field that carries the outcome of a page operation.
const StatusKey = "status"

// Status returns the field for a page outcome such as "created". The console
// colours it, other encoders get the plain word.
func Status(status string) zap.Field {
	return zap.String(StatusKey, status)
}

var renderer = lipgloss.NewRenderer(os.Stderr)

var statusStyles = map[string]lipgloss.Style{
	"created":       renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
	"updated":       renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
	"deleted":       renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
	"uploaded":      renderer.NewStyle().Foreground(lipgloss.Color("2")),
	"failed":        renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
	"delete_failed": renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
}

// statusCore styles status fields before handing them to the wrapped core.
type statusCore struct {
	zapcore.Core
	styles map[string]lipgloss.Style
}

func newStatusCore(core zapcore.Core, styles map[string]lipgloss.Style) zapcore.Core {
	return &statusCore{Core: core, styles: styles}
}

func (c *statusCore) With(fields []zapcore.Field) zapcore.Core {
	return &statusCore{Core: c.Core.With(c.style(fields)), styles: c.styles}
}

func (c *statusCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *statusCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(entry, c.style(fields))
}

// style returns a copy of fields. Tee hands the same slice to every core.
func (c *statusCore) style(fields []zapcore.Field) []zapcore.Field {
	var styled []zapcore.Field
	for i, f := range fields {
		if f.Key != StatusKey || f.Type != zapcore.StringType {
			continue
		}
		s, ok := c.styles[f.String]
		if !ok {
			continue
		}
		if styled == nil {
			styled = append([]zapcore.Field(nil), fields...)
		}
		styled[i].String = s.Render(f.String)
	}
	if styled == nil {
		return fields
	}
	return styled
}
