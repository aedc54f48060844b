package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	errorLabel = color.New(color.FgRed, color.Bold)
	codeLabel  = color.New(color.Bold)
	pathColor  = color.New(color.FgCyan)
	gutter     = color.New(color.FgHiBlack)
	caret      = color.New(color.FgRed)
	linkColor  = color.New(color.FgBlue)
)

// detailWidth is the column at which details are wrapped.
const detailWidth = 72

// Format renders the diagnostic for a terminal: header, location, source
// frame, detail, hint and documentation link. Colors follow color.NoColor.
func (e *VpackError) Format() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(errorLabel.Sprint("ERROR"))
	if e.Code != "" {
		b.WriteString(" " + codeLabel.Sprint(e.Code))
	}
	b.WriteString(": " + e.Message + "\n\n")

	if e.Location != nil {
		fmt.Fprintf(&b, "  %s\n\n", pathColor.Sprint(e.Location.String()))
		if e.Frame != nil {
			e.writeFrame(&b)
			b.WriteString("\n")
		}
	}

	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, detailWidth) {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("\n")
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "  %s %s\n\n", pathColor.Sprint("Hint:"), e.Suggestion)
	}
	if e.DocURL != "" {
		fmt.Fprintf(&b, "  %s %s\n", gutter.Sprint("Learn more:"), linkColor.Sprint(e.DocURL))
	}
	return b.String()
}

func (e *VpackError) writeFrame(b *strings.Builder) {
	at := e.Location.Line
	for i, line := range e.Frame.Lines {
		n := e.Frame.Start + i
		marker := "  "
		if n == at {
			marker = caret.Sprint("> ")
		}
		fmt.Fprintf(b, "  %s%4d %s %s\n", marker, n, gutter.Sprint("|"), line)
		if n == at && e.Location.Column > 0 {
			fmt.Fprintf(b, "         %s %s%s\n", gutter.Sprint("|"),
				strings.Repeat(" ", e.Location.Column-1), caret.Sprint("^"))
		}
	}
}

// FormatCompact renders the diagnostic on one line, as shown in the dev
// overlay and the dev server log.
func (e *VpackError) FormatCompact() string {
	parts := make([]string, 0, 4)
	if e.Location != nil {
		parts = append(parts, e.Location.String())
	}
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	parts = append(parts, e.Message)
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	return strings.Join(parts, ": ")
}

// FormatJSON encodes the diagnostic as a single JSON object.
func (e *VpackError) FormatJSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"category":%q,"message":%q}`, CategoryInternal, err.Error())
	}
	return string(data)
}

func wrapText(text string, width int) []string {
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(text) {
		if cur.Len() > 0 && cur.Len()+1+len(word) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// FprintError writes every diagnostic carried by err to w.
func FprintError(w io.Writer, err error) {
	for _, d := range Collect(err) {
		fmt.Fprint(w, d.Format())
	}
}

// Collect flattens err into diagnostics. Aggregates (errors.Join, a
// failed graph build) yield one diagnostic per member; anything without a
// diagnostic of its own is reported as E500.
func Collect(err error) []*VpackError {
	if err == nil {
		return nil
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*VpackError
		for _, e := range multi.Unwrap() {
			out = append(out, Collect(e)...)
		}
		return out
	}
	return []*VpackError{FromError(err, "E500")}
}

// Diagnose returns the diagnostic carried by err, if any.
func Diagnose(err error) *VpackError {
	var ve *VpackError
	if stderrors.As(err, &ve) {
		return ve
	}
	var d Diagnoser
	if stderrors.As(err, &d) {
		return d.Diagnostic()
	}
	return nil
}
