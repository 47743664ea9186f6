// Package publish renders blocks and host pages for readers. Published
// markup is a custom element that the widget runtime hydrates in the
// reader's browser; it never needs the editor.
package publish

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strconv"
	"strings"

	"github.com/livetemplate/tinkersheet"
)

// Element is the tag the widget runtime upgrades.
const Element = "treb-spreadsheet"

var markupTmpl = template.Must(template.New("block").Parse(
	`<div class="tinkersheet-block" data-treb-version="{{.Version}}"><span></span>` +
		`<treb-spreadsheet{{range .Attrs}} {{.}}{{end}}>` +
		`<script type="application/json">{{.Document}}</script>` +
		`</treb-spreadsheet></div>`))

var attrName = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// alwaysOn are set on every published block unless the options say otherwise.
var alwaysOn = []string{
	"font_scale",
	"chart_menu",
	"table_button",
	"freeze_button",
	"revert_button",
	"revert_indicator",
}

type markupData struct {
	Version  string
	Attrs    []template.HTMLAttr
	Document template.JS
}

// Render returns the published markup of one block. runtimeVersion is used
// when the block has no recorded library version.
func Render(a tinkersheet.Attributes, runtimeVersion string) (string, error) {
	version := a.LibraryVersion
	if version == "" {
		version = runtimeVersion
	}

	var buf bytes.Buffer
	err := markupTmpl.Execute(&buf, markupData{
		Version:  version,
		Attrs:    elementAttributes(a),
		Document: template.JS(scriptSafe(a.JSON)),
	})
	if err != nil {
		return "", fmt.Errorf("render block %q: %w", a.UID, err)
	}
	return buf.String(), nil
}

// LocalStorageKey is where the reader's browser keeps its copy of the
// document. It changes with the file version, so readers drop stale
// local copies when the block is edited.
func LocalStorageKey(a tinkersheet.Attributes) string {
	return a.UID + ":" + strconv.FormatInt(a.FileVersion, 10) + "-document"
}

// reserved attributes are derived from the block, never from its options.
var reserved = map[string]bool{
	"style":           true,
	"inline-document": true,
	"inline_document": true,
	"local_storage":   true,
	"persist_scale":   true,
}

func elementAttributes(a tinkersheet.Attributes) []template.HTMLAttr {
	names := []string{"local_storage", "persist_scale"}
	values := map[string]string{
		"local_storage": LocalStorageKey(a),
		"persist_scale": a.UID + "-scale",
	}
	for _, k := range alwaysOn {
		names = append(names, k)
		values[k] = "true"
	}
	for _, kv := range a.Options.MarkupAttributes() {
		if reserved[kv[0]] {
			continue
		}
		if _, seen := values[kv[0]]; !seen {
			names = append(names, kv[0])
		}
		values[kv[0]] = kv[1]
	}

	out := make([]template.HTMLAttr, 0, len(names)+2)
	for _, name := range names {
		if !attrName.MatchString(name) || strings.HasPrefix(name, "on") {
			continue
		}
		out = append(out, attr(name, values[name]))
	}
	out = append(out, attr("style", style(a)), attr("inline-document", "true"))
	return out
}

func attr(name, value string) template.HTMLAttr {
	return template.HTMLAttr(name + `="` + html.EscapeString(value) + `"`)
}

// style sets display:block up front so the element does not jump while
// the runtime loads.
func style(a tinkersheet.Attributes) string {
	parts := []string{"display: block"}
	if a.Height > 0 {
		parts = append(parts, "height: "+px(a.Height))
	}
	if a.Width > 0 && !a.WidthConstrained() {
		parts = append(parts, "width: "+px(a.Width))
	}
	return strings.Join(parts, "; ")
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

// scriptSafe keeps the snapshot from closing its script element. '<' can
// only occur inside JSON strings, where \u003c is an equivalent escape.
func scriptSafe(doc string) string {
	return strings.ReplaceAll(doc, "<", `\u003c`)
}
