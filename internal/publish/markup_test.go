package publish

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/tinkersheet"
)

func TestRender(t *testing.T) {
	html, err := Render(tinkersheet.Attributes{
		UID:            "budget",
		JSON:           `{"sheets":[]}`,
		Height:         240,
		Width:          600,
		FileVersion:    3,
		LibraryVersion: "29.4",
		Options:        tinkersheet.Options{"toolbar": true, "scale": 1.5},
	}, "30.0")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(html, `<div class="tinkersheet-block" data-treb-version="29.4"><span></span><treb-spreadsheet local_storage="budget:3-document" persist_scale="budget-scale" font_scale="true"`), html)
	for _, want := range []string{
		`chart_menu="true"`,
		`table_button="true"`,
		`freeze_button="true"`,
		`revert_button="true"`,
		`revert_indicator="true"`,
		`scale="1.5"`,
		`toolbar="true"`,
		`style="display: block; height: 240px; width: 600px"`,
		`inline-document="true"`,
		`<script type="application/json">{"sheets":[]}</script></treb-spreadsheet></div>`,
	} {
		assert.Contains(t, html, want)
	}
}

func TestRenderOptionsOverrideDefaults(t *testing.T) {
	html, err := Render(tinkersheet.Attributes{
		UID:     "x",
		Options: tinkersheet.Options{"chart_menu": false},
	}, "1")
	require.NoError(t, err)

	assert.Contains(t, html, `chart_menu="false"`)
	assert.NotContains(t, html, `chart_menu="true"`)
	assert.Equal(t, 1, strings.Count(html, "chart_menu="))
}

func TestRenderIgnoresOptionsNamedLikeDerivedAttributes(t *testing.T) {
	html, err := Render(tinkersheet.Attributes{
		UID:         "budget",
		Height:      240,
		FileVersion: 2,
		Options: tinkersheet.Options{
			"style":           1.0,
			"local_storage":   "elsewhere",
			"persist_scale":   "elsewhere",
			"inline_document": false,
			"toolbar":         true,
		},
	}, "1")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(html, "style="))
	assert.Contains(t, html, `style="display: block; height: 240px"`)
	assert.Contains(t, html, `local_storage="budget:2-document"`)
	assert.Contains(t, html, `persist_scale="budget-scale"`)
	assert.NotContains(t, html, "elsewhere")
	assert.NotContains(t, html, "inline_document")
	assert.Contains(t, html, `toolbar="true"`)
}

func TestRenderUsesRuntimeVersionFallback(t *testing.T) {
	html, err := Render(tinkersheet.Attributes{UID: "x"}, "30.0")
	require.NoError(t, err)
	assert.Contains(t, html, `data-treb-version="30.0"`)
	assert.Contains(t, html, `local_storage="x:0-document"`)
	assert.Contains(t, html, `<script type="application/json"></script>`)
}

func TestRenderWidth(t *testing.T) {
	tests := []struct {
		name  string
		attrs tinkersheet.Attributes
		want  string
	}{
		{"unset", tinkersheet.Attributes{}, `style="display: block"`},
		{"height only", tinkersheet.Attributes{Height: 100}, `style="display: block; height: 100px"`},
		{"width", tinkersheet.Attributes{Width: 320}, `style="display: block; width: 320px"`},
		{"constrained attribute", tinkersheet.Attributes{Width: 320, ConstrainWidth: true}, `style="display: block"`},
		{"constrained option", tinkersheet.Attributes{Width: 320, Options: tinkersheet.Options{"constrain_width": true}}, `style="display: block"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := Render(tt.attrs, "1")
			require.NoError(t, err)
			assert.Contains(t, html, tt.want)
		})
	}
}

func TestRenderEscaping(t *testing.T) {
	html, err := Render(tinkersheet.Attributes{
		UID:     `x"><img src=x onerror=alert(1)>`,
		JSON:    `{"a":"</script><script>alert(1)</script>"}`,
		Options: tinkersheet.Options{"onload": true, `bad name`: true},
	}, "1")
	require.NoError(t, err)

	assert.NotContains(t, html, "</script><script>")
	assert.Contains(t, html, `{"a":"\u003c/script>\u003cscript>alert(1)\u003c/script>"}`)
	assert.NotContains(t, html, `"><img`)
	assert.NotContains(t, html, "bad name")
	assert.NotContains(t, html, "onload=")
}

func TestLocalStorageKey(t *testing.T) {
	assert.Equal(t, "budget:0-document", LocalStorageKey(tinkersheet.Attributes{UID: "budget"}))
	assert.Equal(t, "budget:12-document", LocalStorageKey(tinkersheet.Attributes{UID: "budget", FileVersion: 12}))
}
