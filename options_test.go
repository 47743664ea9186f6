package tinkersheet

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsEqualIgnoresKeyOrderAndNumberType(t *testing.T) {
	a := Options{OptToolbar: true, OptScale: 1}
	var b Options
	require.NoError(t, json.Unmarshal([]byte(`{"scale":1.0,"toolbar":true}`), &b))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(b.With(OptToolbar, false)))
	assert.True(t, Options(nil).Equal(Options{}))
}

func TestOptionsToggleAndWithCopy(t *testing.T) {
	orig := Options{OptResizable: true}

	toggled := orig.Toggle(OptResizable)
	assert.False(t, toggled.Bool(OptResizable))
	assert.True(t, orig.Bool(OptResizable), "toggle must not mutate the receiver")

	set := orig.With("constrain-width", true)
	assert.True(t, set.Bool(OptConstrainWidth))
	_, has := orig[OptConstrainWidth]
	assert.False(t, has)

	assert.True(t, Options(nil).Toggle(OptToolbar).Bool(OptToolbar))
}

func TestOptionsNumber(t *testing.T) {
	assert.Equal(t, DefaultScale, Options{}.Number(OptScale, DefaultScale))
	assert.Equal(t, DefaultScale, Options{OptScale: "big"}.Number(OptScale, DefaultScale))
	assert.Equal(t, 1.25, Options{OptScale: 1.25}.Number(OptScale, DefaultScale))
	assert.Equal(t, 2.0, Options{OptScale: 2}.Number(OptScale, DefaultScale))
}

func TestOptionsNormalizePrefersCanonicalKey(t *testing.T) {
	o := Options{"scale-control": false, "scale_control": true, "toolbar": true}.Normalize()

	assert.Len(t, o, 2)
	assert.True(t, o.Bool(OptScaleControl))
}

func TestOptionsMarkupAttributes(t *testing.T) {
	attrs := Options{OptScale: 0.8, OptToolbar: true, "scale-control": false}.MarkupAttributes()

	assert.Equal(t, [][2]string{
		{"scale", "0.8"},
		{"scale_control", "false"},
		{"toolbar", "true"},
	}, attrs)
}

func TestPatchApply(t *testing.T) {
	base := Attributes{UID: "u", Theme: "dark", Options: Options{OptToolbar: true}, FileVersion: 3}

	next := Patch{
		Height:      Ptr(200.0),
		FileVersion: Ptr(int64(4)),
		Options:     Options{OptCollapsed: true},
	}.Apply(base)

	assert.Equal(t, "u", next.UID)
	assert.Equal(t, "dark", next.Theme)
	assert.Equal(t, 200.0, next.Height)
	assert.Equal(t, int64(4), next.FileVersion)
	assert.Equal(t, Options{OptCollapsed: true}, next.Options, "options are replaced, not merged")
	assert.True(t, base.Options.Bool(OptToolbar), "apply must not mutate the base")
}

func TestPatchKeys(t *testing.T) {
	assert.True(t, Patch{}.IsEmpty())
	assert.Equal(t, []string{KeyJSON, KeyFileVersion}, Patch{JSON: Ptr("{}"), FileVersion: Ptr(int64(1))}.Keys())
}

func TestAttributesJSONKeys(t *testing.T) {
	data, err := json.Marshal(Attributes{UID: "u", FileVersion: 7, LibraryVersion: "29.1"})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 7.0, raw[KeyFileVersion])
	assert.Equal(t, "29.1", raw[KeyLibraryVersion])
}

func TestWidthConstrained(t *testing.T) {
	assert.False(t, Attributes{}.WidthConstrained())
	assert.True(t, Attributes{ConstrainWidth: true}.WidthConstrained())
	assert.True(t, Attributes{Options: Options{OptConstrainWidth: true}}.WidthConstrained())
}

func TestOptionKeys(t *testing.T) {
	for _, k := range []string{OptCollapsed, OptToolbar, OptResizable, OptScaleControl, OptConstrainWidth} {
		assert.True(t, IsFlagOption(k), k)
		assert.True(t, IsOptionKey(k), k)
	}
	assert.False(t, IsFlagOption(OptScale))
	assert.True(t, IsOptionKey(OptScale))
	for _, k := range []string{"style", "local_storage", "scale-control", ""} {
		assert.False(t, IsOptionKey(k), k)
	}
}
