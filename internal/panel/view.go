package panel

import "github.com/livetemplate/tinkersheet"

// Toggle is one boolean control.
type Toggle struct {
	Key      string
	Label    string
	Help     string
	Checked  bool
	Disabled bool
}

// ThemeChoice is one entry of the theme picker.
type ThemeChoice struct {
	Label    string
	Value    string
	Selected bool
}

// View is the render model of the panel.
type View struct {
	UID         string
	HasInstance bool
	Toggles     []Toggle
	Themes      []ThemeChoice
	Scale       float64
	FileVersion int64
}

type control struct {
	key, label, on, off string
}

var controls = []control{
	{tinkersheet.OptCollapsed, "Collapsed", "Start with the sidebar closed", "Start with the sidebar open"},
	{tinkersheet.OptToolbar, "Toolbar", "Include the toolbar (it starts hidden)", "No toolbar"},
	{tinkersheet.OptScaleControl, "Scale control", "Users can change spreadsheet scale", "The scale slider is hidden"},
	{tinkersheet.OptResizable, "Resizable", "Spreadsheet is resizable", "Spreadsheet has a fixed size"},
	{tinkersheet.OptConstrainWidth, "Constrain width", "Resize height but use column width", "Allow resizing to change width"},
}

// Themes lists the selectable themes in display order.
var Themes = []ThemeChoice{
	{Label: "Automatic dark/light", Value: "treb-light-dark-theme"},
	{Label: "Dark", Value: "treb-dark-theme"},
	{Label: "Light", Value: ""},
}

func knownTheme(theme string) bool {
	for _, t := range Themes {
		if t.Value == theme {
			return true
		}
	}
	return false
}

// View builds the render model from the current attributes.
func (p *Panel) View() View {
	a := p.current()
	opts := a.Options

	v := View{
		UID:         a.UID,
		HasInstance: p.instance != nil,
		Scale:       opts.Number(tinkersheet.OptScale, tinkersheet.DefaultScale),
		FileVersion: a.FileVersion,
	}
	for _, c := range controls {
		on := opts.Bool(c.key)
		t := Toggle{Key: c.key, Label: c.label, Help: c.off, Checked: on}
		if on {
			t.Help = c.on
		}
		if c.key == tinkersheet.OptConstrainWidth {
			t.Disabled = !opts.Bool(tinkersheet.OptResizable)
		}
		v.Toggles = append(v.Toggles, t)
	}
	for _, t := range Themes {
		t.Selected = t.Value == a.Theme
		v.Themes = append(v.Themes, t)
	}
	return v
}
