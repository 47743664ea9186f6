package tinkersheet

// Attribute keys as persisted by the host.
const (
	KeyUID            = "uid"
	KeyJSON           = "json"
	KeyTheme          = "theme"
	KeyHeight         = "height"
	KeyWidth          = "width"
	KeyOptions        = "options"
	KeyConstrainWidth = "constrain_width"
	KeyFileVersion    = "file-version"
	KeyLibraryVersion = "treb-version"
)

// Attributes is the persisted record of one embedded spreadsheet block.
type Attributes struct {
	// UID is generated once and never changes for the life of the document.
	UID string `json:"uid" yaml:"uid"`

	// JSON is the serialized widget document. Opaque to everything but the widget.
	JSON string `json:"json" yaml:"json"`

	Theme  string  `json:"theme" yaml:"theme"`
	Height float64 `json:"height,omitempty" yaml:"height,omitempty"`
	Width  float64 `json:"width,omitempty" yaml:"width,omitempty"`

	// ConstrainWidth keeps the block at its column width; only height is
	// taken from resizes.
	ConstrainWidth bool `json:"constrain_width" yaml:"constrain_width"`

	Options Options `json:"options" yaml:"options"`

	// FileVersion increases whenever the widget reports an internal change.
	FileVersion int64 `json:"file-version" yaml:"file-version"`

	// LibraryVersion is the widget runtime version recorded at last save.
	LibraryVersion string `json:"treb-version" yaml:"treb-version"`
}

// Clone returns a copy that shares nothing mutable with a.
func (a Attributes) Clone() Attributes {
	out := a
	out.Options = a.Options.Clone()
	return out
}

// WidthConstrained reports whether width is pinned to the column, either
// by the attribute or by the constrain_width option.
func (a Attributes) WidthConstrained() bool {
	return a.ConstrainWidth || a.Options.Bool(OptConstrainWidth)
}

// Patch is a partial Attributes record. Nil fields are left untouched when
// the patch is applied.
type Patch struct {
	UID            *string  `json:"uid,omitempty"`
	JSON           *string  `json:"json,omitempty"`
	Theme          *string  `json:"theme,omitempty"`
	Height         *float64 `json:"height,omitempty"`
	Width          *float64 `json:"width,omitempty"`
	ConstrainWidth *bool    `json:"constrain_width,omitempty"`
	Options        Options  `json:"options,omitempty"`
	FileVersion    *int64   `json:"file-version,omitempty"`
	LibraryVersion *string  `json:"treb-version,omitempty"`
}

// Apply shallow-merges p onto a. Options are replaced wholesale, not merged.
func (p Patch) Apply(a Attributes) Attributes {
	out := a.Clone()
	if p.UID != nil {
		out.UID = *p.UID
	}
	if p.JSON != nil {
		out.JSON = *p.JSON
	}
	if p.Theme != nil {
		out.Theme = *p.Theme
	}
	if p.Height != nil {
		out.Height = *p.Height
	}
	if p.Width != nil {
		out.Width = *p.Width
	}
	if p.ConstrainWidth != nil {
		out.ConstrainWidth = *p.ConstrainWidth
	}
	if p.Options != nil {
		out.Options = p.Options.Clone()
	}
	if p.FileVersion != nil {
		out.FileVersion = *p.FileVersion
	}
	if p.LibraryVersion != nil {
		out.LibraryVersion = *p.LibraryVersion
	}
	return out
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.UID == nil && p.JSON == nil && p.Theme == nil && p.Height == nil &&
		p.Width == nil && p.ConstrainWidth == nil && p.Options == nil &&
		p.FileVersion == nil && p.LibraryVersion == nil
}

// Keys lists the attribute keys the patch touches.
func (p Patch) Keys() []string {
	var keys []string
	if p.UID != nil {
		keys = append(keys, KeyUID)
	}
	if p.JSON != nil {
		keys = append(keys, KeyJSON)
	}
	if p.Theme != nil {
		keys = append(keys, KeyTheme)
	}
	if p.Height != nil {
		keys = append(keys, KeyHeight)
	}
	if p.Width != nil {
		keys = append(keys, KeyWidth)
	}
	if p.ConstrainWidth != nil {
		keys = append(keys, KeyConstrainWidth)
	}
	if p.Options != nil {
		keys = append(keys, KeyOptions)
	}
	if p.FileVersion != nil {
		keys = append(keys, KeyFileVersion)
	}
	if p.LibraryVersion != nil {
		keys = append(keys, KeyLibraryVersion)
	}
	return keys
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}
