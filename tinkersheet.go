// Package tinkersheet hosts embedded spreadsheet blocks inside markdown
// documents and keeps each block's widget document in sync with its
// persisted attributes.
package tinkersheet

// Page is a parsed host document.
type Page struct {
	ID         string
	Title      string
	SourceFile string // Absolute path to source .md file (for error messages)
	StaticHTML string // Rendered prose with a placeholder per block
	Blocks     map[string]*Block
	Order      []string // Block UIDs in document order
}

// Block is one spreadsheet embedded in a page.
type Block struct {
	UID  string
	Line int // Line number of the opening fence

	// Defaults applied when the block has no persisted attributes yet.
	Theme   string
	Height  float64
	Options Options
	Seed    string // Fence body, used as the initial document
}

// Placeholder is the marker left in StaticHTML where a block renders.
func (b *Block) Placeholder() string {
	return "<!--tinkersheet:" + b.UID + "-->"
}

// Defaults builds the initial attributes for a block that was never saved.
func (b *Block) Defaults() Attributes {
	return Attributes{
		UID:     b.UID,
		JSON:    b.Seed,
		Theme:   b.Theme,
		Height:  b.Height,
		Options: b.Options.Clone(),
	}
}

// New creates an empty page with the given ID.
func New(id string) *Page {
	return &Page{
		ID:     id,
		Blocks: make(map[string]*Block),
	}
}
