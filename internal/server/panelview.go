package server

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/livetemplate/livetemplate"

	"github.com/livetemplate/tinkersheet/internal/panel"
)

//go:embed panel.tmpl
var panelTemplate string

// panelView renders the settings panel as livetemplate tree updates. After
// the first render only changed dynamics are sent.
type panelView struct {
	mu   sync.Mutex
	tmpl *livetemplate.Template
}

func newPanelView(uid string) (*panelView, error) {
	// livetemplate.New parses from files, so the embedded template goes
	// through a temp file.
	f, err := os.CreateTemp("", "tinkersheet-panel-*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("panel template: %w", err)
	}
	tmpFile := f.Name()
	defer os.Remove(tmpFile)

	if _, err := f.WriteString(panelTemplate); err != nil {
		f.Close()
		return nil, fmt.Errorf("panel template: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("panel template: %w", err)
	}

	tmpl, err := livetemplate.New("panel-"+uid, livetemplate.WithParseFiles(tmpFile))
	if err != nil {
		return nil, fmt.Errorf("panel template: %w", err)
	}
	return &panelView{tmpl: tmpl}, nil
}

// render returns the tree JSON for v, or nil when nothing changed.
func (p *panelView) render(v panel.View) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var buf bytes.Buffer
	if err := p.tmpl.ExecuteUpdates(&buf, v); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, nil
	}
	return json.RawMessage(buf.Bytes()), nil
}
