// Package assets embeds the browser side of the editor: the bridge script
// that hosts widgets in the tab and speaks the session protocol.
package assets

import (
	"embed"
	"io/fs"
	"net/http"
)

// BridgeScript is the file name the editor page loads.
const BridgeScript = "tinkersheet-bridge.js"

//go:embed client/*
var clientFS embed.FS

// ClientFS returns the embedded client files
func ClientFS() fs.FS {
	sub, err := fs.Sub(clientFS, "client")
	if err != nil {
		panic(err)
	}
	return sub
}

// GetBridgeJS returns the editor bridge script
func GetBridgeJS() ([]byte, error) {
	return clientFS.ReadFile("client/" + BridgeScript)
}

// Handler serves the client files. Mount it with the prefix stripped.
func Handler() http.Handler {
	return http.FileServerFS(ClientFS())
}
