package server

import "github.com/go-chi/chi/v5/middleware"

// compressedTypes are the responses worth gzipping. Published block markup
// carries the whole document inline and the widget module is large; fonts
// and images are already compressed.
var compressedTypes = []string{
	"text/html",
	"application/json",
	"text/javascript",
	"application/javascript",
	"text/css",
}

// compressionMiddleware gzips published output and editor assets.
var compressionMiddleware = middleware.Compress(5, compressedTypes...)
