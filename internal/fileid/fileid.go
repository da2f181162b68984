// Package fileid identifies the MIME type of uploaded document bytes.
package fileid

import "github.com/gabriel-vasile/mimetype"

// Identifier sniffs a MIME type from raw content.
type Identifier interface {
	Identify(data []byte) string
}

// Magic is the production Identifier, backed by content sniffing rather
// than filename extensions.
type Magic struct{}

func (Magic) Identify(data []byte) string {
	if len(data) == 0 {
		return "application/x-empty"
	}
	mtype := mimetype.Detect(data)
	if mtype == nil {
		return "application/octet-stream"
	}
	return mtype.String()
}
