package jobtype_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TUD-CERT/docleaner/internal/jobtype"
	"github.com/TUD-CERT/docleaner/internal/metadata"
	"github.com/TUD-CERT/docleaner/internal/sandbox"
)

func noopProcess(raw sandbox.RawMetadata) metadata.Document {
	return metadata.NewDocument()
}

func TestTypeAccepts(t *testing.T) {
	tp := jobtype.Type{Name: "pdf", MimeTypes: []string{"application/pdf"}, Process: noopProcess}
	assert.True(t, tp.Accepts("application/pdf"))
	assert.True(t, tp.Accepts("APPLICATION/PDF"))
	assert.False(t, tp.Accepts("image/png"))
}

func TestRegistryLookup(t *testing.T) {
	pdf := jobtype.Type{Name: "pdf", MimeTypes: []string{"application/pdf"}, Process: noopProcess}
	png := jobtype.Type{Name: "png", MimeTypes: []string{"image/png"}, Process: noopProcess}
	reg := jobtype.NewRegistry(pdf, png)

	tp, ok := reg.ByName("png")
	assert.True(t, ok)
	assert.Equal(t, "png", tp.Name)

	tp, ok = reg.ByMimeType("application/pdf")
	assert.True(t, ok)
	assert.Equal(t, "pdf", tp.Name)

	_, ok = reg.ByName("doesnotexist")
	assert.False(t, ok)

	_, ok = reg.ByMimeType("text/plain")
	assert.False(t, ok)

	assert.Len(t, reg.All(), 2)
}
