package pdf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TUD-CERT/docleaner/internal/jobtype"
	"github.com/TUD-CERT/docleaner/internal/metadata"
	"github.com/TUD-CERT/docleaner/internal/plugins/pdf"
	"github.com/TUD-CERT/docleaner/internal/sandbox"
)

func TestTypeDefaultsImage(t *testing.T) {
	tp := pdf.Type("")
	assert.Equal(t, "pdf", tp.Name)
	assert.Equal(t, "docleaner-pdf:latest", tp.Image)
	assert.True(t, tp.Accepts("application/pdf"))
}

func TestTypeHonorsCustomImage(t *testing.T) {
	tp := pdf.Type("registry.example.org/docleaner-pdf:v2")
	assert.Equal(t, "registry.example.org/docleaner-pdf:v2", tp.Image)
}

func TestProcessDropsExcludedPrimaryGroups(t *testing.T) {
	tp := pdf.Type("")
	raw := sandbox.RawMetadata{
		Primary: map[string]interface{}{
			"ICC_Profile:ProfileDescription": "sRGB IEC61966",
			"PDF:Producer":                   "Acrobat",
		},
		Embeds: map[string]map[string]interface{}{},
	}
	doc := tp.Process(raw)

	_, hasICC := doc.Primary["ICC_Profile:ProfileDescription"]
	assert.False(t, hasICC)

	f, hasProducer := doc.Primary["PDF:Producer"]
	assert.True(t, hasProducer)
	assert.Equal(t, "PDF", f.Group)
	assert.Equal(t, "Producer", f.Name)
	assert.Equal(t, "Acrobat", f.Value.String())
}

func TestProcessPropagatesSignedFlag(t *testing.T) {
	tp := pdf.Type("")
	raw := sandbox.RawMetadata{Primary: map[string]interface{}{}, Embeds: map[string]map[string]interface{}{}, Signed: true}
	doc := tp.Process(raw)
	assert.True(t, doc.Signed)
}

func TestProcessClassifiesTagsByPrefix(t *testing.T) {
	tp := pdf.Type("")
	raw := sandbox.RawMetadata{
		Primary: map[string]interface{}{
			"XMP:XMP-pdfuaid:Part":       1,
			"XMP:XMP-pdfaid:Conformance": "B",
			"XMP:XMP-dc:Rights-en":       "all rights reserved",
			"XMP:XMP-xmpRights:Marked":   true,
			"PDF:GTS_PDFXVersion":        "PDF/X-1:2001",
		},
		Embeds: map[string]map[string]interface{}{},
	}
	doc := tp.Process(raw)

	assert.True(t, doc.Primary["XMP:XMP-pdfuaid:Part"].HasTag(metadata.Accessibility))
	assert.True(t, doc.Primary["XMP:XMP-pdfaid:Conformance"].HasTag(metadata.Compliance))
	// Localized variants still match their prefix.
	assert.True(t, doc.Primary["XMP:XMP-dc:Rights-en"].HasTag(metadata.Legal))
	assert.True(t, doc.Primary["XMP:XMP-xmpRights:Marked"].HasTag(metadata.Legal))
	assert.True(t, doc.Primary["PDF:GTS_PDFXVersion"].HasTag(metadata.Compliance))
}

func TestProcessDefaultsUnknownFieldsToNoTags(t *testing.T) {
	tp := pdf.Type("")
	raw := sandbox.RawMetadata{
		Primary: map[string]interface{}{"XMP:CreatorTool": "Word"},
		Embeds:  map[string]map[string]interface{}{},
	}
	doc := tp.Process(raw)
	assert.Empty(t, doc.Primary["XMP:CreatorTool"].Tags)
}

func TestProcessRekeysBareFieldsUnderFileGroup(t *testing.T) {
	tp := pdf.Type("")
	raw := sandbox.RawMetadata{
		Primary: map[string]interface{}{"FileSize": "12345"},
		Embeds:  map[string]map[string]interface{}{},
	}
	doc := tp.Process(raw)

	_, hasBare := doc.Primary["FileSize"]
	assert.False(t, hasBare)

	f, hasRekeyed := doc.Primary["File:FileSize"]
	assert.True(t, hasRekeyed)
	assert.Equal(t, "File", f.Group)
	assert.Equal(t, "FileSize", f.Name)
}

func TestProcessAggregatesPdfaExtensionSchemas(t *testing.T) {
	tp := pdf.Type("")
	raw := sandbox.RawMetadata{
		Primary: map[string]interface{}{
			"XMP:XMP-pdfaExtension:SchemasSchema":       "PDF/A ID Schema",
			"XMP:XMP-pdfaExtension:SchemasNamespaceURI": "http://example.org/pdfaid/",
			"XMP:XMP-pdfaExtension:SchemasPrefix":       "pdfaid",
		},
		Embeds: map[string]map[string]interface{}{},
	}
	doc := tp.Process(raw)

	_, hasNamespace := doc.Primary["XMP:XMP-pdfaExtension:SchemasNamespaceURI"]
	assert.False(t, hasNamespace)
	_, hasPrefix := doc.Primary["XMP:XMP-pdfaExtension:SchemasPrefix"]
	assert.False(t, hasPrefix)

	f, hasAggregate := doc.Primary["XMP:XMP-pdfaExtension:Schemas"]
	assert.True(t, hasAggregate)
	assert.Equal(t, "XMP-pdfaExtension:Schemas", f.Name)
	assert.Equal(t, "PDF/A ID Schema", f.Value.String())
	assert.True(t, f.HasTag(metadata.Compliance))
}

func TestProcessRedactsBinaryWarningsInEmbeds(t *testing.T) {
	tp := pdf.Type("")
	raw := sandbox.RawMetadata{
		Primary: map[string]interface{}{},
		Embeds: map[string]map[string]interface{}{
			"0": {
				"File:MIMEType":  "image/jpeg",
				"EXIF:Thumbnail": "(Binary data 1234 bytes, use -b option to extract)",
			},
		},
	}
	doc := tp.Process(raw)
	embed, ok := doc.Embeds["0"]
	if !ok {
		t.Fatalf("expected embed 0, got %+v", doc.Embeds)
	}
	assert.Equal(t, "<binary data>", embed["EXIF:Thumbnail"].Value.String())
	assert.Equal(t, "image/jpeg", embed["_type"].Value.String())
}

func TestProcessDropsStructuralEmbedGroups(t *testing.T) {
	tp := pdf.Type("")
	raw := sandbox.RawMetadata{
		Primary: map[string]interface{}{},
		Embeds: map[string]map[string]interface{}{
			"0": {
				"File:MIMEType":   "image/png",
				"PDF:PageCount":   1,
				"EXIF:DateCreate": "2020-01-01",
			},
		},
	}
	doc := tp.Process(raw)
	embed := doc.Embeds["0"]
	_, hasPDFGroup := embed["PDF:PageCount"]
	assert.False(t, hasPDFGroup)
	_, hasExif := embed["EXIF:DateCreate"]
	assert.True(t, hasExif)
}

func TestTypeSatisfiesRegistry(t *testing.T) {
	reg := jobtype.NewRegistry(pdf.Type(""))
	tp, ok := reg.ByMimeType("application/pdf")
	assert.True(t, ok)
	assert.Equal(t, "pdf", tp.Name)
}
