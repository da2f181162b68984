// Package pdf implements the "pdf" job type: the metadata post-processor
// that turns an exiftool-style analyze dump into a reported
// metadata.Document, strips tags of embedded documents unlikely to carry
// privacy-sensitive data, and redacts binary warnings exiftool leaves
// behind when it can't dump raw bytes into JSON.
package pdf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/TUD-CERT/docleaner/internal/jobtype"
	"github.com/TUD-CERT/docleaner/internal/metadata"
	"github.com/TUD-CERT/docleaner/internal/sandbox"
)

const (
	containerImage = "docleaner-pdf:latest"
	mimeType       = "application/pdf"
)

// excludedPrimaryGroups carry no privacy-relevant information and are
// dropped from the primary report entirely.
var excludedPrimaryGroups = map[string]bool{
	"ICC_Profile": true,
	"Composite":   true,
}

// excludedEmbedGroups are dropped from embedded-document reports; File,
// PDF and APP14 are structural/container-format fields repeated in every
// embed, not something the embed itself carries.
var excludedEmbedGroups = map[string]bool{
	"File":        true,
	"PDF":         true,
	"APP14":       true,
	"ICC_Profile": true,
}

// schemasAggregateField is the single field XMP-pdfaExtension:SchemasSchema
// is renamed to; every other XMP-pdfaExtension:Schemas* field is dropped in
// its favor, since exiftool otherwise reports one such field per embedded
// PDF/A schema.
const schemasAggregateField = "XMP:XMP-pdfaExtension:Schemas"

// tagPrefix assigns a fixed tag set to every field id starting with prefix.
type tagPrefix struct {
	prefix string
	tags   []metadata.Tag
}

// pdfTags lists the field id prefixes known to carry privacy- or
// compliance-relevant semantics, checked in order so the first matching
// prefix wins. A field id is matched as a prefix, not exactly, so localized
// variants such as "XMP:XMP-dc:Rights-en" still match "XMP:XMP-dc:Rights".
// Anything not matched here carries no tags at all.
var pdfTags = []tagPrefix{
	{"XMP:XMP-pdfuaid:Part", []metadata.Tag{metadata.Accessibility}},
	{"XMP:XMP-pdfe:ISO_PDFEVersion", []metadata.Tag{metadata.Compliance}},
	{"XMP:XMP-pdfaid:Part", []metadata.Tag{metadata.Compliance}},
	{"XMP:XMP-pdfaid:Conformance", []metadata.Tag{metadata.Compliance}},
	{"PDF:GTS_PDFXVersion", []metadata.Tag{metadata.Compliance}},
	{"PDF:GTS_PDFXConformance", []metadata.Tag{metadata.Compliance}},
	{"XMP:XMP-pdfx:GTS_PDFXVersion", []metadata.Tag{metadata.Compliance}},
	{"XMP:XMP-pdfx:GTS_PDFXConformance", []metadata.Tag{metadata.Compliance}},
	{"XMP:XMP-pdfxid:GTS_PDFXVersion", []metadata.Tag{metadata.Compliance}},
	{"XMP:XMP-pdfaExtension", []metadata.Tag{metadata.Compliance}},
	{"PDF:GTS_PDFVTVersion", []metadata.Tag{metadata.Compliance}},
	{"XMP:XMP-pdfvtid:GTS_PDFVTVersion", []metadata.Tag{metadata.Compliance}},
	{"XMP:XMP-dc:Rights", []metadata.Tag{metadata.Legal}},
	{"XMP:XMP-xmpRights", []metadata.Tag{metadata.Legal}},
}

// Type returns the registered "pdf" job type.
func Type(image string) jobtype.Type {
	if image == "" {
		image = containerImage
	}
	return jobtype.Type{
		Name:      "pdf",
		Image:     image,
		MimeTypes: []string{mimeType},
		Process:   process,
	}
}

func process(raw sandbox.RawMetadata) metadata.Document {
	doc := metadata.NewDocument()
	doc.Signed = raw.Signed

	for rawField, value := range raw.Primary {
		id, group, name := primaryFieldID(rawField)
		if excludedPrimaryGroups[group] {
			continue
		}
		switch {
		case id == "XMP:XMP-pdfaExtension:SchemasSchema":
			id = schemasAggregateField
			name = "XMP-pdfaExtension:Schemas"
		case strings.HasPrefix(id, "XMP:XMP-pdfaExtension:Schemas"):
			continue
		}
		doc.Primary[id] = metadata.Field{
			ID:    id,
			Name:  name,
			Group: group,
			Value: toScalar(value),
			Tags:  identifyTags(id),
		}
	}

	for _, embedMeta := range raw.Embeds {
		redactBinaryWarnings(embedMeta)

		embedFields := map[string]metadata.Field{}
		if t, ok := embedMeta["File:MIMEType"]; ok {
			embedFields["_type"] = metadata.Field{ID: "_type", Name: "type", Value: toScalar(t)}
		} else if t, ok := embedMeta["File:FileType"]; ok {
			if s, isStr := t.(string); !isStr || !strings.Contains(s, "unsupported") {
				embedFields["_type"] = metadata.Field{ID: "_type", Name: "type", Value: toScalar(t)}
			}
		}

		hasContent := false
		for field, value := range embedMeta {
			group, name := splitFieldID(field)
			if excludedEmbedGroups[group] {
				continue
			}
			embedFields[field] = metadata.Field{
				ID:    field,
				Name:  name,
				Group: group,
				Value: toScalar(value),
				Tags:  identifyTags(field),
			}
			hasContent = true
		}

		if hasContent {
			if doc.Embeds == nil {
				doc.Embeds = map[string]map[string]metadata.Field{}
			}
			doc.Embeds[strconv.Itoa(len(doc.Embeds))] = embedFields
		}
	}

	return doc
}

// redactBinaryWarnings replaces exiftool's "use -b option to extract"
// placeholder strings (which leak nothing but clutter the report) with a
// fixed marker, up to two levels deep to mirror exiftool's nested
// structure for composite binary tags.
func redactBinaryWarnings(embedMeta map[string]interface{}) {
	for tag, val := range embedMeta {
		switch v := val.(type) {
		case string:
			if strings.Contains(v, "option to extract") {
				embedMeta[tag] = "<binary data>"
			}
		case map[string]interface{}:
			for nestedTag, nestedVal := range v {
				if s, ok := nestedVal.(string); ok && strings.Contains(s, "option to extract") {
					v[nestedTag] = "<binary data>"
				}
			}
		}
	}
}

// splitFieldID splits a colon-delimited exiftool field id into its group
// and name, used for embedded-document fields, which are always prefixed.
func splitFieldID(field string) (group, name string) {
	if idx := strings.Index(field, ":"); idx >= 0 {
		return field[:idx], field[idx+1:]
	}
	return "File", field
}

// primaryFieldID splits a primary-document field id the same way
// splitFieldID does, except a bare (no-colon) field is re-keyed under the
// "File:" group instead of keeping its bare name, mirroring exiftool's own
// File group fields.
func primaryFieldID(field string) (id, group, name string) {
	if idx := strings.Index(field, ":"); idx >= 0 {
		return field, field[:idx], field[idx+1:]
	}
	return "File:" + field, "File", field
}

// identifyTags returns the tag set the first matching pdfTags prefix
// assigns to field, or nil if nothing matches.
func identifyTags(field string) []metadata.Tag {
	for _, p := range pdfTags {
		if strings.HasPrefix(field, p.prefix) {
			return p.tags
		}
	}
	return nil
}

func toScalar(v interface{}) metadata.Scalar {
	switch t := v.(type) {
	case bool:
		return metadata.BoolValue(t)
	case string:
		return metadata.StringValue(t)
	case float64:
		if t == float64(int64(t)) {
			return metadata.IntValue(int64(t))
		}
		return metadata.FloatValue(t)
	case int:
		return metadata.IntValue(int64(t))
	case int64:
		return metadata.IntValue(t)
	case []interface{}:
		list := make([]metadata.Scalar, len(t))
		for i, e := range t {
			list[i] = toScalar(e)
		}
		return metadata.ListValue(list)
	case map[string]interface{}:
		// Nested composite tags (exiftool's structured values) are
		// flattened to their string rendering; there is no further
		// sub-structure the report format needs to preserve.
		return metadata.StringValue(fmt.Sprintf("%v", t))
	default:
		return metadata.StringValue(fmt.Sprintf("%v", t))
	}
}
