package fileid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TUD-CERT/docleaner/internal/fileid"
)

func TestMagicIdentifyEmpty(t *testing.T) {
	var m fileid.Magic
	assert.Equal(t, "application/x-empty", m.Identify(nil))
}

func TestMagicIdentifyPDF(t *testing.T) {
	var m fileid.Magic
	pdfHeader := []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	assert.Equal(t, "application/pdf", m.Identify(pdfHeader))
}

func TestMagicIdentifyUnknownBinary(t *testing.T) {
	var m fileid.Magic
	junk := []byte{0x00, 0x01, 0x02, 0x03, 0xff, 0xfe}
	assert.NotEmpty(t, m.Identify(junk))
}
