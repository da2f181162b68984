package metadata_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TUD-CERT/docleaner/internal/metadata"
)

func TestScalarJSONRoundTrip(t *testing.T) {
	cases := []metadata.Scalar{
		metadata.BoolValue(true),
		metadata.IntValue(42),
		metadata.FloatValue(3.25),
		metadata.StringValue("hello"),
		metadata.ListValue([]metadata.Scalar{metadata.IntValue(1), metadata.StringValue("two")}),
	}
	for _, c := range cases {
		data, err := json.Marshal(c)
		require.NoError(t, err)

		var out metadata.Scalar
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, c.String(), out.String())
	}
}

func TestScalarMarshalsBareValue(t *testing.T) {
	data, err := json.Marshal(metadata.IntValue(7))
	require.NoError(t, err)
	assert.JSONEq(t, "7", string(data))

	data, err = json.Marshal(metadata.StringValue("x"))
	require.NoError(t, err)
	assert.JSONEq(t, `"x"`, string(data))
}

func TestFieldHasTag(t *testing.T) {
	f := metadata.Field{Tags: []metadata.Tag{metadata.Signature, metadata.Legal}}
	assert.True(t, f.HasTag(metadata.Signature))
	assert.False(t, f.HasTag(metadata.Deletable))
}

func TestNewDocument(t *testing.T) {
	d := metadata.NewDocument()
	assert.NotNil(t, d.Primary)
	assert.Empty(t, d.Primary)
	assert.False(t, d.Signed)
}

func TestTagString(t *testing.T) {
	assert.Equal(t, "deletable", metadata.Deletable.String())
	assert.Equal(t, "signature", metadata.Signature.String())
}
