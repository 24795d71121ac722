package goddi

import (
	"testing"

	"github.com/microdatatools/goddi/internal/testutil"
)

func TestReadExtractDescriptionJSON(t *testing.T) {
	doc := []byte(`{
		"extract": {
			"description": "test extract",
			"samples": {"us2020a": {}},
			"variables": {"AGE": {}, "SEX": {}}
		}
	}`)
	out, err := ReadExtractDescription(Bytes("extract.json", doc))
	testutil.NoError(t, err, "ReadExtractDescription")

	extract, ok := out["extract"].(map[string]any)
	testutil.True(t, ok, "extract block")
	testutil.Equal(t, "test extract", extract["description"].(string), "description")
}

func TestReadExtractDescriptionYAML(t *testing.T) {
	doc := []byte("extract:\n  description: test extract\n  samples:\n    us2020a: {}\n")
	out, err := ReadExtractDescription(Bytes("extract.yml", doc))
	testutil.NoError(t, err, "ReadExtractDescription")

	extract, ok := out["extract"].(map[string]any)
	testutil.True(t, ok, "extract block")
	testutil.Equal(t, "test extract", extract["description"].(string), "description")
}

func TestReadExtractDescriptionGarbage(t *testing.T) {
	_, err := ReadExtractDescription(Bytes("extract.txt", []byte("[unterminated")))
	testutil.True(t, err != nil, "garbage input")
	testutil.Contains(t, err.Error(), "neither json nor yaml", "error message")
}
