package goddi

import (
	"errors"
	"io"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// ReadExtractDescription parses an extract-definition document, which
// may be JSON or YAML, into a generic map. JSON is attempted first.
func ReadExtractDescription(src Source) (map[string]any, error) {
	rc, _, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err == nil {
		return out, nil
	}
	if err := yaml.Unmarshal(data, &out); err == nil {
		return out, nil
	}
	return nil, errors.New("contents of extract file appear to be neither json nor yaml")
}
