package integration

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

var errInvalidJSON = errors.New("invalid json")

// MapResponse applies a field mapping (output key to gjson path) to a JSON body.
// With no mapping the decoded body is returned unchanged. Keys whose path
// does not resolve are left out of the result.
func MapResponse(body []byte, mapping map[string]string) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, errInvalidJSON
	}

	if len(mapping) == 0 {
		var raw any
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	}

	out := make(map[string]any, len(mapping))
	for key, path := range mapping {
		res := gjson.GetBytes(body, path)
		if !res.Exists() {
			continue
		}
		out[key] = res.Value()
	}
	return out, nil
}
