package stac

import "encoding/json"

// captureForeignMembers decodes data into a raw map and returns every member
// whose key is not in known. Keys that fail to decode are skipped rather than
// failing the whole document.
func captureForeignMembers(data []byte, known map[string]bool) (map[string]any, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	foreign := make(map[string]any)
	for key, val := range raw {
		if known[key] {
			continue
		}
		var decoded any
		if err := json.Unmarshal(val, &decoded); err != nil {
			continue
		}
		foreign[key] = decoded
	}
	return foreign, nil
}

// mergeForeignMembers re-encodes data with the foreign members folded back in.
func mergeForeignMembers(data []byte, foreign map[string]any) ([]byte, error) {
	if len(foreign) == 0 {
		return data, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}

	for key, val := range foreign {
		encoded, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		obj[key] = encoded
	}
	return json.Marshal(obj)
}
