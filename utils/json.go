package utils

import (
	"os"

	json "github.com/bytedance/sonic"
)

func JsonString(obj any) string {
	jsonStr, _ := json.Marshal(obj)
	return string(jsonStr)
}

func JsonIndent(obj any) string {
	jsonStr, _ := json.MarshalIndent(obj, "", "  ")
	return string(jsonStr)
}

// LoadJSONFile decodes the JSON file at path into v.
func LoadJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
