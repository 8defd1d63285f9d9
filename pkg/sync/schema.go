package sync

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Only the document envelopes are checked here. Individual flags are decoded
// one by one later so a single broken flag does not reject the whole file.
const flagConfigSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["flags"],
  "properties": {
    "createdAt": {"type": "string"},
    "format": {"type": "string"},
    "environment": {
      "type": "object",
      "properties": {"name": {"type": "string"}}
    },
    "flags": {
      "type": "object",
      "additionalProperties": {"type": "object"}
    },
    "bandits": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["key", "flagKey", "variationValue"],
          "properties": {
            "key": {"type": "string"},
            "flagKey": {"type": "string"},
            "variationKey": {"type": "string"},
            "variationValue": {"type": "string"}
          }
        }
      }
    }
  }
}`

const banditConfigSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["bandits"],
  "properties": {
    "updatedAt": {"type": "string"},
    "bandits": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["banditKey"],
        "properties": {
          "banditKey": {"type": "string"},
          "modelName": {"type": "string"},
          "modelVersion": {"type": "string"},
          "modelData": {"type": ["object", "null"]}
        }
      }
    }
  }
}`

var (
	flagSchemaLoader   = gojsonschema.NewStringLoader(flagConfigSchema)
	banditSchemaLoader = gojsonschema.NewStringLoader(banditConfigSchema)
)

var ErrInvalidDocument = errors.New("invalid configuration document")

func validate(schema gojsonschema.JSONLoader, raw []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(problems, "; "))
	}
	return nil
}
