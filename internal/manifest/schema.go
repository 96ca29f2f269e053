package manifest

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var artifactSchema = map[string]any{
	"type":     "object",
	"required": []string{"url", "sha1"},
	"properties": map[string]any{
		"url":  map[string]any{"type": "string", "minLength": 1},
		"sha1": map[string]any{"type": "string"},
		"size": map[string]any{"type": "integer"},
	},
}

var versionSchema = map[string]any{
	"type":     "object",
	"required": []string{"id", "assetIndex", "downloads", "libraries"},
	"properties": map[string]any{
		"id": map[string]any{"type": "string", "minLength": 1},
		"assetIndex": map[string]any{
			"type":     "object",
			"required": []string{"id", "url"},
			"properties": map[string]any{
				"id":  map[string]any{"type": "string"},
				"url": map[string]any{"type": "string", "minLength": 1},
			},
		},
		"downloads": map[string]any{
			"type":       "object",
			"required":   []string{"client"},
			"properties": map[string]any{"client": artifactSchema},
		},
		"javaVersion": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"majorVersion": map[string]any{"type": "integer", "minimum": 1},
			},
		},
		"libraries": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"name"},
				"properties": map[string]any{
					"name": map[string]any{"type": "string"},
					"downloads": map[string]any{
						"type":       "object",
						"properties": map[string]any{"artifact": artifactSchema},
					},
					"rules": map[string]any{"type": "array"},
				},
			},
		},
	},
}

var assetIndexSchema = map[string]any{
	"type":     "object",
	"required": []string{"objects"},
	"properties": map[string]any{
		"objects": map[string]any{
			"type": "object",
			"additionalProperties": map[string]any{
				"type":     "object",
				"required": []string{"hash"},
				"properties": map[string]any{
					"hash": map[string]any{"type": "string"},
					"size": map[string]any{"type": "integer"},
				},
			},
		},
	},
}

// ValidateVersion checks a raw version document against the structural
// schema the installer relies on.
func ValidateVersion(doc []byte) error {
	return validate("version", versionSchema, doc)
}

// ValidateAssetIndex checks a raw asset index document.
func ValidateAssetIndex(doc []byte) error {
	return validate("asset index", assetIndexSchema, doc)
}

func validate(what string, schema map[string]any, doc []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDocument, what, err)
	}
	if !result.Valid() {
		var errs strings.Builder
		for _, desc := range result.Errors() {
			fmt.Fprintf(&errs, "\n- %s", desc)
		}
		return fmt.Errorf("%w: %s:%s", ErrInvalidDocument, what, errs.String())
	}
	return nil
}
