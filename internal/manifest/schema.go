package manifest

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema describes the manifest document: a version string and an
// object mapping asset paths to hash strings
const documentSchema = `{
	"type": "object",
	"required": ["version", "assets"],
	"properties": {
		"version": {"type": "string"},
		"assets": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		}
	}
}`

var schema = mustCompile(documentSchema)

func mustCompile(doc string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("manifest: invalid document schema: %v", err))
	}
	return s
}

// validate checks a plain JSON manifest document against the schema
func validate(data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		msgs = append(msgs, verr.String())
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
