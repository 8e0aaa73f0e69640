package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidRequest is returned when a request body fails schema validation
var ErrInvalidRequest = errors.New("invalid request")

const executeRequestSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["query"],
	"properties": {
		"query": {
			"type": "string",
			"minLength": 1,
			"maxLength": 8192
		}
	}
}`

var executeSchema = mustSchema(executeRequestSchema)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("gateway: invalid request schema: %v", err))
	}
	return schema
}

// decodeExecuteRequest validates body against the request schema and decodes it
func decodeExecuteRequest(body []byte) (ExecuteRequest, error) {
	var req ExecuteRequest

	result, err := executeSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return req, fmt.Errorf("%w: malformed JSON: %v", ErrInvalidRequest, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return req, fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}

	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return req, nil
}
