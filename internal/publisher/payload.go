package publisher

import (
	"errors"
	"fmt"
	"strings"

	"cdr-service/internal/calls"

	jsoniter "github.com/json-iterator/go"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	ErrEmptyBatch     = errors.New("publisher: empty batch")
	ErrInvalidPayload = errors.New("publisher: payload does not match schema")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const batchSchemaURL = "cdr-batch.schema.json"

const batchSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "additionalProperties": false,
    "required": ["callType", "servicedMsisdn", "otherMsisdn", "startDateTime", "finishDateTime"],
    "properties": {
      "callType": {"enum": ["01", "02"]},
      "servicedMsisdn": {"type": "string", "minLength": 1},
      "otherMsisdn": {"type": "string", "minLength": 1},
      "startDateTime": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}:[0-9]{2}:[0-9]{2}$"},
      "finishDateTime": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}:[0-9]{2}:[0-9]{2}$"}
    }
  }
}`

// Encoder turns a batch into the JSON message body and checks it against the batch schema
// before anything reaches the transport.
type Encoder struct {
	schema *jsonschema.Schema
}

func NewEncoder() (*Encoder, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(batchSchemaURL, strings.NewReader(batchSchema)); err != nil {
		return nil, fmt.Errorf("publisher: add schema: %w", err)
	}
	s, err := c.Compile(batchSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("publisher: compile schema: %w", err)
	}
	return &Encoder{schema: s}, nil
}

func (e *Encoder) Encode(batch []calls.Transport) ([]byte, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("publisher: encode batch: %w", err)
	}
	if err := e.Validate(body); err != nil {
		return nil, err
	}
	return body, nil
}

// Validate checks a raw message body against the batch schema.
func (e *Encoder) Validate(body []byte) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := e.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
