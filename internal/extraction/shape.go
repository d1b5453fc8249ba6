package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
)

// UnresolvedMarker is returned as text for fields no task is registered for.
const UnresolvedMarker = "<AI> To Prompt"

// ErrInvalidResponse marks a service response that does not match the task shape.
var ErrInvalidResponse = errors.New("response does not match declared shape")

// Shape is the output type a task expects from the extraction service.
type Shape int

const (
	ShapeText Shape = iota
	ShapeInteger
	ShapeSubstances
)

func (s Shape) String() string {
	switch s {
	case ShapeText:
		return "text"
	case ShapeInteger:
		return "integer"
	case ShapeSubstances:
		return "substances"
	default:
		return "unknown"
	}
}

// Substance is one chemical substance reported by the extraction service.
type Substance struct {
	Name      string `json:"name" jsonschema:"description=Chemical name"`
	CASNumber string `json:"cas_number" jsonschema:"description=CAS registry number"`
	Quantity  string `json:"quantity" jsonschema:"description=Quantity released or spilled"`
	CLPClass  string `json:"clp_class" jsonschema:"description=CLP hazard classification"`
}

type textResponse struct {
	Response string `json:"response"`
}

type integerResponse struct {
	Response int `json:"response"`
}

type substancesResponse struct {
	Response []Substance `json:"response" jsonschema:"description=Substances involved in the accident (possibly none)"`
}

// OutputSchema is the JSON Schema a response must conform to.
type OutputSchema struct {
	Name   string
	Schema *jsonschema.Schema
}

var reflector = &jsonschema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
	ExpandedStruct:            true,
}

// Schema builds the structured-output schema for the shape.
func (s Shape) Schema() OutputSchema {
	var v any
	switch s {
	case ShapeInteger:
		v = &integerResponse{}
	case ShapeSubstances:
		v = &substancesResponse{}
	default:
		v = &textResponse{}
	}

	schema := reflector.Reflect(v)
	schema.Version = ""
	schema.ID = ""
	return OutputSchema{Name: s.String() + "_response", Schema: schema}
}

// Result is the typed value extracted for one field.
type Result struct {
	Field      string
	Shape      Shape
	Text       string
	Number     int
	Substances []Substance
	Unresolved bool
}

// String renders the result as text; unresolved fields render as UnresolvedMarker.
func (r Result) String() string {
	if r.Unresolved {
		return UnresolvedMarker
	}
	switch r.Shape {
	case ShapeInteger:
		return strconv.Itoa(r.Number)
	case ShapeSubstances:
		names := make([]string, 0, len(r.Substances))
		for _, s := range r.Substances {
			names = append(names, s.Name)
		}
		return strings.Join(names, ", ")
	default:
		return r.Text
	}
}

func (s Shape) zero(field string) Result {
	res := Result{Field: field, Shape: s}
	if s == ShapeSubstances {
		res.Substances = []Substance{}
	}
	return res
}

// decode validates a raw {"response": ...} object and returns the typed
// result together with its canonical encoding.
func (s Shape) decode(field string, raw json.RawMessage) (Result, json.RawMessage, error) {
	var envelope struct {
		Response json.RawMessage `json:"response"`
	}
	if err := strictUnmarshal(raw, &envelope); err != nil {
		return Result{}, nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	value := bytes.TrimSpace(envelope.Response)
	missing := len(value) == 0 || bytes.Equal(value, []byte("null"))

	res := s.zero(field)
	var canonical any
	switch s {
	case ShapeText:
		if missing {
			return Result{}, nil, fmt.Errorf("%w: missing text response", ErrInvalidResponse)
		}
		if err := json.Unmarshal(value, &res.Text); err != nil {
			return Result{}, nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		canonical = textResponse{Response: res.Text}
	case ShapeInteger:
		if missing {
			return Result{}, nil, fmt.Errorf("%w: missing integer response", ErrInvalidResponse)
		}
		if err := json.Unmarshal(value, &res.Number); err != nil {
			return Result{}, nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		canonical = integerResponse{Response: res.Number}
	case ShapeSubstances:
		if !missing {
			if err := strictUnmarshal(value, &res.Substances); err != nil {
				return Result{}, nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
			}
		}
		if res.Substances == nil {
			res.Substances = []Substance{}
		}
		canonical = substancesResponse{Response: res.Substances}
	default:
		return Result{}, nil, fmt.Errorf("%w: unknown shape %d", ErrInvalidResponse, s)
	}

	encoded, err := json.Marshal(canonical)
	if err != nil {
		return Result{}, nil, fmt.Errorf("encode %s response: %w", s, err)
	}
	return res, encoded, nil
}

func strictUnmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
