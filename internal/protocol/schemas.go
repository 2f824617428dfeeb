package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Inbound message types accepted from links, keyed to their data schema.
var inboundSchemas = map[string]string{
	TypeWebsiteConnect:  "website_connect.schema.json",
	TypeRobotConnect:    "robot_connect.schema.json",
	TypeRobotDisconnect: "robot_disconnect.schema.json",
	TypeUpdateWorldInfo: "update_world_info.schema.json",
	TypeNewDirection:    "new_direction.schema.json",
	TypeCancelDirection: "cancel_direction.schema.json",
	TypeWorldTick:       "world_tick.schema.json",
	TypePickup:          "pickup.schema.json",
}

var ErrUnknownType = errors.New("unknown message type")

// Validator checks inbound frames against the embedded JSON schemas.
type Validator struct {
	envelope *jsonschema.Schema
	data     map[string]*jsonschema.Schema
}

var (
	defaultValidator    *Validator
	defaultValidatorErr error
	defaultValidatorMu  sync.Once
)

// DefaultValidator compiles the embedded schemas once.
func DefaultValidator() (*Validator, error) {
	defaultValidatorMu.Do(func() {
		defaultValidator, defaultValidatorErr = NewValidator()
	})
	return defaultValidator, defaultValidatorErr
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	ents, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	for _, e := range ents {
		b, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaURL(e.Name()), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", e.Name(), err)
		}
	}

	v := &Validator{data: map[string]*jsonschema.Schema{}}
	if v.envelope, err = c.Compile(schemaURL("envelope.schema.json")); err != nil {
		return nil, fmt.Errorf("compile envelope: %w", err)
	}
	for typ, name := range inboundSchemas {
		s, err := c.Compile(schemaURL(name))
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		v.data[typ] = s
	}
	return v, nil
}

func schemaURL(name string) string { return "mem://megabots/" + name }

// DecodeInbound validates raw against the envelope and the per-type data
// schema and returns the decoded frame.
func (v *Validator) DecodeInbound(raw []byte) (Message, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Message{}, err
	}
	if err := v.envelope.Validate(doc); err != nil {
		return Message{}, err
	}
	m, err := Decode(raw)
	if err != nil {
		return Message{}, err
	}
	s := v.data[m.Type]
	if s == nil {
		return m, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	var data any = map[string]any{}
	if obj, ok := doc.(map[string]any); ok {
		if d, ok := obj["data"]; ok && d != nil {
			data = d
		}
	}
	if err := s.Validate(data); err != nil {
		return m, err
	}
	return m, nil
}
