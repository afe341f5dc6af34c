package event

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSrc string

// ValidationError reports event_data that does not satisfy its kind's schema.
type ValidationError struct {
	Kind    Kind
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s payload: %s", e.Kind, e.Message)
}

// Validator checks event_data against the CUE definitions in schema.cue.
//
// A Validator holds a cue.Context and must not be used from more than one
// goroutine at a time.
type Validator struct {
	ctx  *cue.Context
	defs map[Kind]cue.Value
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile event schema: %w", err)
	}

	defs := make(map[Kind]cue.Value, 3)
	for kind, name := range map[Kind]string{
		KindRegistration: "#Registration",
		KindMatch:        "#Match",
		KindSessionPing:  "#SessionPing",
	} {
		def := schema.LookupPath(cue.ParsePath(name))
		if !def.Exists() {
			return nil, fmt.Errorf("compile event schema: definition %s not found", name)
		}
		defs[kind] = def
	}

	return &Validator{ctx: ctx, defs: defs}, nil
}

// Validate checks that data carries the required fields for kind.
// Neutral records are always valid.
func (v *Validator) Validate(kind Kind, data []byte) error {
	def, ok := v.defs[kind]
	if !ok {
		return nil
	}

	val := v.ctx.CompileBytes(data, cue.Filename("event_data"))
	if err := val.Err(); err != nil {
		return &ValidationError{Kind: kind, Message: err.Error()}
	}

	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Kind: kind, Message: err.Error()}
	}
	return nil
}

// Decode validates the envelope's event_data and decodes it into the typed
// payload for its kind.
func (v *Validator) Decode(env Envelope) (Record, error) {
	rec := Record{ID: env.ID, Timestamp: env.Timestamp, Kind: env.Kind}

	if err := v.Validate(env.Kind, env.Data); err != nil {
		return Record{}, err
	}

	var err error
	switch env.Kind {
	case KindRegistration:
		var p Registration
		err = json.Unmarshal(env.Data, &p)
		rec.Payload = p
	case KindMatch:
		var p Match
		err = json.Unmarshal(env.Data, &p)
		rec.Payload = p
	case KindSessionPing:
		var p SessionPing
		err = json.Unmarshal(env.Data, &p)
		rec.Payload = p
	default:
		rec.Payload = Neutral{}
	}
	if err != nil {
		return Record{}, &ValidationError{Kind: env.Kind, Message: err.Error()}
	}
	return rec, nil
}
