package streaming

import (
	"encoding/json"
	"fmt"
)

// Default endpoint paths served by the bridge transports.
const (
	TelemetryPath = "/telemetry"
	CommandPath   = "/command"
)

// Request is a single remote verb invocation. Each argument is a JSON
// string, number or bool; structured values travel as their codec text in
// a string argument.
type Request struct {
	Verb string            `json:"verb"`
	Args []json.RawMessage `json:"args"`
}

// NewRequest marshals args into a Request.
func NewRequest(verb string, args ...any) (Request, error) {
	raw := make([]json.RawMessage, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return Request{}, fmt.Errorf("marshal arg %d of %s: %w", i, verb, err)
		}
		raw[i] = b
	}
	return Request{Verb: verb, Args: raw}, nil
}

// StringArgs renders every argument as text: JSON strings are unquoted,
// numbers and bools keep their literal form.
func (r Request) StringArgs() ([]string, error) {
	out := make([]string, len(r.Args))
	for i, a := range r.Args {
		if len(a) > 0 && a[0] == '"' {
			var s string
			if err := json.Unmarshal(a, &s); err != nil {
				return nil, fmt.Errorf("arg %d of %s: %w", i, r.Verb, err)
			}
			out[i] = s
			continue
		}
		out[i] = string(a)
	}
	return out, nil
}
