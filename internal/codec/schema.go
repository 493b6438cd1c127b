package codec

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/OCAP2/simbridge/pkg/core"
)

const vector3Schema = `{
  "type": "object",
  "properties": {
    "x": {"type": "number"},
    "y": {"type": "number"},
    "z": {"type": "number"}
  },
  "required": ["x", "y", "z"],
  "additionalProperties": false
}`

const transformSchema = `{
  "$defs": {
    "vector3": ` + vector3Schema + `
  },
  "type": "object",
  "properties": {
    "position": {"$ref": "#/$defs/vector3"},
    "rotation": {"$ref": "#/$defs/vector3"}
  },
  "required": ["position", "rotation"],
  "additionalProperties": false
}`

const colorSchema = `{
  "type": "object",
  "properties": {
    "r": {"type": "number"},
    "g": {"type": "number"},
    "b": {"type": "number"},
    "a": {"type": "number"}
  },
  "required": ["r", "g", "b", "a"],
  "additionalProperties": false
}`

const geoSchema = `{
  "type": "object",
  "properties": {
    "Latitude": {"type": "number", "minimum": -90, "maximum": 90},
    "Longitude": {"type": "number", "minimum": -180, "maximum": 180},
    "Height": {"type": "number"}
  },
  "required": ["Latitude", "Longitude", "Height"],
  "additionalProperties": false
}`

const entityStateSchema = `{
  "type": "object",
  "properties": {
    "Latitude": {"type": "number"},
    "Longitude": {"type": "number"},
    "AltitudeMeters": {"type": "number"},
    "RollRad": {"type": "number"},
    "PitchRad": {"type": "number"},
    "YawRad": {"type": "number"}
  },
  "required": ["Latitude", "Longitude", "AltitudeMeters", "RollRad", "PitchRad", "YawRad"]
}`

const snapshotSchema = `{
  "$defs": {
    "entityState": ` + entityStateSchema + `
  },
  "type": "object",
  "properties": {
    "Timestamp": {"type": "number"},
    "Actors": {
      "type": "object",
      "additionalProperties": {"$ref": "#/$defs/entityState"}
    }
  },
  "required": ["Timestamp", "Actors"],
  "additionalProperties": false
}`

const stringListSchema = `{
  "type": "array",
  "items": {"type": "string"}
}`

// schemas is built once at init and never mutated.
var schemas = map[reflect.Type]*jsonschema.Schema{
	TypeOf[core.Vector3]():            jsonschema.MustCompileString("vector3.json", vector3Schema),
	TypeOf[core.Transform]():          jsonschema.MustCompileString("transform.json", transformSchema),
	TypeOf[core.Color]():              jsonschema.MustCompileString("color.json", colorSchema),
	TypeOf[core.GeoCoordinate]():      jsonschema.MustCompileString("geocoordinate.json", geoSchema),
	TypeOf[core.EntityState]():        jsonschema.MustCompileString("entitystate.json", entityStateSchema),
	TypeOf[core.SimulationSnapshot](): jsonschema.MustCompileString("snapshot.json", snapshotSchema),
	TypeOf[[]string]():                jsonschema.MustCompileString("stringlist.json", stringListSchema),
}

func validate(t reflect.Type, data []byte) error {
	s, ok := schemas[t]
	if !ok {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return s.Validate(doc)
}
