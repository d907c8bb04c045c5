package client

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// request is one line sent to the worker.
type request struct {
	ID     uint64               `json:"id"`
	Op     string               `json:"op"`
	Ref    int64                `json:"ref,omitempty"`
	Name   string               `json:"name,omitempty"`
	Args   []wireValue          `json:"args,omitempty"`
	Kwargs map[string]wireValue `json:"kwargs,omitempty"`
	Index  int                  `json:"index,omitempty"`
	Kind   string               `json:"kind,omitempty"`
}

// response is one line read back from the worker. Either Ref, Value or
// Error is set.
type response struct {
	ID    uint64          `json:"id"`
	Ref   int64           `json:"ref,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	Error *PythonError    `json:"error,omitempty"`
}

// wireValue is a typed argument. Types: int, float, bool, str, ints, floats.
type wireValue struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

func encodeValue(v any) (wireValue, error) {
	switch x := v.(type) {
	case int64:
		return wireValue{Type: "int", Value: x}, nil
	case uint64:
		return wireValue{Type: "int", Value: x}, nil
	case int:
		return wireValue{Type: "int", Value: x}, nil
	case float64:
		return wireValue{Type: "float", Value: wireFloat(x)}, nil
	case bool:
		return wireValue{Type: "bool", Value: x}, nil
	case string:
		return wireValue{Type: "str", Value: x}, nil
	case []int64:
		return wireValue{Type: "ints", Value: x}, nil
	case []float64:
		fs := make([]wireFloat, len(x))
		for i, f := range x {
			fs[i] = wireFloat(f)
		}
		return wireValue{Type: "floats", Value: fs}, nil
	}
	return wireValue{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func encodeArgs(args []any, kwargs map[string]any) ([]wireValue, map[string]wireValue, error) {
	var wargs []wireValue
	for _, a := range args {
		w, err := encodeValue(a)
		if err != nil {
			return nil, nil, err
		}
		wargs = append(wargs, w)
	}
	var wkwargs map[string]wireValue
	if len(kwargs) > 0 {
		wkwargs = make(map[string]wireValue, len(kwargs))
		for k, v := range kwargs {
			w, err := encodeValue(v)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", k, err)
			}
			wkwargs[k] = w
		}
	}
	return wargs, wkwargs, nil
}

// wireFloat is a float64 that survives JSON when it is not finite. The
// worker sends nan, inf and -inf as strings.
type wireFloat float64

func (f wireFloat) MarshalJSON() ([]byte, error) {
	x := float64(f)
	switch {
	case math.IsNaN(x):
		return []byte(`"nan"`), nil
	case math.IsInf(x, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(x, -1):
		return []byte(`"-inf"`), nil
	}
	return json.Marshal(x)
}

func (f *wireFloat) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid float %q: %w", s, err)
		}
		*f = wireFloat(x)
		return nil
	}
	var x float64
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	*f = wireFloat(x)
	return nil
}

// extractKind maps an Extract destination to the worker's conversion.
func extractKind(dst any) (string, error) {
	switch dst.(type) {
	case *int:
		return "int", nil
	case *float64:
		return "float", nil
	case *bool:
		return "bool", nil
	case *string:
		return "str", nil
	case *[]int:
		return "ints", nil
	case *[]float32:
		return "floats", nil
	}
	return "", fmt.Errorf("%w: destination %T", ErrUnsupportedValue, dst)
}

func decodeValue(raw json.RawMessage, dst any) error {
	switch d := dst.(type) {
	case *float64:
		var f wireFloat
		if err := json.Unmarshal(raw, &f); err != nil {
			return err
		}
		*d = float64(f)
		return nil
	case *[]float32:
		var fs []wireFloat
		if err := json.Unmarshal(raw, &fs); err != nil {
			return err
		}
		out := make([]float32, len(fs))
		for i, f := range fs {
			out[i] = float32(f)
		}
		*d = out
		return nil
	}
	return json.Unmarshal(raw, dst)
}
