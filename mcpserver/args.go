package mcpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/SamuelRCrider/csp-risk/core"
)

// arguments wraps the raw arguments of one tool call. Structured values are
// accepted either as JSON text or as already-decoded JSON.
type arguments struct {
	tool string
	raw  map[string]interface{}
}

func (a arguments) invalid(format string, args ...interface{}) error {
	return &core.RiskError{Op: a.tool, Kind: core.KindInvalidInput, Err: fmt.Errorf(format, args...)}
}

func (a arguments) has(name string) bool {
	v, ok := a.raw[name]
	return ok && v != nil
}

// String returns a string argument, "" when absent
func (a arguments) String(name string) (string, error) {
	v, ok := a.raw[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", a.invalid("%s must be a string", name)
	}
	return strings.TrimSpace(s), nil
}

// RequiredString returns a non-empty string argument
func (a arguments) RequiredString(name string) (string, error) {
	s, err := a.String(name)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", a.invalid("%s is required", name)
	}
	return s, nil
}

// Number returns a numeric argument or fallback when absent. Numeric strings
// are accepted.
func (a arguments) Number(name string, fallback float64) (float64, error) {
	v, ok := a.raw[name]
	if !ok || v == nil {
		return fallback, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, a.invalid("%s must be a number", name)
		}
		return f, nil
	}
	return 0, a.invalid("%s must be a number", name)
}

// StringList accepts a JSON array, JSON array text or a comma-separated string
func (a arguments) StringList(name string) ([]string, error) {
	v, ok := a.raw[name]
	if !ok || v == nil {
		return nil, nil
	}

	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "[") {
			var list []string
			if err := json.Unmarshal([]byte(s), &list); err != nil {
				return nil, a.invalid("%s: %v", name, err)
			}
			return list, nil
		}
		var list []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				list = append(list, part)
			}
		}
		return list, nil
	}

	items, ok := v.([]interface{})
	if !ok {
		return nil, a.invalid("%s must be a list of strings", name)
	}
	list := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, a.invalid("%s must be a list of strings", name)
		}
		list = append(list, s)
	}
	return list, nil
}

// Frameworks parses a framework list argument
func (a arguments) Frameworks(name string) ([]core.Framework, error) {
	names, err := a.StringList(name)
	if err != nil {
		return nil, err
	}
	frameworks := make([]core.Framework, 0, len(names))
	for _, n := range names {
		f, err := core.ParseFramework(n)
		if err != nil {
			return nil, err
		}
		frameworks = append(frameworks, f)
	}
	return frameworks, nil
}

// errArgumentMissing is returned by Decode for absent optional arguments
var errArgumentMissing = errors.New("argument missing")

// Decode unmarshals a structured argument into dst. Absent arguments yield
// errArgumentMissing unless required.
func (a arguments) Decode(name string, dst interface{}, required bool) error {
	v, ok := a.raw[name]
	if !ok || v == nil {
		if required {
			return a.invalid("%s is required", name)
		}
		return errArgumentMissing
	}

	var data []byte
	if s, ok := v.(string); ok {
		data = []byte(s)
	} else {
		encoded, err := json.Marshal(v)
		if err != nil {
			return a.invalid("%s: %v", name, err)
		}
		data = encoded
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return a.invalid("%s is not valid JSON: %v", name, err)
	}
	return nil
}

// decodeOptional is Decode treating absence as success
func (a arguments) decodeOptional(name string, dst interface{}) error {
	if err := a.Decode(name, dst, false); err != nil && !errors.Is(err, errArgumentMissing) {
		return err
	}
	return nil
}
