package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var validate = validator.New()

var (
	timeType        = reflect.TypeOf(time.Time{})
	stringSliceType = reflect.TypeOf([]string{})
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Decode copies a document into out, a pointer to a struct tagged with `doc`
// keys, and then runs its `validate` tags.
func Decode(doc Document, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "doc",
		Result:     out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(decodeTime, decodeStringList),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(map[string]any(doc)); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return fmt.Errorf("invalid document: %s failed on '%s'", errs[0].Namespace(), errs[0].Tag())
		}
		return err
	}
	return nil
}

func decodeTime(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != timeType {
		return data, nil
	}
	var raw string
	switch v := data.(type) {
	case time.Time:
		return v, nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return data, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized time %q", raw)
}

func decodeStringList(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != stringSliceType {
		return data, nil
	}
	var raw []byte
	switch v := data.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case nil:
		return []string{}, nil
	default:
		return data, nil
	}
	if len(raw) == 0 {
		return []string{}, nil
	}
	out := []string{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}
