package database

import (
	"fmt"
	"reflect"
	"strings"
)

// BuildFilter turns the non-zero fields of doc into an equality filter keyed by bson field name.
// Inline embedded structs contribute their own fields.
func BuildFilter(doc any) (Filter, error) {
	v := reflect.ValueOf(doc)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return Filter{}, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("filter source must be a struct, got %s", v.Kind())
	}

	filter := Filter{}
	collectFields(v, filter)
	return filter, nil
}

func collectFields(v reflect.Value, filter Filter) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name, inline, skip := parseBSONTag(field)
		if skip {
			continue
		}

		value := v.Field(i)
		if inline && value.Kind() == reflect.Struct {
			collectFields(value, filter)
			continue
		}

		if value.IsZero() {
			continue
		}
		if value.Kind() == reflect.Pointer {
			value = value.Elem()
		}
		filter[name] = value.Interface()
	}
}

func parseBSONTag(field reflect.StructField) (name string, inline, skip bool) {
	tag, ok := field.Tag.Lookup("bson")
	if !ok {
		return strings.ToLower(field.Name), false, false
	}
	if tag == "-" {
		return "", false, true
	}

	parts := strings.Split(tag, ",")
	name = parts[0]
	for _, opt := range parts[1:] {
		if opt == "inline" {
			inline = true
		}
	}
	if name == "" {
		name = strings.ToLower(field.Name)
	}
	return name, inline, false
}
