package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"sirius/pkg/common"
	apperrors "sirius/pkg/errors"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const functionNameLength = 16

// Function is a Go function the model may call. Its parameters are the fields of an args struct;
// each field's description tag documents it, and pointer or omitempty fields are optional.
type Function struct {
	Name        string
	Description string
	Parameters  *jsonschema.Definition

	handler func(ctx context.Context, args json.RawMessage) (any, error)
}

// NewFunction wraps fn so the model can call it with JSON arguments decoded into A
func NewFunction[A any](description string, fn func(ctx context.Context, args A) (any, error)) (*Function, error) {
	var zero A
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, apperrors.NewSDKClientError(fmt.Sprintf("function arguments must be a struct, got %v", t), nil)
	}

	schema, err := jsonschema.GenerateSchemaForType(zero)
	if err != nil {
		return nil, apperrors.NewSDKClientError("failed to derive function parameters", err)
	}
	schema.Required = slices.DeleteFunc(schema.Required, func(name string) bool {
		return isPointerField(t, name)
	})

	return &Function{
		Name:        common.GetUniqueID(functionNameLength),
		Description: description,
		Parameters:  schema,
		handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args A
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, apperrors.NewSDKClientError("invalid function arguments", err)
				}
			}
			return fn(ctx, args)
		},
	}, nil
}

func isPointerField(t reflect.Type, property string) bool {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" {
			name = field.Name
		}
		if name == property {
			return field.Type.Kind() == reflect.Pointer
		}
	}
	return false
}

// Call runs the function with raw JSON arguments
func (f *Function) Call(ctx context.Context, args json.RawMessage) (any, error) {
	return f.handler(ctx, args)
}

func (f *Function) tool() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        f.Name,
			Description: f.Description,
			Parameters:  f.Parameters,
		},
	}
}
