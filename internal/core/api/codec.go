package api

import (
	"fmt"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"google.golang.org/protobuf/types/known/structpb"
)

// decodeRequest copies a Struct message into out, matching json tags.
// Weak typing lets identifiers arrive as decimal strings or numbers;
// unknown keys are rejected.
func decodeRequest(in *structpb.Struct, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in.AsMap())
}

// encodeResponse converts a response map into a Struct message.
func encodeResponse(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	return out, nil
}

// idStrings renders identifiers as decimal strings for Struct lists.
func idStrings[T ~uint64](ids []T) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatUint(uint64(id), 10)
	}
	return out
}

func stringList[T ~string](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func errorList(errs []error) []any {
	out := make([]any, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
