package procmsg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRunJavascriptResponse(t *testing.T) {
	msg := &ProcessMessage{
		Name: NameRunJavascriptResponse,
		Args: []any{7, true, false, "42", false},
	}

	decoded, err := Decode(msg)
	require.NoError(t, err)

	resp, ok := decoded.(RunJavascriptResponse)
	require.True(t, ok, "expected RunJavascriptResponse, got %T", decoded)
	assert.Equal(t, RunJavascriptResponse{RunID: 7, WasExecuted: true, IsException: false, Result: "42", IsUndefined: false}, resp)
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode(&ProcessMessage{Name: "SomethingElse", Args: []any{1}})
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Decode(nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		args  []any
		field string
	}{
		{name: "missing arguments", args: []any{7, true}, field: "is_exception"},
		{name: "wrong run id type", args: []any{"7", true, false, "42", false}, field: "run_id"},
		{name: "fractional run id", args: []any{7.5, true, false, "42", false}, field: "run_id"},
		{name: "wrong flag type", args: []any{7, "yes", false, "42", false}, field: "was_executed"},
		{name: "wrong result type", args: []any{7, true, false, 42, false}, field: "result"},
		{name: "extra arguments", args: []any{7, true, false, "42", false, "extra"}, field: "args"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(&ProcessMessage{Name: NameRunJavascriptResponse, Args: tt.args})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr))
			assert.Equal(t, tt.field, decodeErr.Field)
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	req := RunJavascript{RunID: 3, Script: "document.title"}

	encoded := Encode(req)
	assert.Equal(t, NameRunJavascript, encoded.Name)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, req, decoded)
}

func TestWireRoundTripKeepsIntegers(t *testing.T) {
	resp := RunJavascriptResponse{RunID: 12, WasExecuted: true, IsException: true, Result: "ReferenceError: x is not defined"}

	data, err := Marshal(Encode(resp))
	require.NoError(t, err)

	envelope, err := Unmarshal(data)
	require.NoError(t, err)

	decoded, err := Decode(envelope)
	require.NoError(t, err)
	assert.Equal(t, resp, decoded)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte("{not json"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Unmarshal([]byte(`{"args":[1]}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindRunJavascript, KindOf(NameRunJavascript))
	assert.Equal(t, KindRunJavascriptResponse, KindOf(NameRunJavascriptResponse))
	assert.Equal(t, KindUnknown, KindOf(""))
	assert.Equal(t, "unknown", KindUnknown.String())
}
