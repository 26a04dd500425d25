package procmsg

import (
	"errors"
	"fmt"
	"math"
)

// Message names as they travel between the browser and renderer processes.
const (
	NameRunJavascript         = "FrameMsg_RunJavascript"
	NameRunJavascriptResponse = "FrameHostMsg_RunJavascriptResponse"
)

var (
	ErrUnknownKind = errors.New("procmsg: unknown message kind")
	ErrMalformed   = errors.New("procmsg: malformed message")
)

// Kind identifies a variant of the process message union
type Kind int

const (
	KindUnknown Kind = iota
	KindRunJavascript
	KindRunJavascriptResponse
)

// String returns the wire name of the kind
func (k Kind) String() string {
	switch k {
	case KindRunJavascript:
		return NameRunJavascript
	case KindRunJavascriptResponse:
		return NameRunJavascriptResponse
	default:
		return "unknown"
	}
}

// KindOf maps a wire name to its kind.
func KindOf(name string) Kind {
	switch name {
	case NameRunJavascript:
		return KindRunJavascript
	case NameRunJavascriptResponse:
		return KindRunJavascriptResponse
	default:
		return KindUnknown
	}
}

// ProcessMessage is the untyped envelope exchanged between processes: a name
// plus a positional argument list of ints, bools and strings.
type ProcessMessage struct {
	Name string `json:"name"`
	Args []any  `json:"args"`
}

// Message is implemented by every decoded variant.
type Message interface {
	Kind() Kind
	args() []any
}

// RunJavascript asks the renderer to evaluate a script in the main frame.
type RunJavascript struct {
	RunID  int
	Script string
}

func (RunJavascript) Kind() Kind { return KindRunJavascript }

func (m RunJavascript) args() []any {
	return []any{m.RunID, m.Script}
}

// RunJavascriptResponse carries the outcome of a RunJavascript request back
// to the browser process.
type RunJavascriptResponse struct {
	RunID       int
	WasExecuted bool
	IsException bool
	Result      string
	IsUndefined bool
}

func (RunJavascriptResponse) Kind() Kind { return KindRunJavascriptResponse }

func (m RunJavascriptResponse) args() []any {
	return []any{m.RunID, m.WasExecuted, m.IsException, m.Result, m.IsUndefined}
}

// DecodeError reports which argument of a recognized message was unusable.
type DecodeError struct {
	Name  string
	Index int
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: argument %d (%s): %v", e.Name, e.Index, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return ErrMalformed }

// Encode wraps a typed message in its wire envelope.
func Encode(m Message) *ProcessMessage {
	return &ProcessMessage{Name: m.Kind().String(), Args: m.args()}
}

// Decode converts an envelope into its typed variant. Unrecognized names
// return ErrUnknownKind; recognized names with missing or mistyped
// arguments return a *DecodeError.
func Decode(msg *ProcessMessage) (Message, error) {
	if msg == nil {
		return nil, ErrUnknownKind
	}

	r := argReader{name: msg.Name, args: msg.Args}

	switch KindOf(msg.Name) {
	case KindRunJavascript:
		m := RunJavascript{
			RunID:  r.readInt(0, "run_id"),
			Script: r.readString(1, "script"),
		}
		if err := r.finish(2); err != nil {
			return nil, err
		}
		return m, nil

	case KindRunJavascriptResponse:
		m := RunJavascriptResponse{
			RunID:       r.readInt(0, "run_id"),
			WasExecuted: r.readBool(1, "was_executed"),
			IsException: r.readBool(2, "is_exception"),
			Result:      r.readString(3, "result"),
			IsUndefined: r.readBool(4, "is_undefined"),
		}
		if err := r.finish(5); err != nil {
			return nil, err
		}
		return m, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, msg.Name)
}

// argReader reads positional arguments and keeps the first failure.
type argReader struct {
	name string
	args []any
	err  error
}

func (r *argReader) at(i int, field string) (any, bool) {
	if r.err != nil {
		return nil, false
	}
	if i >= len(r.args) {
		r.err = &DecodeError{Name: r.name, Index: i, Field: field, Err: errors.New("missing")}
		return nil, false
	}
	return r.args[i], true
}

func (r *argReader) fail(i int, field string, v any) {
	r.err = &DecodeError{Name: r.name, Index: i, Field: field, Err: fmt.Errorf("unexpected type %T", v)}
}

func (r *argReader) readInt(i int, field string) int {
	v, ok := r.at(i, field)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		// JSON numbers arrive as float64
		if n == math.Trunc(n) && n >= math.MinInt32 && n <= math.MaxInt32 {
			return int(n)
		}
	}
	r.fail(i, field, v)
	return 0
}

func (r *argReader) readBool(i int, field string) bool {
	v, ok := r.at(i, field)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		r.fail(i, field, v)
	}
	return b
}

func (r *argReader) readString(i int, field string) string {
	v, ok := r.at(i, field)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(i, field, v)
	}
	return s
}

func (r *argReader) finish(want int) error {
	if r.err != nil {
		return r.err
	}
	if len(r.args) != want {
		return &DecodeError{
			Name:  r.name,
			Index: want,
			Field: "args",
			Err:   fmt.Errorf("expected %d arguments, got %d", want, len(r.args)),
		}
	}
	return nil
}
