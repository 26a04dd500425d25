package scriptrunner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webview/internal/monitoring"
	"github.com/GriffinCanCode/AgentOS/webview/internal/procmsg"
)

// ErrTimeout is the interrupt value used when a script runs too long.
var ErrTimeout = errors.New("execution timeout exceeded")

// Config controls script execution.
type Config struct {
	Timeout       time.Duration
	EnableConsole bool
}

// DefaultConfig returns safe default configuration
func DefaultConfig() Config {
	return Config{
		Timeout:       2 * time.Second,
		EnableConsole: true,
	}
}

// Runtime is the renderer-side script context of one page. It is replaced
// on every navigation.
type Runtime struct {
	vm      *goja.Runtime
	config  Config
	logger  *zap.Logger
	metrics *monitoring.Metrics
	url     string
	mu      sync.Mutex
}

// New creates a runtime with no page loaded.
func New(config Config, logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	r := &Runtime{
		config: config,
		logger: logger,
	}
	r.vm = r.newVM()
	return r
}

// WithMetrics adds metrics tracking to the runtime
func (r *Runtime) WithMetrics(metrics *monitoring.Metrics) *Runtime {
	r.metrics = metrics
	return r
}

// Navigate discards all script state and exposes url as the page location.
func (r *Runtime) Navigate(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.url = url
	r.vm = r.newVM()
}

// Execute runs script and answers with the response for runID. Nothing runs
// when ctx is already done, which reports WasExecuted=false.
func (r *Runtime) Execute(ctx context.Context, runID int, script string) procmsg.RunJavascriptResponse {
	resp := procmsg.RunJavascriptResponse{RunID: runID}
	if ctx.Err() != nil {
		resp.Result = ctx.Err().Error()
		return resp
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() { r.metrics.RecordScript(time.Since(start)) }()

	var (
		doneMu sync.Mutex
		done   bool
	)
	interrupt := func(v any) {
		doneMu.Lock()
		defer doneMu.Unlock()
		if !done {
			r.vm.Interrupt(v)
		}
	}
	timer := time.AfterFunc(r.config.Timeout, func() { interrupt(ErrTimeout) })
	stopCtx := context.AfterFunc(ctx, func() { interrupt(ctx.Err()) })

	val, err := r.vm.RunString(script)

	doneMu.Lock()
	done = true
	doneMu.Unlock()
	timer.Stop()
	stopCtx()
	r.vm.ClearInterrupt()

	resp.WasExecuted = true
	if err != nil {
		resp.IsException = true
		resp.Result = exceptionText(err)
		r.logger.Debug("Script raised", zap.Int("run_id", runID), zap.String("error", resp.Result))
		return resp
	}

	if val == nil || goja.IsUndefined(val) {
		resp.IsUndefined = true
		return resp
	}
	resp.Result = r.stringify(val)
	return resp
}

// newVM builds a fresh VM with the page globals installed.
func (r *Runtime) newVM() *goja.Runtime {
	vm := goja.New()
	vm.SetMaxCallStackSize(1024)

	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())
	vm.Set("exports", goja.Undefined())

	location := vm.NewObject()
	_ = location.Set("href", r.url)
	_ = vm.Set("location", location)

	document := vm.NewObject()
	_ = document.Set("URL", r.url)
	_ = document.Set("location", location)
	_ = vm.Set("document", document)
	_ = vm.Set("window", vm.GlobalObject())

	if r.config.EnableConsole {
		console := vm.NewObject()
		for _, level := range []string{"log", "info", "warn", "error"} {
			_ = console.Set(level, r.makeConsoleFunc(level))
		}
		_ = vm.Set("console", console)
	}

	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = vm.Set("setTimeout", noop)
	_ = vm.Set("setInterval", noop)

	return vm
}

// makeConsoleFunc forwards page console output to the logger
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		r.logger.Debug("Page console",
			zap.String("level", level),
			zap.String("url", r.url),
			zap.String("message", strings.Join(parts, " ")))
		return goja.Undefined()
	}
}

// stringify renders primitives with their JS string form and objects as
// JSON, falling back to the string form when JSON has no representation.
func (r *Runtime) stringify(val goja.Value) string {
	obj, ok := val.(*goja.Object)
	if !ok {
		return val.String()
	}
	if _, isFunc := goja.AssertFunction(obj); isFunc {
		return val.String()
	}

	stringify, ok := goja.AssertFunction(r.vm.Get("JSON").ToObject(r.vm).Get("stringify"))
	if !ok {
		return val.String()
	}
	out, err := stringify(goja.Undefined(), val)
	if err != nil || out == nil || goja.IsUndefined(out) {
		return val.String()
	}
	return out.String()
}

func exceptionText(err error) string {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		if v := exc.Value(); v != nil {
			if obj, ok := v.(*goja.Object); ok {
				if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
					return fmt.Sprintf("%s: %s", obj.Get("name"), msg)
				}
			}
			return v.String()
		}
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if e, ok := interrupted.Value().(error); ok {
			return e.Error()
		}
		return fmt.Sprint(interrupted.Value())
	}

	return err.Error()
}
