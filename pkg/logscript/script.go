// Package logscript lets users filter and rewrite stream log lines with a
// small JavaScript file:
//
//	register({
//	  name: "quiet",
//	  filter(line, ctx) { return !line.startsWith("DEBUG"); },
//	  transform(line, ctx) { return line.toUpperCase(); },
//	});
//
// A hook that throws or times out keeps the original line.
package logscript

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/dop251/goja"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrNoRegister = errors.New("logscript: script did not call register()")
var ErrHookTimeout = errors.New("logscript: hook timeout")

type Options struct {
	// HookTimeout bounds every hook call. Zero disables the limit.
	HookTimeout time.Duration
}

type Stats struct {
	Lines        int64
	Dropped      int64
	Rewritten    int64
	HookErrors   int64
	HookTimeouts int64
}

// Script is a loaded log script. It is safe for concurrent use; calls are
// serialized because a goja runtime is single threaded.
type Script struct {
	mu   sync.Mutex
	vm   *goja.Runtime
	opts Options
	path string
	name string

	config *goja.Object
	state  *goja.Object

	filterFn    goja.Callable
	transformFn goja.Callable
	shutdownFn  goja.Callable
	onErrorFn   goja.Callable

	lineNumber int64
	stats      Stats
}

func LoadFile(path string, opts Options) (*Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read log script")
	}
	return Load(path, string(b), opts)
}

// Load compiles and runs src. name is used in error messages.
func Load(name string, src string, opts Options) (*Script, error) {
	s := &Script{
		vm:   goja.New(),
		opts: opts,
		path: name,
	}
	s.state = s.vm.NewObject()
	installConsole(s.vm, name)

	if err := s.vm.Set("register", func(config goja.Value) error {
		if s.config != nil {
			return errors.New("register() called more than once")
		}
		if isNullish(config) {
			return errors.New("register(config) requires a config object")
		}
		s.config = config.ToObject(s.vm)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "set register")
	}

	if _, err := s.vm.RunScript("logscript:helpers", helpersJS); err != nil {
		return nil, errors.Wrap(err, "load helpers")
	}
	if err := s.installGoHelpers(); err != nil {
		return nil, err
	}

	prog, err := goja.Compile(name, src, false)
	if err != nil {
		return nil, errors.Wrap(err, "compile log script")
	}
	if _, err := s.vm.RunProgram(prog); err != nil {
		return nil, errors.Wrap(err, "run log script")
	}
	if s.config == nil {
		return nil, ErrNoRegister
	}

	nameVal := s.config.Get("name")
	if isNullish(nameVal) || strings.TrimSpace(nameVal.String()) == "" {
		return nil, errors.New("register({ name: string, ... }): name is required")
	}
	s.name = nameVal.String()

	s.filterFn, _ = goja.AssertFunction(s.config.Get("filter"))
	s.transformFn, _ = goja.AssertFunction(s.config.Get("transform"))
	s.shutdownFn, _ = goja.AssertFunction(s.config.Get("shutdown"))
	s.onErrorFn, _ = goja.AssertFunction(s.config.Get("onError"))
	if s.filterFn == nil && s.transformFn == nil {
		return nil, errors.New("register(): filter or transform is required")
	}

	if initFn, ok := goja.AssertFunction(s.config.Get("init")); ok {
		ctxObj := s.context("init")
		if _, err := s.call(initFn, ctxObj); err != nil {
			s.hookFailed("init", err, goja.Undefined(), ctxObj)
		}
	}

	return s, nil
}

func (s *Script) Name() string { return s.name }

func (s *Script) Path() string { return s.path }

func (s *Script) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Apply runs filter then transform on line. It returns false when the line
// should be dropped.
func (s *Script) Apply(line string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lineNumber++
	s.stats.Lines++
	lineVal := s.vm.ToValue(line)

	if s.filterFn != nil {
		ctxObj := s.context("filter")
		keep, err := s.call(s.filterFn, lineVal, ctxObj)
		if err != nil {
			s.hookFailed("filter", err, lineVal, ctxObj)
			return line, true
		}
		if !keep.ToBoolean() {
			s.stats.Dropped++
			return "", false
		}
	}

	if s.transformFn == nil {
		return line, true
	}

	ctxObj := s.context("transform")
	out, err := s.call(s.transformFn, lineVal, ctxObj)
	if err != nil {
		s.hookFailed("transform", err, lineVal, ctxObj)
		return line, true
	}
	if isNullish(out) {
		s.stats.Dropped++
		return "", false
	}

	rewritten := line
	switch v := out.Export().(type) {
	case string:
		rewritten = v
	case map[string]any:
		if msg, ok := v["message"]; ok && msg != nil {
			rewritten = out.ToObject(s.vm).Get("message").String()
		}
	default:
		rewritten = out.String()
	}
	if rewritten != line {
		s.stats.Rewritten++
	}
	return rewritten, true
}

// Close runs the shutdown hook, if any.
func (s *Script) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdownFn == nil {
		return nil
	}
	ctxObj := s.context("shutdown")
	if _, err := s.call(s.shutdownFn, ctxObj); err != nil {
		s.hookFailed("shutdown", err, goja.Undefined(), ctxObj)
		return errors.Wrap(err, "log script shutdown")
	}
	return nil
}

func (s *Script) context(hook string) *goja.Object {
	obj := s.vm.NewObject()
	_ = obj.Set("hook", hook)
	_ = obj.Set("lineNumber", s.lineNumber)
	_ = obj.Set("state", s.state)
	_ = obj.Set("now", s.newDate(time.Now().UTC()))
	return obj
}

func (s *Script) call(fn goja.Callable, args ...goja.Value) (goja.Value, error) {
	if s.opts.HookTimeout > 0 {
		timer := time.AfterFunc(s.opts.HookTimeout, func() {
			s.vm.Interrupt(ErrHookTimeout)
		})
		defer timer.Stop()
		defer s.vm.ClearInterrupt()
	}
	return fn(goja.Undefined(), args...)
}

func (s *Script) hookFailed(hook string, err error, payload goja.Value, ctxObj *goja.Object) {
	s.stats.HookErrors++
	if isTimeout(err) {
		s.stats.HookTimeouts++
	}
	log.Debug().Err(err).Str("script", s.name).Str("hook", hook).Msg("log script hook failed")

	if s.onErrorFn == nil {
		return
	}
	_ = ctxObj.Set("hook", hook)
	if _, err := s.call(s.onErrorFn, s.vm.ToValue(err.Error()), payload, ctxObj); err != nil {
		log.Debug().Err(err).Str("script", s.name).Msg("log script onError failed")
	}
}

func (s *Script) newDate(t time.Time) goja.Value {
	o, err := s.vm.New(s.vm.Get("Date"), s.vm.ToValue(t.UnixMilli()))
	if err != nil {
		return goja.Undefined()
	}
	return o
}

// installGoHelpers adds log.parseTimestamp(value), which accepts anything
// dateparse understands plus unix seconds or milliseconds, and returns a
// Date or null.
func (s *Script) installGoHelpers() error {
	logVal := s.vm.Get("log")
	if isNullish(logVal) {
		return errors.New("logscript: helpers did not define globalThis.log")
	}
	logObj := logVal.ToObject(s.vm)

	err := logObj.Set("parseTimestamp", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 || isNullish(call.Arguments[0]) {
			return goja.Null()
		}
		t, ok := parseTimestamp(call.Arguments[0].Export())
		if !ok {
			return goja.Null()
		}
		return s.newDate(t)
	})
	return errors.Wrap(err, "set log.parseTimestamp")
}

func parseTimestamp(v any) (time.Time, bool) {
	fromUnix := func(i int64) time.Time {
		if i > 0 && i < 1_000_000_000_000 {
			return time.Unix(i, 0).UTC()
		}
		return time.UnixMilli(i).UTC()
	}

	switch vv := v.(type) {
	case time.Time:
		return vv.UTC(), true
	case int64:
		return fromUnix(vv), true
	case float64:
		return fromUnix(int64(vv)), true
	case string:
		str := strings.TrimSpace(vv)
		if str == "" {
			return time.Time{}, false
		}
		if i, err := strconv.ParseInt(str, 10, 64); err == nil {
			return fromUnix(i), true
		}
		t, err := dateparse.ParseAny(str)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}

// installConsole routes console output to the diagnostics log so scripts do
// not write over the terminal UI.
func installConsole(vm *goja.Runtime, script string) {
	obj := vm.NewObject()
	logFn := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, a := range call.Arguments {
				parts = append(parts, a.String())
			}
			ev := log.Debug()
			if level != "log" {
				ev = log.Warn()
			}
			ev.Str("script", script).Msg(strings.Join(parts, " "))
			return goja.Undefined()
		}
	}
	_ = obj.Set("log", logFn("log"))
	_ = obj.Set("warn", logFn("warn"))
	_ = obj.Set("error", logFn("error"))
	_ = vm.Set("console", obj)
}

func isNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

func isTimeout(err error) bool {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if v, ok := interrupted.Value().(error); ok && errors.Is(v, ErrHookTimeout) {
			return true
		}
	}
	return errors.Is(err, ErrHookTimeout)
}
