// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

package wasm

import (
	"bytes"
	"context"
	"expvar"
	"sync"

	"github.com/golang/glog"
	"github.com/golang/groupcache/lru"
	"github.com/google/rulewasm/internal/scan"
	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.opencensus.io/trace"
)

var (
	// ExecutableCacheHits counts compilations answered from the cache.
	ExecutableCacheHits = expvar.NewInt("executable_cache_hits_total")
	// ExecutableCacheMisses counts modules compiled to native code.
	ExecutableCacheMisses = expvar.NewInt("executable_cache_misses_total")
)

// ErrLink is returned when a module and the host disagree on the host ABI.
// It indicates the module was built by an incompatible version.
var ErrLink = errors.New("module does not link against the host functions")

const defaultCacheSize = 16

// Engine is the WebAssembly runtime shared by every compilation and scan in
// the process.  It is created once, at program start, and passed to every
// scanner.  It is safe for concurrent use.
type Engine struct {
	rt        wazero.Runtime
	host      api.Module
	modConfig wazero.ModuleConfig

	interpreter        bool
	memoryLimitPages   uint32
	closeOnContextDone bool
	cacheSize          int

	cacheMu sync.Mutex // protects cache
	cache   *lru.Cache // Executables keyed by module hash.
}

// Executable is a Module compiled to the engine's native form.
type Executable struct {
	compiled wazero.CompiledModule
	hash     string
}

// Hash returns the hash of the module the executable was compiled from.
func (x *Executable) Hash() string {
	return x.hash
}

// NewEngine creates the runtime and links the host functions into it.
func NewEngine(ctx context.Context, options ...Option) (*Engine, error) {
	e := &Engine{cacheSize: defaultCacheSize}
	if err := e.SetOption(options...); err != nil {
		return nil, err
	}
	config := wazero.NewRuntimeConfig()
	if e.interpreter {
		config = wazero.NewRuntimeConfigInterpreter()
	}
	if e.memoryLimitPages > 0 {
		config = config.WithMemoryLimitPages(e.memoryLimitPages)
	}
	config = config.WithCloseOnContextDone(e.closeOnContextDone)
	e.rt = wazero.NewRuntimeWithConfig(ctx, config)

	b := e.rt.NewHostModuleBuilder(ImportModule)
	for i, h := range HostFunctions {
		b.NewFunctionBuilder().
			WithGoFunction(hostFuncs[i], h.Params, h.Results).
			WithName(h.Name).
			Export(h.Name)
	}
	host, err := b.Instantiate(ctx)
	if err != nil {
		_ = e.rt.Close(ctx)
		return nil, errors.Wrapf(err, "linking host module %q", ImportModule)
	}
	e.host = host
	// The module name is cleared so that instances are anonymous, and any
	// number of them can exist at once.
	e.modConfig = wazero.NewModuleConfig().WithName("")
	e.cache = lru.New(e.cacheSize)
	glog.V(1).Infof("wasm engine ready: interpreter=%v memory_limit_pages=%d cache_size=%d",
		e.interpreter, e.memoryLimitPages, e.cacheSize)
	return e, nil
}

// SetOption takes one or more option functions and applies them in order to
// the Engine.
func (e *Engine) SetOption(options ...Option) error {
	for _, option := range options {
		if err := option(e); err != nil {
			return err
		}
	}
	return nil
}

// Compile compiles m to native code, checking that it links against the host
// functions.  Results are cached by module content, so compiling the same
// rule set again is cheap.
func (e *Engine) Compile(ctx context.Context, m *Module) (*Executable, error) {
	ctx, span := trace.StartSpan(ctx, "Engine.Compile")
	defer span.End()
	if m == nil {
		return nil, errors.New("nil module")
	}
	hash := m.Hash()
	e.cacheMu.Lock()
	if v, ok := e.cache.Get(hash); ok {
		e.cacheMu.Unlock()
		ExecutableCacheHits.Add(1)
		glog.V(2).Infof("executable cache hit for %s", hash)
		return v.(*Executable), nil
	}
	e.cacheMu.Unlock()

	ExecutableCacheMisses.Add(1)
	compiled, err := e.rt.CompileModule(ctx, m.Binary())
	if err != nil {
		return nil, errors.Wrap(err, "compiling module")
	}
	if err := checkLinkage(compiled); err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}
	x := &Executable{compiled: compiled, hash: hash}
	e.cacheMu.Lock()
	// Another goroutine may have compiled the same module meanwhile.
	if v, ok := e.cache.Get(hash); ok {
		e.cacheMu.Unlock()
		_ = compiled.Close(ctx)
		return v.(*Executable), nil
	}
	e.cache.Add(hash, x)
	e.cacheMu.Unlock()
	glog.V(1).Infof("compiled module %s", hash)
	return x, nil
}

// checkLinkage verifies that every import of the module is one of the host
// functions with the expected signature, and that main is exported.
func checkLinkage(c wazero.CompiledModule) error {
	for _, def := range c.ImportedFunctions() {
		module, name, _ := def.Import()
		if module != ImportModule {
			return errors.Wrapf(ErrLink, "unknown import module %q", module)
		}
		h, ok := hostFunctionByName(name)
		if !ok {
			return errors.Wrapf(ErrLink, "unknown host function %s.%s", module, name)
		}
		if !bytes.Equal(def.ParamTypes(), h.Params) || !bytes.Equal(def.ResultTypes(), h.Results) {
			return errors.Wrapf(ErrLink, "signature mismatch for %s.%s: module has %v -> %v, host has %v -> %v",
				module, name, valueTypeNames(def.ParamTypes()), valueTypeNames(def.ResultTypes()),
				valueTypeNames(h.Params), valueTypeNames(h.Results))
		}
	}
	main, ok := c.ExportedFunctions()[MainFunc]
	if !ok {
		return errors.Wrapf(ErrLink, "module does not export %q", MainFunc)
	}
	if len(main.ParamTypes()) != 0 || len(main.ResultTypes()) != 0 {
		return errors.Wrapf(ErrLink, "%q must take no parameters and return nothing", MainFunc)
	}
	return nil
}

func hostFunctionByName(name string) (HostFunction, bool) {
	for _, h := range HostFunctions {
		if h.Name == name {
			return h, true
		}
	}
	return HostFunction{}, false
}

// Run evaluates the rule conditions in x against the scan state sc.  A fresh
// instance is created for the call and discarded afterwards.  Run returns
// only after main has returned; sc holds the results.
func (e *Engine) Run(ctx context.Context, x *Executable, sc *scan.Context) error {
	if x == nil || sc == nil {
		return errors.New("Run needs an executable and a scan context")
	}
	ctx = withScanContext(ctx, sc)
	mod, err := e.rt.InstantiateModule(ctx, x.compiled, e.modConfig)
	if err != nil {
		return errors.Wrap(err, "instantiating module")
	}
	defer func() {
		if err := mod.Close(ctx); err != nil {
			glog.Warningf("closing module instance: %s", err)
		}
	}()
	main := mod.ExportedFunction(MainFunc)
	if main == nil {
		return errors.Wrapf(ErrLink, "module does not export %q", MainFunc)
	}
	if _, err := main.Call(ctx); err != nil {
		return errors.Wrap(err, "evaluating rule conditions")
	}
	return nil
}

// Close releases the runtime and every executable compiled by it.
func (e *Engine) Close(ctx context.Context) error {
	e.cacheMu.Lock()
	e.cache.Clear()
	e.cacheMu.Unlock()
	return e.rt.Close(ctx)
}
