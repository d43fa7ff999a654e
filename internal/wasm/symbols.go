// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

package wasm

import (
	wabin "github.com/tetratelabs/wabin/wasm"
	"github.com/tetratelabs/wazero/api"
)

// Names shared by the generated module and the host.  Changing any of them,
// or the signatures in HostFunctions, breaks previously compiled rule sets.
const (
	// ImportModule is the namespace the host functions are imported from.
	ImportModule = "internal"
	// MainFunc is the name of the exported entry point.
	MainFunc = "main"
)

// FunctionID is an index in the module's function index space.
type FunctionID = uint32

// LocalID is an index in the main function's local variable space.
type LocalID = uint32

// HostFunction describes one function imported from the host.
type HostFunction struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// Indexes into HostFunctions.  Imported functions occupy the first slots of
// the function index space, so these are also their FunctionIDs.
const (
	RuleMatch = iota
	IsPatMatch
	IsPatMatchAt
	IsPatMatchIn

	numHostFunctions
)

// HostFunctions is the fixed host ABI, indexed by the constants above.
var HostFunctions = [numHostFunctions]HostFunction{
	// Called when a rule matches.
	RuleMatch: {"rule_match", []api.ValueType{api.ValueTypeI32}, nil},
	// Returns 1 if the pattern matched anywhere.
	IsPatMatch: {"is_pat_match", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}},
	// Returns 1 if the pattern matched at the given offset.
	IsPatMatchAt: {"is_pat_match_at", []api.ValueType{api.ValueTypeI32, api.ValueTypeI64}, []api.ValueType{api.ValueTypeI32}},
	// Returns 1 if the pattern matched within [lower, upper].
	IsPatMatchIn: {"is_pat_match_in", []api.ValueType{api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeI64}, []api.ValueType{api.ValueTypeI32}},
}

// functionType converts the host description to its wasm type.
func (h HostFunction) functionType() *wabin.FunctionType {
	return &wabin.FunctionType{Params: h.Params, Results: h.Results}
}

// Symbols is the table of functions and variables referenced by the code
// generated for rule conditions.
//
// The generated module calls back into the host to report rule matches and
// to ask about pattern matches.  Symbols holds the FunctionIDs of those
// imports, and the LocalIDs of the scratch variables of the main function.
type Symbols struct {
	// Called when a rule matches.
	// Signature: (rule_id: i32) -> ()
	RuleMatch FunctionID

	// Asks whether a pattern matched.
	// Signature: (pattern_id: i32) -> (i32)
	IsPatMatch FunctionID

	// Asks whether a pattern matched at a specific offset.
	// Signature: (pattern_id: i32, offset: i64) -> (i32)
	IsPatMatchAt FunctionID

	// Asks whether a pattern matched within a range of offsets.
	// Signature: (pattern_id: i32, lower_bound: i64, upper_bound: i64) -> (i32)
	IsPatMatchIn FunctionID

	// Local variables used for temporary storage.  Generated code must not
	// keep a value live in either of them across a reuse.
	I64Tmp LocalID
	I32Tmp LocalID

	// Set to 1 when an exception is raised.  Rules whose evaluation raised
	// an exception are treated as not matching.
	ExceptionFlag LocalID
}

// localTypes are the types of the scratch locals, in LocalID order.
var localTypes = []wabin.ValueType{wabin.ValueTypeI64, wabin.ValueTypeI32, wabin.ValueTypeI32}

var localNames = []string{"i64_tmp", "i32_tmp", "exception_flag"}
