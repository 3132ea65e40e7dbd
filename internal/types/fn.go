package types //nolint:revive

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// FnInfo stores metadata for function types.
type FnInfo struct {
	Result     TypeID   // Return type
	Params     []TypeID // Parameter types (in order)
	ParamNames []string // Optional, parallel to Params when present
	Variadic   bool
}

// RegisterFn creates or finds a function type. Parameter names take part in the
// identity so that callbacks keep the names they were declared with; use
// SameSignature to compare ignoring names.
func (in *Interner) RegisterFn(info FnInfo) TypeID {
	if len(info.ParamNames) != 0 && len(info.ParamNames) != len(info.Params) {
		panic(fmt.Errorf("types: %d param names for %d params", len(info.ParamNames), len(info.Params)))
	}
	if !slices.ContainsFunc(info.ParamNames, func(s string) bool { return s != "" }) {
		info.ParamNames = nil
	}
	key := fnKey(info)
	if id, ok := in.fnIndex[key]; ok {
		return id
	}
	slot := in.appendFnInfo(info)
	id := in.internRaw(Type{Kind: KindFunction, Payload: slot})
	in.fnIndex[key] = id
	return id
}

// FnInfo retrieves function type metadata by TypeID.
func (in *Interner) FnInfo(id TypeID) (*FnInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindFunction {
		return nil, false
	}
	if int(tt.Payload) >= len(in.fns) {
		return nil, false
	}
	return &in.fns[tt.Payload], true
}

// SameSignature reports whether two function types agree on result, parameter
// types and variadicity.
func (in *Interner) SameSignature(a, b TypeID) bool {
	if a == b {
		return true
	}
	fa, okA := in.FnInfo(a)
	fb, okB := in.FnInfo(b)
	if !okA || !okB {
		return false
	}
	return fa.Result == fb.Result && fa.Variadic == fb.Variadic && slices.Equal(fa.Params, fb.Params)
}

func (in *Interner) appendFnInfo(info FnInfo) uint32 {
	in.fns = append(in.fns, FnInfo{
		Result:     info.Result,
		Params:     slices.Clone(info.Params),
		ParamNames: slices.Clone(info.ParamNames),
		Variadic:   info.Variadic,
	})
	slot, err := safecast.Conv[uint32](len(in.fns) - 1)
	if err != nil {
		panic(fmt.Errorf("fn info overflow: %w", err))
	}
	return slot
}

func fnKey(info FnInfo) string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(uint64(info.Result), 10))
	sb.WriteByte('(')
	for i, p := range info.Params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(p), 10))
		if len(info.ParamNames) > i {
			sb.WriteByte(':')
			sb.WriteString(info.ParamNames[i])
		}
	}
	if info.Variadic {
		sb.WriteString(",...")
	}
	sb.WriteByte(')')
	return sb.String()
}
