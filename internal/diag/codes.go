package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Input: header discovery before any stage runs.
	InputInfo        Code = 1000
	InputNotReadable Code = 1001
	InputNotAFile    Code = 1002

	// Front end: diagnostics forwarded from the C parser.
	FrontInfo                Code = 2000
	FrontWarning             Code = 2001
	FrontError               Code = 2002
	FrontFatal               Code = 2003
	FrontUnsupportedLanguage Code = 2004

	// AST construction.
	BuildInfo              Code = 3000
	BuildDeclOmitted       Code = 3001
	BuildMacroNotEvaluable Code = 3002
	BuildUnsupportedCursor Code = 3003
	BuildErroneousType     Code = 3004
	BuildSelfContainment   Code = 3005

	// Layout.
	LayoutInfo             Code = 4000
	LayoutInvalid          Code = 4001
	LayoutIncomplete       Code = 4002
	LayoutDependent        Code = 4003
	LayoutNotConstantSize  Code = 4004
	LayoutInvalidFieldName Code = 4005
	LayoutOffsetMismatch   Code = 4006
	LayoutSizeMismatch     Code = 4007
	LayoutOutOfOrderField  Code = 4008

	// Filters run before naming.
	FilterInfo             Code = 5000
	FilterUnsupportedType  Code = 5001
	FilterBadInclude       Code = 5002
	FilterBadPattern       Code = 5003
	FilterVariadicCallback Code = 5004

	// Naming.
	NameInfo          Code = 6000
	NameKeywordRename Code = 6001
	NameDisambiguated Code = 6002

	// Binding emission.
	EmitInfo                Code = 7000
	EmitSkippedUnlayoutable Code = 7001
	EmitNameCollision       Code = 7002
	EmitDependencyCycle     Code = 7003
	EmitMissingReference    Code = 7004

	// Writer.
	OutputInfo           Code = 8000
	OutputWriteFailed    Code = 8001
	OutputCompileFailed  Code = 8002
	OutputIdentCollision Code = 8003

	// Configuration.
	ConfigInfo    Code = 9000
	ConfigInvalid Code = 9001
)

var codeDescription = map[Code]string{
	UnknownCode:              "Unknown error",
	InputInfo:                "Input information",
	InputNotReadable:         "Cannot read header file",
	InputNotAFile:            "Header path is not a regular file",
	FrontInfo:                "Front-end information",
	FrontWarning:             "Front-end warning",
	FrontError:               "Front-end error",
	FrontFatal:               "Front-end fatal error",
	FrontUnsupportedLanguage: "Unsupported source language",
	BuildInfo:                "AST builder information",
	BuildDeclOmitted:         "Declaration omitted",
	BuildMacroNotEvaluable:   "Macro cannot be evaluated to a constant",
	BuildUnsupportedCursor:   "Unsupported declaration kind",
	BuildErroneousType:       "Type could not be resolved",
	BuildSelfContainment:     "Record contains itself by value",
	LayoutInfo:               "Layout information",
	LayoutInvalid:            "Invalid layout",
	LayoutIncomplete:         "Layout of incomplete type",
	LayoutDependent:          "Layout depends on unavailable information",
	LayoutNotConstantSize:    "Type has no constant size",
	LayoutInvalidFieldName:   "Invalid field name",
	LayoutOffsetMismatch:     "Field offset differs from front end",
	LayoutSizeMismatch:       "Record size differs from front end",
	LayoutOutOfOrderField:    "Field offset goes backwards",
	FilterInfo:               "Filter information",
	FilterUnsupportedType:    "Unsupported type usage",
	FilterBadInclude:         "Declaration depends on an excluded record",
	FilterBadPattern:         "Invalid symbol pattern",
	FilterVariadicCallback:   "Variadic callback is not supported",
	NameInfo:                 "Naming information",
	NameKeywordRename:        "Identifier renamed to avoid a keyword",
	NameDisambiguated:        "Identifier disambiguated",
	EmitInfo:                 "Emitter information",
	EmitSkippedUnlayoutable:  "Declaration skipped: layout unavailable",
	EmitNameCollision:        "Binding name collision",
	EmitDependencyCycle:      "Binding units form a dependency cycle",
	EmitMissingReference:     "Declaration skipped: depends on a declaration that is not emitted",
	OutputInfo:               "Output information",
	OutputWriteFailed:        "Cannot write output",
	OutputCompileFailed:      "Generated bindings do not compile",
	OutputIdentCollision:     "Go identifier collision",
	ConfigInfo:               "Configuration information",
	ConfigInvalid:            "Invalid configuration",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("INP%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("FE%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("BLD%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("LAY%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("FLT%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("NAM%04d", ic)
	case ic >= 7000 && ic < 8000:
		return fmt.Sprintf("EMT%04d", ic)
	case ic >= 8000 && ic < 9000:
		return fmt.Sprintf("OUT%04d", ic)
	case ic >= 9000 && ic < 10000:
		return fmt.Sprintf("CFG%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
