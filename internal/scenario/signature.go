package scenario

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	cerrors "github.com/flashbots/contender/internal/errors"
)

// ParsedSignature is a small, purpose-built parse of a Solidity-style
// function or constructor signature, including optional named parameters
// (e.g. "transfer(address to, uint256 amount)" or "(uint256 min, uint256 max)"
// for a bare constructor tuple). Per spec.md §9: a full Solidity frontend is
// deliberately not used — fuzz-by-name only needs type + optional name.
type ParsedSignature struct {
	Name   string // function name; empty for a bare constructor tuple
	Params []Param
}

// Param is one positional parameter of a parsed signature.
type Param struct {
	Name string // may be empty if the signature omits parameter names
	Type string // Solidity type string, e.g. "uint256", "address[]"
}

// ParseSignature parses "name(type1 name1, type2 name2, ...)",
// "constructor(type1, type2)", or a bare "(type1, type2)" tuple.
func ParseSignature(sig string) (*ParsedSignature, error) {
	sig = strings.TrimSpace(sig)
	open := strings.IndexByte(sig, '(')
	closeIdx := strings.LastIndexByte(sig, ')')
	if open < 0 || closeIdx < open {
		return nil, cerrors.AbiMismatch(sig, nil)
	}

	name := strings.TrimSpace(sig[:open])
	if name == "constructor" {
		name = ""
	}
	body := sig[open+1 : closeIdx]

	params, err := splitParams(body)
	if err != nil {
		return nil, cerrors.AbiMismatch(sig, err)
	}

	parsed := make([]Param, 0, len(params))
	for _, raw := range params {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parsed = append(parsed, parseOneParam(raw))
	}
	return &ParsedSignature{Name: name, Params: parsed}, nil
}

// splitParams splits a comma-separated parameter list while respecting
// nested parens/brackets (tuple and array types).
func splitParams(body string) ([]string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}
	var parts []string
	depth := 0
	start := 0
	for i, r := range body {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth < 0 {
				return nil, cerrors.AbiMismatch(body, nil)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, body[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, body[start:])
	return parts, nil
}

// parseOneParam splits "type name" (or just "type") on the last whitespace
// run, since Solidity types never contain whitespace themselves.
func parseOneParam(raw string) Param {
	fields := strings.Fields(raw)
	switch len(fields) {
	case 0:
		return Param{}
	case 1:
		return Param{Type: fields[0]}
	default:
		// Last field is the name; everything before it is the type
		// (handles "memory"/"calldata" location keywords by ignoring them,
		// since those never appear in bare call signatures used here).
		typeFields := make([]string, 0, len(fields)-1)
		for _, f := range fields[:len(fields)-1] {
			switch f {
			case "memory", "calldata", "storage":
				continue
			}
			typeFields = append(typeFields, f)
		}
		return Param{Type: strings.Join(typeFields, " "), Name: fields[len(fields)-1]}
	}
}

// AbiTypes returns the go-ethereum ABI types for the parsed parameters, in
// order, for tuple/argument encoding.
func (p *ParsedSignature) AbiTypes() ([]abi.Type, error) {
	types := make([]abi.Type, len(p.Params))
	for i, param := range p.Params {
		t, err := abi.NewType(param.Type, "", nil)
		if err != nil {
			return nil, cerrors.AbiMismatch(param.Type, err)
		}
		types[i] = t
	}
	return types, nil
}

// IndexOfParam returns the positional index of the named parameter, or -1
// if sig has no parameter with that name. Used for fuzz-by-name (spec.md
// §4.1).
func (p *ParsedSignature) IndexOfParam(name string) int {
	for i, param := range p.Params {
		if param.Name == name {
			return i
		}
	}
	return -1
}
