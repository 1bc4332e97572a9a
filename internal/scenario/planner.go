package scenario

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	cerrors "github.com/flashbots/contender/internal/errors"
	"github.com/flashbots/contender/internal/registry"
)

// placeholderRe matches {name} where name is [A-Za-z_][A-Za-z0-9_]*,
// including the reserved {_sender} (spec.md §4.1).
var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

const reservedSender = "_sender"

// Planner substitutes placeholders and materializes concrete transaction
// requests (spec.md §4.1).
type Planner struct {
	env           *registry.EnvStore
	contracts     *registry.Snapshot
	scenarioLabel string
}

// NewPlanner builds a Planner bound to one (env, contracts, scenarioLabel)
// resolution context. A fresh Planner should be built per-generation-call
// if the ContractRegistry may have advanced (e.g. across scenario steps).
func NewPlanner(env *registry.EnvStore, contracts *registry.Snapshot, scenarioLabel string) *Planner {
	return &Planner{env: env, contracts: contracts, scenarioLabel: scenarioLabel}
}

// Resolve substitutes every {placeholder} in s. senderAddr is the signing
// address chosen for this tx; embedded controls whether {_sender} and
// contract-address substitutions keep the 0x prefix (false, when the
// placeholder is the whole cell) or strip it (true, when embedded inside a
// longer hex string such as bytecode), per spec.md §4.1's resolution order.
func (p *Planner) Resolve(s string, senderAddr common.Address) (string, error) {
	var resolveErr error
	out := placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		if resolveErr != nil {
			return match
		}
		name := match[1 : len(match)-1]
		embedded := match != s // the placeholder is not the entire cell

		val, err := p.resolveOne(name, senderAddr, embedded)
		if err != nil {
			resolveErr = err
			return match
		}
		return val
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return out, nil
}

func (p *Planner) resolveOne(name string, senderAddr common.Address, embedded bool) (string, error) {
	// 1. {_sender}
	if name == reservedSender {
		return formatAddress(senderAddr, embedded), nil
	}

	// 2. EnvStore
	if p.env != nil {
		if v, ok := p.env.Lookup(name); ok {
			return v, nil
		}
	}

	// 3. ContractRegistry
	if p.contracts != nil {
		if entry, ok := p.contracts.Lookup(name, p.scenarioLabel); ok {
			if !common.IsHexAddress(entry.Address) {
				return entry.Address, nil // non-address registry value, used verbatim
			}
			return formatAddress(common.HexToAddress(entry.Address), embedded), nil
		}
	}

	return "", cerrors.UnknownPlaceholder(name)
}

func formatAddress(addr common.Address, embedded bool) string {
	hex := strings.ToLower(addr.Hex()[2:])
	if embedded {
		return hex
	}
	return "0x" + hex
}

// HasPlaceholders reports whether s contains any {name} token.
func HasPlaceholders(s string) bool {
	return placeholderRe.MatchString(s)
}
