package spammer

import (
	"context"

	"github.com/flashbots/contender/internal/generator"
)

// Phase is a spammer's own sub-lifecycle (spec.md §4.3's state machine,
// restricted to the states a Spammer itself owns; Idle/Deploying/SettingUp
// belong to the runner that invokes it).
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseSpamming
	PhaseDraining
	PhaseDone
	PhaseCancelled
)

// Spammer is the common contract for the two scheduling disciplines (spec.md
// §9: "model as a sum type Spammer ∈ {Timed(T_p), Blockwise} with a common
// spam(rate, duration, ...) contract"). duration counts batches sent, not
// receipts observed; forever=true ignores duration and loops until ctx is
// cancelled.
type Spammer interface {
	Spam(ctx context.Context, gen *generator.Generator, rate, duration int, forever bool, cb Callback) error
	Phase() Phase
}
