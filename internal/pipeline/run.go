// Package pipeline implements the production state machine: the ordered
// stages a run moves through, the transition guards between them, and the
// per-scene asset production algorithm.
package pipeline

import "fmt"

// Stage is a run's position in the fixed stage sequence.
type Stage string

const (
	StagePlanning               Stage = "planning"
	StageScriptReview           Stage = "script_review"
	StageAssetProduction        Stage = "asset_production"
	StageAssetProductionPartial Stage = "asset_production_partial"
	StageAssetReview            Stage = "asset_review"
	StageAssembly               Stage = "assembly"
	StageDelivered              Stage = "delivered"
)

// Stages lists every stage in forward order, the partial-failure state last.
var Stages = []Stage{
	StagePlanning,
	StageScriptReview,
	StageAssetProduction,
	StageAssetReview,
	StageAssembly,
	StageDelivered,
	StageAssetProductionPartial,
}

// GuardError reports a refused stage transition. It carries enough detail
// for a human to decide whether to edit inputs and retry or abandon.
type GuardError struct {
	From   Stage
	Reason string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("cannot advance from %s: %s", e.From, e.Reason)
}

// guardErr is shorthand for building a GuardError.
func guardErr(from Stage, format string, args ...any) error {
	return &GuardError{From: from, Reason: fmt.Sprintf(format, args...)}
}

// canReturnToReview reports whether "go back to script review" is allowed
// from the given stage. It is reachable from any production or review
// state but not from planning or after delivery.
func canReturnToReview(s Stage) bool {
	switch s {
	case StageAssetProduction, StageAssetProductionPartial, StageAssetReview, StageAssembly:
		return true
	}
	return false
}
