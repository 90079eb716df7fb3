package engine

import "github.com/soarcore/soarcore/pkg/models"

// legalTransitions is the closed state machine of §4.6. Any transition
// not listed here is an invariant violation.
var legalTransitions = map[models.ExecutionState]map[models.ExecutionState]bool{
	models.ExecutionExecuting: {
		models.ExecutionWaitingApproval: true,
		models.ExecutionCompleted:       true,
		models.ExecutionFailed:          true,
	},
	models.ExecutionWaitingApproval: {
		models.ExecutionExecuting: true,
		models.ExecutionFailed:    true,
	},
}

// transition moves ex into next, returning CodeInvalidStateTransition if
// the move isn't legal. Terminal states (COMPLETED, FAILED) have no
// outgoing entry in legalTransitions, so any attempt to leave them fails
// here automatically.
func transition(ex *models.Execution, next models.ExecutionState) error {
	allowed := legalTransitions[ex.State]
	if !allowed[next] {
		return newError(CodeInvalidStateTransition, string(ex.State)+" -> "+string(next))
	}
	ex.State = next
	return nil
}
