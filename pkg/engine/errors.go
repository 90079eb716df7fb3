// Package engine is the step interpreter of §4.4: it advances a claimed
// execution through its bound playbook version one step at a time,
// persisting every state change before proceeding (§5 "state persistence
// is the serialization point").
package engine

// Code is the closed set of engine-invariant error codes (§4.4, A.2).
type Code string

const (
	CodeLoopDetected            Code = "LOOP_DETECTED"
	CodeStepNotFound             Code = "STEP_NOT_FOUND"
	CodeConditionMissingBranch  Code = "CONDITION_MISSING_BRANCH"
	CodeConditionNoBranch       Code = "CONDITION_NO_BRANCH"
	CodeApprovalMissingOnTimeout Code = "APPROVAL_MISSING_ON_TIMEOUT"
	CodeApprovalRejected        Code = "APPROVAL_REJECTED"
	CodeApprovalTimeout         Code = "APPROVAL_TIMEOUT"
	CodeInvalidStateTransition  Code = "INVALID_STATE_TRANSITION"
)

// Error is the engine's own closed error type — never a panic, never
// exceptions-as-control-flow (Design Note §9).
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}
