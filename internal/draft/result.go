package draft

import (
	"errors"

	"github.com/sells-group/filing-assistant/internal/model"
)

// ResultCode is the outcome reported to the UI or API caller.
type ResultCode int

const (
	ResultSuccess ResultCode = iota
	ResultSuccessWithLocalOnly
	ResultValidationFailed
	ResultDraftClosed
	// ResultFailure covers saves neither store accepted and other
	// unexpected errors.
	ResultFailure
)

func (c ResultCode) String() string {
	switch c {
	case ResultSuccess:
		return "Success"
	case ResultSuccessWithLocalOnly:
		return "SuccessWithLocalOnly"
	case ResultValidationFailed:
		return "ValidationFailed"
	case ResultDraftClosed:
		return "DraftClosed"
	default:
		return "Failure"
	}
}

// Result pairs a code with the reason for a validation failure.
type Result struct {
	Code   ResultCode `json:"code"`
	Reason string     `json:"reason,omitempty"`
}

// ResultCodeFor maps the return values of SaveDraft to a Result.
func ResultCodeFor(res *SaveResult, err error) Result {
	var verr *model.ValidationError
	switch {
	case errors.Is(err, ErrDraftClosed):
		return Result{Code: ResultDraftClosed}
	case errors.As(err, &verr):
		return Result{Code: ResultValidationFailed, Reason: verr.Error()}
	case err != nil:
		return Result{Code: ResultFailure, Reason: err.Error()}
	case res == nil:
		return Result{Code: ResultFailure}
	case res.Outcome == OutcomeSynced:
		return Result{Code: ResultSuccess}
	case res.Outcome == OutcomeLocalOnly:
		return Result{Code: ResultSuccessWithLocalOnly}
	default:
		return Result{Code: ResultFailure}
	}
}
