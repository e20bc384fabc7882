package status

import (
	"github.com/Veraticus/online-status/pkg/poller"
)

// Reporter adapts poller events onto a Board
type Reporter struct {
	board *Board
}

// NewReporter creates a new status reporter
func NewReporter(board *Board) *Reporter {
	return &Reporter{
		board: board,
	}
}

// Report applies one poll outcome to the board
func (r *Reporter) Report(event poller.Event) {
	if r.board == nil {
		return
	}

	switch event.Kind() {
	case poller.KindSnapshot:
		r.board.Update(event.Records, event.Time)
	case poller.KindConfiguration:
		r.board.SetOutcome(OutcomeNotConfigured, event.Time, "")
	case poller.KindAuthentication:
		r.board.SetOutcome(OutcomeAuthFailed, event.Time, "")
	default:
		r.board.SetOutcome(OutcomeError, event.Time, event.Err.Error())
	}
}
