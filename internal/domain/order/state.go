package order

// OrderState implements the state pattern for order lifecycle transitions.
//
//	PENDING --pay--> PROCESSING --complete--> COMPLETED
//	PENDING|PROCESSING --cancel--> CANCELLED
type OrderState interface {
	Status() Status
	OnPaymentRecorded() (OrderState, error)
	OnCompleted() (OrderState, error)
	OnCancelled() (OrderState, error)
}

func stateOf(s Status) OrderState {
	switch s {
	case StatusPending:
		return pendingState{}
	case StatusProcessing:
		return processingState{}
	case StatusCompleted:
		return completedState{}
	default:
		return cancelledState{}
	}
}

// CanTransition reports whether from may move to to in one step.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	_, err := next(stateOf(from), to)
	return err == nil
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) OnPaymentRecorded() (OrderState, error) { return processingState{}, nil }

func (pendingState) OnCompleted() (OrderState, error) { return nil, ErrInvalidStateTransition }

func (pendingState) OnCancelled() (OrderState, error) { return cancelledState{}, nil }

type processingState struct{}

func (processingState) Status() Status { return StatusProcessing }

func (processingState) OnPaymentRecorded() (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (processingState) OnCompleted() (OrderState, error) { return completedState{}, nil }

func (processingState) OnCancelled() (OrderState, error) { return cancelledState{}, nil }

type completedState struct{}

func (completedState) Status() Status { return StatusCompleted }

func (completedState) OnPaymentRecorded() (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (completedState) OnCompleted() (OrderState, error) { return completedState{}, nil }

func (completedState) OnCancelled() (OrderState, error) { return nil, ErrInvalidStateTransition }

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

func (cancelledState) OnPaymentRecorded() (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnCompleted() (OrderState, error) { return nil, ErrInvalidStateTransition }

func (cancelledState) OnCancelled() (OrderState, error) { return cancelledState{}, nil }

func next(s OrderState, to Status) (OrderState, error) {
	switch to {
	case StatusProcessing:
		return s.OnPaymentRecorded()
	case StatusCompleted:
		return s.OnCompleted()
	case StatusCancelled:
		return s.OnCancelled()
	default:
		return nil, ErrInvalidStateTransition
	}
}
