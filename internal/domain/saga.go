package domain

import "time"

// Saga step status values.
const (
	SagaStepPending     = "pending"
	SagaStepCompleted   = "completed"
	SagaStepFailed      = "failed"
	SagaStepCompensated = "compensated"
)

// Move saga states. The legacy storefront has no atomic move endpoint, so a
// move runs as two sequential calls with compensation on partial failure.
const (
	MoveStarted         = "started"
	MoveWishlistRemoved = "wishlist_removed"
	MoveCompleted       = "completed"
	MoveRollingBack     = "rolling_back"
	MoveRolledBack      = "rolled_back"
	MoveRollbackFailed  = "rollback_failed"
)

// Step names within a move saga.
const (
	StepRemoveFromWishlist = "remove_from_wishlist"
	StepAddToCart          = "add_to_cart"
)

// SagaStep tracks a single step in a compensating transaction.
type SagaStep struct {
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ExecutedAt time.Time `json:"executed_at,omitempty"`
}

// NewSagaStep creates a pending saga step.
func NewSagaStep(name string) SagaStep {
	return SagaStep{Name: name, Status: SagaStepPending}
}

// Complete marks the step as successfully executed.
func (s *SagaStep) Complete() {
	s.Status = SagaStepCompleted
	s.ExecutedAt = time.Now().UTC()
}

// Fail marks the step as failed with the given reason.
func (s *SagaStep) Fail(reason string) {
	s.Status = SagaStepFailed
	s.Error = reason
	s.ExecutedAt = time.Now().UTC()
}

// Compensate marks a previously completed step as undone.
func (s *SagaStep) Compensate() {
	s.Status = SagaStepCompensated
}

// MoveSaga is the state machine for one legacy move-to-cart transaction.
// Valid transitions:
//
//	started -> wishlist_removed -> completed
//	started -> rolling_back
//	wishlist_removed -> rolling_back -> rolled_back | rollback_failed
//
// rollback_failed means a compensation call itself failed; local state can no
// longer be trusted and the caller must force a full resync.
type MoveSaga struct {
	ProductID string     `json:"product_id"`
	State     string     `json:"state"`
	Steps     []SagaStep `json:"steps"`
	StartedAt time.Time  `json:"started_at"`
}

// NewMoveSaga creates a saga in the started state with both steps pending.
func NewMoveSaga(productID string) *MoveSaga {
	return &MoveSaga{
		ProductID: productID,
		State:     MoveStarted,
		Steps: []SagaStep{
			NewSagaStep(StepRemoveFromWishlist),
			NewSagaStep(StepAddToCart),
		},
		StartedAt: time.Now().UTC(),
	}
}

// Step returns the step with the given name, or nil.
func (m *MoveSaga) Step(name string) *SagaStep {
	for i := range m.Steps {
		if m.Steps[i].Name == name {
			return &m.Steps[i]
		}
	}
	return nil
}

// CompletedSteps returns the steps that have executed successfully, in
// execution order. Compensation replays these in reverse.
func (m *MoveSaga) CompletedSteps() []*SagaStep {
	var out []*SagaStep
	for i := range m.Steps {
		if m.Steps[i].Status == SagaStepCompleted {
			out = append(out, &m.Steps[i])
		}
	}
	return out
}
