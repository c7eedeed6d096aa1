package model

import "time"

// Transition describes a status change to persist atomically with its
// history record.
type Transition struct {
	To                 Status
	ETA                *time.Time
	CancellationReason string
	Record             StatusRecord
	At                 time.Time
}

// RefundDecision is the admin verdict on a pending refund request.
type RefundDecision struct {
	Status          RefundStatus
	RejectionReason string
	At              time.Time
}

// Sale is a delivered order reduced to what analytics buckets need.
type Sale struct {
	At     time.Time `bson:"created_at"`
	Amount float64   `bson:"total_amount"`
}
