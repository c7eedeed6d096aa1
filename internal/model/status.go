package model

import "time"

type Status string

const (
	StatusPending        Status = "Pending"
	StatusPreparing      Status = "Preparing"
	StatusOutForDelivery Status = "Out for Delivery"
	StatusDelivered      Status = "Delivered"
	StatusCancelled      Status = "Cancelled"
)

var validStatuses = map[Status]bool{
	StatusPending:        true,
	StatusPreparing:      true,
	StatusOutForDelivery: true,
	StatusDelivered:      true,
	StatusCancelled:      true,
}

// Automatic progression driven by the worker. Cancelled is reachable from
// any non-terminal state through explicit action only.
var nextStatus = map[Status]Status{
	StatusPending:        StatusPreparing,
	StatusPreparing:      StatusOutForDelivery,
	StatusOutForDelivery: StatusDelivered,
}

var terminalStatuses = map[Status]bool{
	StatusDelivered: true,
	StatusCancelled: true,
}

// TerminalStatuses lists the states the worker never touches.
func TerminalStatuses() []Status {
	return []Status{StatusDelivered, StatusCancelled}
}

func (s Status) Valid() bool {
	return validStatuses[s]
}

func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// Next returns the automatic successor of s. ok is false for terminal or
// unknown states.
func (s Status) Next() (Status, bool) {
	n, ok := nextStatus[s]
	return n, ok
}

const (
	PreparingPerItem = 5 * time.Minute
	TravelPerKm      = 3 * time.Minute
	DispatchBuffer   = 5 * time.Minute
)

// ETAFor computes the expiry of status s when it is entered at now. Terminal
// states carry no ETA. pendingWindow is the time a fresh order may be
// cancelled before it moves to Preparing.
func ETAFor(s Status, o *Order, now time.Time, pendingWindow time.Duration) *time.Time {
	var eta time.Time
	switch s {
	case StatusPending:
		eta = now.Add(pendingWindow)
	case StatusPreparing:
		eta = now.Add(PreparingPerItem * time.Duration(len(o.Items)))
	case StatusOutForDelivery:
		travel := time.Duration(o.DistanceKm * float64(TravelPerKm))
		eta = now.Add(travel + DispatchBuffer)
	default:
		return nil
	}
	return &eta
}
