package models

import (
	"time"

	"bookable/internal/interval"
)

// Buffers is the idle time required before and after a reservation.
type Buffers struct {
	Before time.Duration `yaml:"before" json:"before"`
	After  time.Duration `yaml:"after" json:"after"`
}

// ReservationState is the lifecycle state of an existing reservation.
type ReservationState string

const (
	StateCreated           ReservationState = "created"
	StateConfirmed         ReservationState = "confirmed"
	StateRequiresHandling  ReservationState = "requires_handling"
	StateWaitingForPayment ReservationState = "waiting_for_payment"
	StateCancelled         ReservationState = "cancelled"
	StateDenied            ReservationState = "denied"
)

// ActiveStates are the states that occupy the calendar.
var ActiveStates = []ReservationState{
	StateCreated,
	StateConfirmed,
	StateRequiresHandling,
	StateWaitingForPayment,
}

// IsActive reports whether s blocks other reservations. An empty state counts as confirmed.
func (s ReservationState) IsActive() bool {
	if s == "" {
		return true
	}
	for _, active := range ActiveStates {
		if s == active {
			return true
		}
	}
	return false
}

// Occupancy is an existing calendar entry a candidate reservation must not collide with.
// It is either a Reservation, which projects its buffers onto neighbours, or a Block, which
// only shadows its own interval.
type Occupancy interface {
	Span() interval.Range
	Buffers() Buffers
	Active() bool
	isOccupancy()
}

// Reservation is a booked entry.
type Reservation struct {
	Start        time.Time
	End          time.Time
	BufferBefore time.Duration
	BufferAfter  time.Duration
	State        ReservationState
}

func (r Reservation) Span() interval.Range {
	return interval.Range{Start: r.Start, End: r.End}
}

func (r Reservation) Buffers() Buffers {
	return Buffers{Before: r.BufferBefore, After: r.BufferAfter}
}

func (r Reservation) Active() bool {
	return r.State.IsActive()
}

func (Reservation) isOccupancy() {}

// Block is an administrative blackout such as maintenance.
type Block struct {
	Start time.Time
	End   time.Time
}

func (b Block) Span() interval.Range {
	return interval.Range{Start: b.Start, End: b.End}
}

// Buffers is always zero: a block never pushes its neighbours away.
func (Block) Buffers() Buffers {
	return Buffers{}
}

func (Block) Active() bool {
	return true
}

func (Block) isOccupancy() {}

// BlockingReservation is the flat form existing reservations arrive in.
type BlockingReservation struct {
	Start        time.Time        `yaml:"start" json:"start" validate:"required"`
	End          time.Time        `yaml:"end" json:"end" validate:"required,gtfield=Start"`
	BufferBefore time.Duration    `yaml:"buffer_before" json:"buffer_before" validate:"gte=0"`
	BufferAfter  time.Duration    `yaml:"buffer_after" json:"buffer_after" validate:"gte=0"`
	IsBlocked    bool             `yaml:"blocked" json:"is_blocked"`
	State        ReservationState `yaml:"state" json:"state"`
}

// Occupancy converts b into its tagged form.
func (b BlockingReservation) Occupancy() Occupancy {
	if b.IsBlocked {
		return Block{Start: b.Start, End: b.End}
	}
	return Reservation{
		Start:        b.Start,
		End:          b.End,
		BufferBefore: b.BufferBefore,
		BufferAfter:  b.BufferAfter,
		State:        b.State,
	}
}

// Occupancies converts a list and drops entries that no longer occupy the calendar.
func Occupancies(list []BlockingReservation) []Occupancy {
	out := make([]Occupancy, 0, len(list))
	for _, b := range list {
		o := b.Occupancy()
		if !o.Active() {
			continue
		}
		out = append(out, o)
	}
	return out
}
