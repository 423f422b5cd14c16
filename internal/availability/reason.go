package availability

// Reason is the outcome of validating a candidate range. ReasonNone means the range is
// reservable; any other value names the first rule that rejected it.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonMalformedRange
	ReasonBufferCollision
	ReasonStartNotAligned
	ReasonNotReservable
	ReasonInPast
	ReasonTooSoon
	ReasonTooFar
	ReasonOutsideBookingPeriod
	ReasonApplicationRound
	ReasonTooShort
	ReasonTooLong
	ReasonOverlap
)

var reasonCodes = [...]string{
	ReasonNone:                 "ok",
	ReasonMalformedRange:       "malformed_range",
	ReasonBufferCollision:      "buffer_collision",
	ReasonStartNotAligned:      "start_not_aligned",
	ReasonNotReservable:        "not_reservable",
	ReasonInPast:               "in_past",
	ReasonTooSoon:              "too_soon",
	ReasonTooFar:               "too_far",
	ReasonOutsideBookingPeriod: "outside_booking_period",
	ReasonApplicationRound:     "application_round",
	ReasonTooShort:             "too_short",
	ReasonTooLong:              "too_long",
	ReasonOverlap:              "overlap",
}

// Reasons lists every reason in pipeline order.
func Reasons() []Reason {
	out := make([]Reason, len(reasonCodes))
	for i := range reasonCodes {
		out[i] = Reason(i)
	}
	return out
}

// OK reports whether r accepts the range.
func (r Reason) OK() bool {
	return r == ReasonNone
}

// String returns the stable code of r.
func (r Reason) String() string {
	if int(r) < len(reasonCodes) {
		return reasonCodes[r]
	}
	return "unknown"
}

func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
