package calls

import (
	"errors"
	"time"
)

// Record is a single call data record.
//
// Invariants for every record leaving the generation engine:
// - Finish is strictly after Start.
// - ServicedMSISDN and OtherMSISDN differ.
// - Start and Finish fall on the same calendar date (in the record's location).
//
// ID is assigned by the store; it is zero for records that were never persisted.
type Record struct {
	ID             int64     `json:"id,omitempty" db:"id"`
	CallType       CallType  `json:"call_type" db:"call_type"`
	ServicedMSISDN string    `json:"serviced_msisdn" db:"serviced_msisdn"`
	OtherMSISDN    string    `json:"other_msisdn" db:"other_msisdn"`
	Start          time.Time `json:"start_date_time" db:"start_date_time"`
	Finish         time.Time `json:"finish_date_time" db:"finish_date_time"`
	Status         Status    `json:"consumed_status" db:"consumed_status"`
}

// CallType is encoded externally as a two-character code.
type CallType string

const (
	CallTypeIncoming CallType = "01"
	CallTypeOutgoing CallType = "02"
)

// Flip returns the call type seen from the other party.
func (t CallType) Flip() CallType {
	if t == CallTypeIncoming {
		return CallTypeOutgoing
	}
	return CallTypeIncoming
}

func (t CallType) Valid() bool {
	return t == CallTypeIncoming || t == CallTypeOutgoing
}

type Status string

const (
	StatusNew      Status = "NEW"
	StatusConsumed Status = "CONSUMED"
)

// Subscriber is a known party. Read-only for the generator.
type Subscriber struct {
	ID     int64  `json:"id" db:"id"`
	MSISDN string `json:"msisdn" db:"msisdn"`
}

var ErrInvalidRecord = errors.New("calls: invalid record")

// Validate checks the per-record invariants.
func (r Record) Validate() error {
	if !r.CallType.Valid() {
		return ErrInvalidRecord
	}
	if r.ServicedMSISDN == "" || r.OtherMSISDN == "" || r.ServicedMSISDN == r.OtherMSISDN {
		return ErrInvalidRecord
	}
	if !r.Finish.After(r.Start) {
		return ErrInvalidRecord
	}
	if !SameDay(r.Start, r.Finish) {
		return ErrInvalidRecord
	}
	return nil
}

// HasParty reports whether msisdn is either side of the call.
func (r Record) HasParty(msisdn string) bool {
	return r.ServicedMSISDN == msisdn || r.OtherMSISDN == msisdn
}

// Overlaps reports whether [aStart, aFinish] and [bStart, bFinish] conflict.
// Intervals are disjoint only when one finishes strictly before the other starts,
// so touching endpoints count as a conflict.
func Overlaps(aStart, aFinish, bStart, bFinish time.Time) bool {
	return !(aFinish.Before(bStart) || bFinish.Before(aStart))
}

// SameDay compares calendar dates in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
