package calls

import "time"

// LocalDateTimeLayout is the ISO local date-time format used on the wire (no offset).
const LocalDateTimeLayout = "2006-01-02T15:04:05"

// LocalDateTime renders a timestamp as wall-clock time in its own location.
type LocalDateTime time.Time

func (t LocalDateTime) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, len(LocalDateTimeLayout)+2)
	b = append(b, '"')
	b = time.Time(t).AppendFormat(b, LocalDateTimeLayout)
	b = append(b, '"')
	return b, nil
}

func (t *LocalDateTime) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return ErrInvalidRecord
	}
	parsed, err := time.ParseInLocation(LocalDateTimeLayout, string(b[1:len(b)-1]), time.Local)
	if err != nil {
		return err
	}
	*t = LocalDateTime(parsed)
	return nil
}

// Transport is the outbound shape of a record. Identity and status are not exported.
type Transport struct {
	CallType       CallType      `json:"callType"`
	ServicedMSISDN string        `json:"servicedMsisdn"`
	OtherMSISDN    string        `json:"otherMsisdn"`
	StartDateTime  LocalDateTime `json:"startDateTime"`
	FinishDateTime LocalDateTime `json:"finishDateTime"`
}

func ToTransport(r Record) Transport {
	return Transport{
		CallType:       r.CallType,
		ServicedMSISDN: r.ServicedMSISDN,
		OtherMSISDN:    r.OtherMSISDN,
		StartDateTime:  LocalDateTime(r.Start),
		FinishDateTime: LocalDateTime(r.Finish),
	}
}

func ToTransports(rs []Record) []Transport {
	out := make([]Transport, len(rs))
	for i, r := range rs {
		out[i] = ToTransport(r)
	}
	return out
}
