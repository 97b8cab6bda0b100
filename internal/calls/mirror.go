package calls

// Mirror returns the reciprocal record of every segment, in the same order.
// Callers append the result after the originals; the two are never interleaved.
func Mirror(segments []Record) []Record {
	out := make([]Record, len(segments))
	for i, s := range segments {
		out[i] = Record{
			CallType:       s.CallType.Flip(),
			ServicedMSISDN: s.OtherMSISDN,
			OtherMSISDN:    s.ServicedMSISDN,
			Start:          s.Start,
			Finish:         s.Finish,
			Status:         s.Status,
		}
	}
	return out
}
