package calls

import "time"

// SplitUnit is the gap left between a segment's finish and the next midnight.
const SplitUnit = time.Second

// SplitByDay slices r at calendar-day boundaries of r.Start's location.
//
// Each segment keeps every field of r except the interval. A record that already fits in
// one day is returned unchanged as a single-element slice. A trailing piece shorter than
// SplitUnit before midnight cannot form a valid segment and is not emitted.
func SplitByDay(r Record) []Record {
	loc := r.Start.Location()
	start := r.Start
	finish := r.Finish.In(loc)

	if SameDay(start, finish) {
		return []Record{r}
	}

	var out []Record
	for start.Before(finish) {
		next := nextMidnight(start)
		if next.After(finish) {
			out = append(out, segment(r, start, finish))
			break
		}
		end := next.Add(-SplitUnit)
		if end.After(start) {
			out = append(out, segment(r, start, end))
		}
		start = next
	}
	return out
}

func nextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

func segment(r Record, start, finish time.Time) Record {
	s := r
	s.Start = start
	s.Finish = finish
	return s
}
