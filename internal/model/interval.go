package model

import "time"

// Interval полуоткрытый интервал [Start, End)
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid проверяет Start < End
func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Overlaps проверяет пересечение с другим интервалом
func (i Interval) Overlaps(other Interval) bool {
	return Overlaps(i.Start, i.End, other.Start, other.End)
}

// Overlaps возвращает true если [aStart, aEnd) и [bStart, bEnd) пересекаются.
// Общая граница (aEnd == bStart) пересечением не считается.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
