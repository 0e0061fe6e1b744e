package generic

import (
	"time"
)

// DateLayout is the wire and storage format for calendar days.
const DateLayout = "2006-01-02"

// =============================================================================
// TIME POINT - A calendar day
// =============================================================================

// TimePoint is a calendar day in UTC. Credits are earned on a TimePoint and
// ordered by it; requests name the TimePoint the employee takes off.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its calendar day.
func FromTime(t time.Time) TimePoint {
	t = t.UTC()
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts "2006-01-02" or a full RFC3339 timestamp.
func ParseDate(s string) (TimePoint, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return FromTime(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return TimePoint{}, err
	}
	return FromTime(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool  { return tp.normalize().Equal(other.normalize()) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Properties
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

// DayName is the English weekday name, used as the default credit label.
func (tp TimePoint) DayName() string { return tp.Weekday().String() }

func (tp TimePoint) String() string { return tp.Time.Format(DateLayout) }
