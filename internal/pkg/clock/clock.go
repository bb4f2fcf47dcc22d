package clock

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jinzhu/now"
)

// IST is India Standard Time (UTC+5:30). All display formatting uses it,
// regardless of where the server runs.
var IST = time.FixedZone("IST", 5*60*60+30*60)

// Clock abstracts the wall clock so time-based logic can be tested deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// System returns a Clock backed by time.Now, in UTC.
func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Fake is a manually driven Clock.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// ToIST converts t to India Standard Time.
func ToIST(t time.Time) time.Time {
	return t.In(IST)
}

// FormatIST renders t as "2006-01-02 15:04:05 IST".
func FormatIST(t time.Time) string {
	return ToIST(t).Format("2006-01-02 15:04:05 MST")
}

// BeginningOfDay returns midnight IST of the day containing t.
func BeginningOfDay(t time.Time) time.Time {
	return now.With(ToIST(t)).BeginningOfDay()
}

// ElapsedMinutes returns the minutes between start and end rounded to the
// nearest minute (half up). A negative span is clamped to zero.
func ElapsedMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(math.Floor(d.Minutes() + 0.5))
}

// FormatDuration renders minutes as "Xh Ym" from one hour upward, else "Ym".
func FormatDuration(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	hours := minutes / 60
	mins := minutes % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
