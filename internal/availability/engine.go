package availability

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// DurationBuckets are the appointment lengths slots are precomputed for, in
// minutes. Requested durations round up to the nearest bucket.
var DurationBuckets = []int{60, 90, 120, 150, 180, 240, 300, 360}

// slotStride is the spacing between candidate start times for per-provider
// slots. Aggregated business slots use a coarser hourly stride.
const (
	slotStride      = 30
	aggregateStride = 60

	// DateLayout and TimeLayout are the wire formats for dates and slot
	// start times throughout the booking pipeline.
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// WorkingHours is one day's open interval, "15:04" formatted.
type WorkingHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ProviderCalendar is everything the engine needs about one provider.
// WorkingHours is keyed by weekday; a missing day means the provider does
// not work that day.
type ProviderCalendar struct {
	ProviderID   string
	BusinessID   string
	WorkingHours map[time.Weekday]WorkingHours
	BufferMin    int
	Timezone     string
}

// Booking is an existing appointment blocking provider time.
type Booking struct {
	ProviderID  string
	Date        string // 2006-01-02
	Time        string // 15:04
	DurationMin int
}

// DaySlots is one provider-day of availability: bucket key (minutes, as a
// string) to sorted start times.
type DaySlots struct {
	ProviderID string              `json:"providerId,omitempty"`
	BusinessID string              `json:"businessId"`
	Date       string              `json:"date"`
	Slots      map[string][]string `json:"slots"`
}

// TimeCount is an aggregated slot: a start time and how many providers can
// take it.
type TimeCount struct {
	Time  string `json:"time"`
	Count int    `json:"count"`
}

// AggregatedDaySlots is one business-day of multi-provider availability.
type AggregatedDaySlots struct {
	BusinessID string                 `json:"businessId"`
	Date       string                 `json:"date"`
	Slots      map[string][]TimeCount `json:"slots"`
}

// RoundUpTo30 rounds a duration up to the next half hour.
func RoundUpTo30(minutes int) int {
	if minutes <= 0 {
		return 0
	}
	return ((minutes + 29) / 30) * 30
}

// BucketFor returns the smallest precomputed bucket that fits the duration.
func BucketFor(durationMin int) (string, bool) {
	rounded := RoundUpTo30(durationMin)
	for _, b := range DurationBuckets {
		if b >= rounded {
			return strconv.Itoa(b), true
		}
	}
	return "", false
}

func parseMinutes(hhmm string) (int, error) {
	t, err := time.Parse(TimeLayout, hhmm)
	if err != nil {
		return 0, fmt.Errorf("availability: bad time %q: %w", hhmm, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// bookedInterval is a booking projected onto minutes-from-midnight.
type bookedInterval struct {
	start int
	end   int
}

func intervalsForDate(bookings []Booking, date string) []bookedInterval {
	var out []bookedInterval
	for _, b := range bookings {
		if b.Date != date {
			continue
		}
		start, err := parseMinutes(b.Time)
		if err != nil {
			continue
		}
		out = append(out, bookedInterval{start: start, end: start + b.DurationMin})
	}
	return out
}

// blocked reports whether a candidate slot collides with any booking, with
// the provider's buffer appended to each booking's end.
func blocked(slotStart, slotDur int, bookings []bookedInterval, bufferMin int) bool {
	slotEnd := slotStart + slotDur
	for _, b := range bookings {
		if slotStart < b.end+bufferMin && slotEnd > b.start {
			return true
		}
	}
	return false
}

// ComputeDaySlots builds one provider-day of availability. It returns nil
// when the provider has no working hours that day, so callers never persist
// empty records for days off.
func ComputeDaySlots(cal ProviderCalendar, date time.Time, bookings []Booking) *DaySlots {
	dateStr := date.Format(DateLayout)
	hours, ok := cal.WorkingHours[date.Weekday()]
	if !ok {
		return nil
	}
	open, err := parseMinutes(hours.Start)
	if err != nil {
		return nil
	}
	closeMin, err := parseMinutes(hours.End)
	if err != nil || closeMin <= open {
		return nil
	}

	booked := intervalsForDate(bookings, dateStr)
	slots := make(map[string][]string, len(DurationBuckets))
	for _, dur := range DurationBuckets {
		var starts []string
		for start := open; start+dur <= closeMin; start += slotStride {
			if blocked(start, dur, booked, cal.BufferMin) {
				continue
			}
			starts = append(starts, formatMinutes(start))
		}
		if len(starts) > 0 {
			slots[strconv.Itoa(dur)] = starts
		}
	}

	return &DaySlots{
		ProviderID: cal.ProviderID,
		BusinessID: cal.BusinessID,
		Date:       dateStr,
		Slots:      slots,
	}
}

// ComputeInitialDays builds the rolling availability window for a provider,
// one record per working day in [from, from+days].
func ComputeInitialDays(cal ProviderCalendar, from time.Time, days int, bookings []Booking) []DaySlots {
	var out []DaySlots
	for offset := 0; offset <= days; offset++ {
		day := ComputeDaySlots(cal, from.AddDate(0, 0, offset), bookings)
		if day != nil {
			out = append(out, *day)
		}
	}
	return out
}

// ComputeDayAggregate builds one business-day of aggregated availability
// across providers. Candidate starts use an hourly stride; each slot counts
// the providers whose working hours fit it minus those already booked over
// it (buffer included). It returns nil only when no provider works that
// day; a fully booked day yields a record with empty slots so refreshes
// overwrite whatever capacity was advertised before.
func ComputeDayAggregate(businessID string, cals []ProviderCalendar, date time.Time, bookings []Booking) *AggregatedDaySlots {
	dateStr := date.Format(DateLayout)
	weekday := date.Weekday()

	type window struct {
		providerID string
		open       int
		close      int
		buffer     int
	}
	var windows []window
	for _, cal := range cals {
		hours, ok := cal.WorkingHours[weekday]
		if !ok {
			continue
		}
		open, err := parseMinutes(hours.Start)
		if err != nil {
			continue
		}
		closed, err := parseMinutes(hours.End)
		if err != nil || closed <= open {
			continue
		}
		windows = append(windows, window{providerID: cal.ProviderID, open: open, close: closed, buffer: cal.BufferMin})
	}
	if len(windows) == 0 {
		return nil
	}

	byProvider := make(map[string][]bookedInterval)
	for _, b := range bookings {
		if b.Date != dateStr {
			continue
		}
		start, err := parseMinutes(b.Time)
		if err != nil {
			continue
		}
		byProvider[b.ProviderID] = append(byProvider[b.ProviderID], bookedInterval{start: start, end: start + b.DurationMin})
	}

	earliest, latest := windows[0].open, windows[0].close
	for _, w := range windows[1:] {
		if w.open < earliest {
			earliest = w.open
		}
		if w.close > latest {
			latest = w.close
		}
	}

	slots := make(map[string][]TimeCount, len(DurationBuckets))
	for _, dur := range DurationBuckets {
		var entries []TimeCount
		for start := earliest; start+dur <= latest; start += aggregateStride {
			count := 0
			for _, w := range windows {
				if start < w.open || start+dur > w.close {
					continue
				}
				if blocked(start, dur, byProvider[w.providerID], w.buffer) {
					continue
				}
				count++
			}
			if count > 0 {
				entries = append(entries, TimeCount{Time: formatMinutes(start), Count: count})
			}
		}
		if len(entries) > 0 {
			slots[strconv.Itoa(dur)] = entries
		}
	}

	return &AggregatedDaySlots{
		BusinessID: businessID,
		Date:       dateStr,
		Slots:      slots,
	}
}

// NextWholeHourSlots returns the first n upcoming on-the-hour slots fitting
// the duration, scanning the window day by day. Past times on today's date
// are skipped.
func NextWholeHourSlots(days []DaySlots, durationMin, n int, now time.Time) []TimeCount {
	bucket, ok := BucketFor(durationMin)
	if !ok || n <= 0 {
		return nil
	}

	sorted := make([]DaySlots, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	today := now.Format(DateLayout)
	nowMin := now.Hour()*60 + now.Minute()

	var out []TimeCount
	for _, day := range sorted {
		if day.Date < today {
			continue
		}
		for _, start := range day.Slots[bucket] {
			if len(start) < 5 || start[3:5] != "00" {
				continue
			}
			if day.Date == today {
				m, err := parseMinutes(start)
				if err != nil || m <= nowMin {
					continue
				}
			}
			out = append(out, TimeCount{Time: day.Date + "T" + start, Count: 1})
			if len(out) >= n {
				return out
			}
		}
	}
	return out
}

// HoursForDate returns the start times on one day for the smallest bucket
// fitting the duration.
func HoursForDate(day *DaySlots, durationMin int) []string {
	if day == nil {
		return nil
	}
	bucket, ok := BucketFor(durationMin)
	if !ok {
		return nil
	}
	return day.Slots[bucket]
}

// AggregateHoursForDate is HoursForDate for aggregated business records.
func AggregateHoursForDate(day *AggregatedDaySlots, durationMin int) []TimeCount {
	if day == nil {
		return nil
	}
	bucket, ok := BucketFor(durationMin)
	if !ok {
		return nil
	}
	return day.Slots[bucket]
}
