package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline-ai/flowline/pkg/logging"
)

type fakeRecorder struct {
	providerDays map[string]DaySlots           // providerID|date
	businessDays map[string]AggregatedDaySlots // businessID|date
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		providerDays: make(map[string]DaySlots),
		businessDays: make(map[string]AggregatedDaySlots),
	}
}

func (f *fakeRecorder) UpsertProviderDay(_ context.Context, day DaySlots) error {
	f.providerDays[day.ProviderID+"|"+day.Date] = day
	return nil
}

func (f *fakeRecorder) UpsertBusinessDay(_ context.Context, day AggregatedDaySlots) error {
	f.businessDays[day.BusinessID+"|"+day.Date] = day
	return nil
}

func (f *fakeRecorder) GetBusinessDay(_ context.Context, businessID, date string) (*AggregatedDaySlots, error) {
	day, ok := f.businessDays[businessID+"|"+date]
	if !ok {
		return nil, ErrNotFound
	}
	return &day, nil
}

func (f *fakeRecorder) ListBusinessDays(_ context.Context, businessID, from, to string) ([]AggregatedDaySlots, error) {
	var out []AggregatedDaySlots
	for d := from; d <= to; d = nextDate(d) {
		if day, ok := f.businessDays[businessID+"|"+d]; ok {
			out = append(out, day)
		}
	}
	return out, nil
}

func (f *fakeRecorder) DeleteBefore(_ context.Context, businessID, date string) (int64, error) {
	var deleted int64
	for key, day := range f.businessDays {
		if day.BusinessID == businessID && day.Date < date {
			delete(f.businessDays, key)
			deleted++
		}
	}
	return deleted, nil
}

func nextDate(d string) string {
	t, _ := time.Parse(DateLayout, d)
	return t.AddDate(0, 0, 1).Format(DateLayout)
}

type fakeCalendars struct{ cals []ProviderCalendar }

func (f *fakeCalendars) ProviderCalendars(context.Context, string) ([]ProviderCalendar, error) {
	return f.cals, nil
}

type fakeBookings struct{ bookings []Booking }

func (f *fakeBookings) BookingsInRange(context.Context, string, string, string) ([]Booking, error) {
	return f.bookings, nil
}

func newTestService(t *testing.T, recorder *fakeRecorder, cals []ProviderCalendar, bookings []Booking, now time.Time) *Service {
	t.Helper()
	return NewService(
		recorder,
		&fakeCalendars{cals: cals},
		&fakeBookings{bookings: bookings},
		logging.New("error"),
		WithWindowDays(6),
		WithClock(func() time.Time { return now }),
	)
}

func TestRollWindowFillsMissingDays(t *testing.T) {
	recorder := newFakeRecorder()
	now := time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC) // Monday
	svc := newTestService(t, recorder, []ProviderCalendar{weekCalendar("prov-1", 0)}, nil, now)

	require.NoError(t, svc.RollWindow(context.Background(), "biz-1"))

	// Mon 9/7 through Sun 9/13: five working days.
	assert.Len(t, recorder.businessDays, 5)
	_, hasSaturday := recorder.businessDays["biz-1|2026-09-12"]
	assert.False(t, hasSaturday, "no record for days off")
	assert.Len(t, recorder.providerDays, 5)
}

func TestRollWindowDropsPastDays(t *testing.T) {
	recorder := newFakeRecorder()
	recorder.businessDays["biz-1|2026-09-01"] = AggregatedDaySlots{BusinessID: "biz-1", Date: "2026-09-01"}
	now := time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)
	svc := newTestService(t, recorder, []ProviderCalendar{weekCalendar("prov-1", 0)}, nil, now)

	require.NoError(t, svc.RollWindow(context.Background(), "biz-1"))
	_, stale := recorder.businessDays["biz-1|2026-09-01"]
	assert.False(t, stale)
}

func TestRefreshDayRecomputesAfterBooking(t *testing.T) {
	recorder := newFakeRecorder()
	now := time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)
	bookings := []Booking{{ProviderID: "prov-1", Date: "2026-09-07", Time: "12:00", DurationMin: 120}}
	svc := newTestService(t, recorder, []ProviderCalendar{weekCalendar("prov-1", 30)}, bookings, now)

	require.NoError(t, svc.RefreshDay(context.Background(), "biz-1", "2026-09-07"))

	day := recorder.providerDays["prov-1|2026-09-07"]
	assert.NotContains(t, day.Slots["60"], "12:00")
	assert.Contains(t, day.Slots["60"], "14:30")

	agg := recorder.businessDays["biz-1|2026-09-07"]
	byTime := make(map[string]int)
	for _, tc := range agg.Slots["60"] {
		byTime[tc.Time] = tc.Count
	}
	assert.Zero(t, byTime["12:00"])
	assert.Equal(t, 1, byTime["15:00"])
}

func TestRefreshDayClearsSoldOutDay(t *testing.T) {
	recorder := newFakeRecorder()
	now := time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)
	books := &fakeBookings{}
	svc := NewService(
		recorder,
		&fakeCalendars{cals: []ProviderCalendar{weekCalendar("prov-1", 0)}},
		books,
		logging.New("error"),
		WithWindowDays(6),
		WithClock(func() time.Time { return now }),
	)
	require.NoError(t, svc.RollWindow(context.Background(), "biz-1"))
	require.NotEmpty(t, recorder.businessDays["biz-1|2026-09-07"].Slots["60"])

	// A single booking takes the whole working day.
	books.bookings = []Booking{{ProviderID: "prov-1", Date: "2026-09-07", Time: "09:00", DurationMin: 480}}
	require.NoError(t, svc.RefreshDay(context.Background(), "biz-1", "2026-09-07"))

	agg := recorder.businessDays["biz-1|2026-09-07"]
	assert.Empty(t, agg.Slots, "sold-out day must stop advertising capacity")

	hours, err := svc.HoursForDate(context.Background(), "biz-1", "2026-09-07", 60)
	require.NoError(t, err)
	assert.Empty(t, hours)

	slots, err := svc.NextSlots(context.Background(), "biz-1", 60, 3)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	for _, tc := range slots {
		assert.NotContains(t, tc.Time, "2026-09-07T")
	}
}

func TestRefreshDayBlanksRecordWhenNobodyWorks(t *testing.T) {
	recorder := newFakeRecorder()
	recorder.businessDays["biz-1|2026-09-12"] = AggregatedDaySlots{
		BusinessID: "biz-1",
		Date:       "2026-09-12",
		Slots:      map[string][]TimeCount{"60": {{Time: "09:00", Count: 1}}},
	}
	now := time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)
	// The current calendar has no Saturday hours, so the seeded record is stale.
	svc := newTestService(t, recorder, []ProviderCalendar{weekCalendar("prov-1", 0)}, nil, now)

	require.NoError(t, svc.RefreshDay(context.Background(), "biz-1", "2026-09-12"))

	agg := recorder.businessDays["biz-1|2026-09-12"]
	assert.Empty(t, agg.Slots)
}

func TestNextSlotsSkipsPastAndPartialHours(t *testing.T) {
	recorder := newFakeRecorder()
	now := time.Date(2026, 9, 7, 10, 15, 0, 0, time.UTC)
	svc := newTestService(t, recorder, []ProviderCalendar{weekCalendar("prov-1", 0)}, nil, now)
	require.NoError(t, svc.RollWindow(context.Background(), "biz-1"))

	slots, err := svc.NextSlots(context.Background(), "biz-1", 60, 2)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "2026-09-07T11:00", slots[0].Time)
	assert.Equal(t, "2026-09-07T12:00", slots[1].Time)
}

func TestHoursForDate(t *testing.T) {
	recorder := newFakeRecorder()
	now := time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)
	svc := newTestService(t, recorder, []ProviderCalendar{weekCalendar("prov-1", 0)}, nil, now)
	require.NoError(t, svc.RollWindow(context.Background(), "biz-1"))

	hours, err := svc.HoursForDate(context.Background(), "biz-1", "2026-09-08", 90)
	require.NoError(t, err)
	assert.Contains(t, hours, "09:00")
	assert.Contains(t, hours, "15:00")

	// Unknown dates return no hours rather than an error.
	hours, err = svc.HoursForDate(context.Background(), "biz-1", "2026-09-13", 90)
	require.NoError(t, err)
	assert.Empty(t, hours)
}

func TestDaysWithAvailability(t *testing.T) {
	recorder := newFakeRecorder()
	now := time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)
	svc := newTestService(t, recorder, []ProviderCalendar{weekCalendar("prov-1", 0)}, nil, now)
	require.NoError(t, svc.RollWindow(context.Background(), "biz-1"))

	days, err := svc.DaysWithAvailability(context.Background(), "biz-1", 120, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-09-07", "2026-09-08", "2026-09-09"}, days)
}
