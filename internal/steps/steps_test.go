package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline-ai/flowline/internal/availability"
	"github.com/flowline-ai/flowline/internal/booking"
	"github.com/flowline-ai/flowline/internal/catalog"
	"github.com/flowline-ai/flowline/internal/flow"
	"github.com/flowline-ai/flowline/pkg/logging"
)

type fakeSlots struct {
	next  []availability.TimeCount
	days  []string
	hours map[string][]string
}

func (f *fakeSlots) NextSlots(ctx context.Context, businessID string, durationMin, n int) ([]availability.TimeCount, error) {
	if n < len(f.next) {
		return f.next[:n], nil
	}
	return f.next, nil
}

func (f *fakeSlots) DaysWithAvailability(ctx context.Context, businessID string, durationMin, maxDays int) ([]string, error) {
	return f.days, nil
}

func (f *fakeSlots) HoursForDate(ctx context.Context, businessID, date string, durationMin int) ([]string, error) {
	return f.hours[date], nil
}

type fakeUsers struct {
	byPhone map[string]*catalog.User
	created []catalog.User
	emails  map[string]string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byPhone: map[string]*catalog.User{}, emails: map[string]string{}}
}

func (f *fakeUsers) FindUserByPhone(ctx context.Context, businessID, phone string) (*catalog.User, error) {
	u, ok := f.byPhone[phone]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) CreateUser(ctx context.Context, u catalog.User) (string, error) {
	u.ID = "user-1"
	f.created = append(f.created, u)
	f.byPhone[u.Phone] = &u
	return u.ID, nil
}

func (f *fakeUsers) UpdateUserEmail(ctx context.Context, userID, email string) error {
	f.emails[userID] = email
	return nil
}

type fakeQuotes struct {
	quotes []booking.Quote
}

func (f *fakeQuotes) CreateQuote(ctx context.Context, q booking.Quote) (string, error) {
	q.ID = "quote-1"
	f.quotes = append(f.quotes, q)
	return q.ID, nil
}

type fakeBookingConfirmer struct {
	confirmed []string
}

func (f *fakeBookingConfirmer) ConfirmFromQuote(ctx context.Context, quoteID string) (*booking.Booking, error) {
	f.confirmed = append(f.confirmed, quoteID)
	return &booking.Booking{ID: "booking-1", ProviderID: "prov-1", QuoteID: quoteID}, nil
}

type fakePayments struct {
	links []string
}

func (f *fakePayments) PaymentLink(ctx context.Context, quoteID string, amountCents int) (string, error) {
	link := "https://pay.example/" + quoteID
	f.links = append(f.links, link)
	return link, nil
}

type testDeps struct {
	deps     Deps
	slots    *fakeSlots
	users    *fakeUsers
	quotes   *fakeQuotes
	bookings *fakeBookingConfirmer
	payments *fakePayments
}

func newTestDeps() *testDeps {
	td := &testDeps{
		slots: &fakeSlots{
			next: []availability.TimeCount{
				{Time: "2026-09-07T10:00", Count: 2},
				{Time: "2026-09-07T11:00", Count: 1},
				{Time: "2026-09-08T09:00", Count: 2},
			},
			days:  []string{"2026-09-07", "2026-09-08", "2026-09-09"},
			hours: map[string][]string{"2026-09-08": {"09:00", "13:00"}},
		},
		users:    newFakeUsers(),
		quotes:   &fakeQuotes{},
		bookings: &fakeBookingConfirmer{},
		payments: &fakePayments{},
	}
	td.deps = Deps{
		Availability: td.slots,
		Users:        td.users,
		Quotes:       td.quotes,
		Bookings:     td.bookings,
		Payments:     td.payments,
		DepositCents: 5000,
		Logger:       logging.Default(),
	}
	return td
}

func stepCtx(flowKey flow.FlowKey, step flow.StepID) *flow.StepContext {
	goal := &flow.UserGoal{
		Type:             flow.GoalServiceBooking,
		Status:           flow.StatusInProgress,
		Flow:             flowKey,
		CurrentStepIndex: flow.StepIndex(flowKey, step),
	}
	return &flow.StepContext{
		Participant: flow.Participant{ID: "+5511999990000", BusinessID: "biz-1"},
		Goal:        goal,
	}
}

func TestNewRegistryCoversAllBlueprints(t *testing.T) {
	td := newTestDeps()
	assert.NotPanics(t, func() { NewRegistry(td.deps) })
}

func TestAskAddressValidation(t *testing.T) {
	h := &askAddress{}
	sc := stepCtx(flow.FlowBookingMobile, flow.StepAskAddress)
	ctx := context.Background()

	assert.False(t, h.Validate(ctx, sc, "nope").Valid)
	assert.False(t, h.Validate(ctx, sc, "Main Street").Valid, "needs a street number")

	vr := h.Validate(ctx, sc, "Rua das Flores 123, Centro")
	require.True(t, vr.Valid)
	require.NoError(t, h.Process(ctx, sc, "Rua das Flores 123, Centro"))
	assert.Equal(t, "Rua das Flores 123, Centro", sc.Data().Address)
}

func TestConfirmLocationCorrectionRewinds(t *testing.T) {
	h := &confirmLocation{}
	sc := stepCtx(flow.FlowBookingMobile, flow.StepConfirmLocation)
	sc.Data().Address = "Rua A 10"
	sc.Data().AddressValidated = true
	before := sc.Goal.CurrentStepIndex

	require.NoError(t, h.Process(context.Background(), sc, "Rua das Flores 123"))
	assert.Equal(t, "Rua das Flores 123", sc.Data().Address)
	assert.False(t, sc.Data().LocationConfirmed)
	assert.Equal(t, before-1, sc.Goal.CurrentStepIndex)

	require.NoError(t, h.Process(context.Background(), sc, payloadConfirmLocation))
	assert.True(t, sc.Data().LocationConfirmed)
}

func TestSelectServiceMatchesByIDAndName(t *testing.T) {
	h := &selectService{}
	sc := stepCtx(flow.FlowBookingNoneMobile, flow.StepSelectService)
	sc.Data().AvailableServices = []flow.ServiceRef{
		{ID: "svc-1", Name: "Deep Clean", DurationMin: 90, PriceCents: 15000},
		{ID: "svc-2", Name: "Quick Tidy", DurationMin: 60, PriceCents: 8000},
	}
	ctx := context.Background()

	require.True(t, h.Validate(ctx, sc, "svc-2").Valid)
	require.True(t, h.Validate(ctx, sc, "I'd like the deep clean").Valid)
	assert.False(t, h.Validate(ctx, sc, "manicure").Valid)

	require.NoError(t, h.Process(ctx, sc, "I'd like the deep clean"))
	require.NotNil(t, sc.Data().SelectedService)
	assert.Equal(t, "svc-1", sc.Data().SelectedService.ID)
	assert.Equal(t, 90, sc.Data().ServiceDuration)
}

func TestShowAvailableTimesPromptOffersQuickSlots(t *testing.T) {
	td := newTestDeps()
	h := &showAvailableTimes{deps: td.deps}
	sc := stepCtx(flow.FlowBookingNoneMobile, flow.StepShowAvailableTimes)
	sc.Data().ServiceDuration = 90

	text, buttons, err := h.Prompt(context.Background(), sc)
	require.NoError(t, err)
	assert.Contains(t, text, "next available times")
	require.Len(t, buttons, 4, "three slots plus browse")
	assert.Equal(t, "slot_2026-09-07T10:00", buttons[0].Payload)
	assert.Equal(t, payloadBrowseDays, buttons[3].Payload)
	assert.Len(t, sc.Data().NextSlots, 3)
}

func TestHandleTimeChoiceQuickPick(t *testing.T) {
	h := &handleTimeChoice{}
	sc := stepCtx(flow.FlowBookingNoneMobile, flow.StepHandleTimeChoice)
	ctx := context.Background()

	require.True(t, h.Validate(ctx, sc, "slot_2026-09-07T10:00").Valid)
	require.NoError(t, h.Process(ctx, sc, "slot_2026-09-07T10:00"))
	data := sc.Data()
	assert.Equal(t, "2026-09-07", data.Date)
	assert.Equal(t, "10:00", data.Time)
	assert.True(t, data.QuickBookingSelected)
	assert.False(t, data.BrowseModeSelected)
}

func TestHandleTimeChoiceBrowse(t *testing.T) {
	h := &handleTimeChoice{}
	sc := stepCtx(flow.FlowBookingNoneMobile, flow.StepHandleTimeChoice)

	require.NoError(t, h.Process(context.Background(), sc, payloadBrowseDays))
	assert.True(t, sc.Data().BrowseModeSelected)
	assert.Empty(t, sc.Data().Date)
}

func TestHandleTimeChoiceDefersFreeText(t *testing.T) {
	h := &handleTimeChoice{}
	sc := stepCtx(flow.FlowBookingNoneMobile, flow.StepHandleTimeChoice)

	vr := h.Validate(context.Background(), sc, "my name is Ana")
	assert.False(t, vr.Valid)
	assert.Empty(t, vr.ErrorMessage, "free text should defer, not re-prompt")
}

func TestSelectSpecificDayRejectsPastDates(t *testing.T) {
	h := &selectSpecificDay{}
	sc := stepCtx(flow.FlowBookingNoneMobile, flow.StepSelectSpecificDay)

	vr := h.Validate(context.Background(), sc, "day_2020-01-01")
	assert.False(t, vr.Valid)
	assert.NotEmpty(t, vr.ErrorMessage)
}

func TestShowHoursForDayClearsDateWhenFull(t *testing.T) {
	td := newTestDeps()
	h := &showHoursForDay{deps: td.deps}
	sc := stepCtx(flow.FlowBookingNoneMobile, flow.StepShowHoursForDay)
	sc.Data().Date = "2026-09-10" // no hours configured for this date
	sc.Data().ServiceDuration = 90

	text, buttons, err := h.Prompt(context.Background(), sc)
	require.NoError(t, err)
	assert.Contains(t, text, "pick another")
	assert.Empty(t, buttons)
	assert.Empty(t, sc.Data().Date, "a full day must send the flow back to day picking")
}

func TestCheckExistingUserFillsData(t *testing.T) {
	td := newTestDeps()
	td.users.byPhone["+5511999990000"] = &catalog.User{ID: "user-9", Name: "Ana", Email: "ana@example.com"}
	h := &checkExistingUser{deps: td.deps}
	sc := stepCtx(flow.FlowBookingNoneMobile, flow.StepCheckExistingUser)

	require.NoError(t, h.Process(context.Background(), sc, ""))
	data := sc.Data()
	assert.Equal(t, "user-9", data.UserID)
	assert.Equal(t, "Ana", data.UserName)
	assert.True(t, data.ExistingUser)
}

func TestCreateNewUserRegisters(t *testing.T) {
	td := newTestDeps()
	h := &createNewUser{deps: td.deps}
	sc := stepCtx(flow.FlowBookingNoneMobile, flow.StepCreateNewUser)
	sc.Data().UserName = "Ana Souza"

	require.True(t, h.AutoAdvance(sc))
	require.NoError(t, h.Process(context.Background(), sc, ""))
	assert.Equal(t, "user-1", sc.Data().UserID)
	require.Len(t, td.users.created, 1)
	assert.Equal(t, "+5511999990000", td.users.created[0].Phone)
}

func TestAskEmailValidation(t *testing.T) {
	td := newTestDeps()
	h := &askEmail{deps: td.deps}
	sc := stepCtx(flow.FlowBookingNoneMobile, flow.StepAskEmail)
	sc.Data().UserID = "user-1"
	ctx := context.Background()

	assert.False(t, h.Validate(ctx, sc, "not an email").Valid)
	assert.True(t, h.Validate(ctx, sc, payloadAddEmailLater).Valid)
	require.True(t, h.Validate(ctx, sc, "ana@example.com").Valid)

	require.NoError(t, h.Process(ctx, sc, "ana@example.com"))
	assert.Equal(t, "ana@example.com", sc.Data().Email)
	assert.Equal(t, "ana@example.com", td.users.emails["user-1"])
}

func TestQuoteSummaryCreatesQuoteOnce(t *testing.T) {
	td := newTestDeps()
	h := &quoteSummary{deps: td.deps}
	sc := stepCtx(flow.FlowBookingNoneMobile, flow.StepQuoteSummary)
	sc.Data().SelectedService = &flow.ServiceRef{ID: "svc-1", Name: "Deep Clean", DurationMin: 90, PriceCents: 15000}
	sc.Data().Date = "2026-09-07"
	sc.Data().Time = "10:00"
	sc.Data().UserID = "user-1"
	sc.Data().UserName = "Ana"
	ctx := context.Background()

	text, buttons, err := h.Prompt(ctx, sc)
	require.NoError(t, err)
	assert.Contains(t, text, "Deep Clean")
	assert.Contains(t, text, "$150.00")
	assert.Contains(t, text, "$50.00")
	require.Len(t, buttons, 2)
	assert.Equal(t, "quote-1", sc.Data().QuoteID)

	_, _, err = h.Prompt(ctx, sc)
	require.NoError(t, err)
	assert.Len(t, td.quotes.quotes, 1, "re-rendering must not duplicate the quote")
}

func TestHandleQuoteChoiceConfirmGeneratesLink(t *testing.T) {
	td := newTestDeps()
	h := &handleQuoteChoice{deps: td.deps}
	sc := stepCtx(flow.FlowBookingNoneMobile, flow.StepHandleQuoteChoice)
	sc.Data().QuoteID = "quote-1"

	require.NoError(t, h.Process(context.Background(), sc, payloadConfirmQuote))
	assert.True(t, sc.Data().PaymentLinkGenerated)
	assert.Equal(t, "https://pay.example/quote-1", sc.Data().PaymentLink)

	text, _, err := h.Prompt(context.Background(), sc)
	require.NoError(t, err)
	assert.Contains(t, text, "https://pay.example/quote-1")
}

func TestHandleQuoteChoiceEditRewindsToTimeChooser(t *testing.T) {
	td := newTestDeps()
	h := &handleQuoteChoice{deps: td.deps}
	sc := stepCtx(flow.FlowBookingNoneMobile, flow.StepHandleQuoteChoice)
	sc.Data().SelectedService = &flow.ServiceRef{ID: "svc-1"}
	sc.Data().Date = "2026-09-07"
	sc.Data().Time = "10:00"
	sc.Data().QuoteID = "quote-1"

	require.NoError(t, h.Process(context.Background(), sc, payloadEditQuote))
	assert.Empty(t, sc.Data().Date)
	assert.Empty(t, sc.Data().QuoteID)
	assert.NotNil(t, sc.Data().SelectedService)
	assert.Equal(t, flow.StepIndex(flow.FlowBookingNoneMobile, flow.StepShowAvailableTimes)-1, sc.Goal.CurrentStepIndex)
}

func TestCreateBookingConfirmsPaidQuote(t *testing.T) {
	td := newTestDeps()
	h := &createBooking{deps: td.deps}
	sc := stepCtx(flow.FlowBookingNoneMobile, flow.StepCreateBooking)
	sc.Data().QuoteID = "quote-1"
	sc.Data().PaymentCompleted = true

	require.True(t, h.AutoAdvance(sc))
	require.NoError(t, h.Process(context.Background(), sc, ""))
	assert.Equal(t, "booking-1", sc.Data().ConfirmedBookingID)
	assert.Equal(t, "prov-1", sc.Data().ProviderID)
	assert.False(t, h.AutoAdvance(sc), "a confirmed booking must not confirm twice")
}

// memSessions backs the end-to-end conversation test.
type memSessions struct{ m map[string]*flow.Session }

func (s *memSessions) Load(ctx context.Context, id string) (*flow.Session, error) {
	sess, ok := s.m[id]
	if !ok {
		return nil, flow.ErrSessionNotFound
	}
	return sess, nil
}
func (s *memSessions) Save(ctx context.Context, sess *flow.Session) error {
	s.m[sess.Participant.ID] = sess
	return nil
}
func (s *memSessions) Delete(ctx context.Context, id string) error { delete(s.m, id); return nil }

type staticCatalog struct{ services []flow.ServiceRef }

func (c staticCatalog) ListServices(ctx context.Context, businessID string) ([]flow.ServiceRef, error) {
	return c.services, nil
}

// TestQuickBookingConversation drives a whole new-customer booking through
// the real processor and handlers: quick slot pick, sign-up, quote,
// payment, confirmation.
func TestQuickBookingConversation(t *testing.T) {
	td := newTestDeps()
	reg := NewRegistry(td.deps)
	sessions := &memSessions{m: map[string]*flow.Session{}}
	goals := flow.NewGoalManager(staticCatalog{services: []flow.ServiceRef{
		{ID: "svc-1", Name: "Deep Clean", DurationMin: 90, PriceCents: 15000},
	}}, logging.Default())
	p := flow.NewProcessor(sessions, reg, goals, logging.Default())

	participant := flow.Participant{ID: "+5511999990000", BusinessID: "biz-1"}
	ctx := context.Background()

	send := func(input string) flow.Reply {
		t.Helper()
		reply, err := p.HandleMessage(ctx, participant, input)
		require.NoError(t, err)
		return reply
	}

	reply := send("hi, I need a cleaning")
	assert.Contains(t, reply.Text, "Which service")

	reply = send("the deep clean please")
	assert.Contains(t, reply.Text, "next available times")
	require.NotEmpty(t, reply.Buttons)

	reply = send("slot_2026-09-07T10:00")
	assert.Contains(t, reply.Text, "booked with us before")

	reply = send("new_user")
	assert.Contains(t, reply.Text, "What name")

	reply = send("Ana Souza")
	assert.Contains(t, reply.Text, "email")

	reply = send("add_email_later")
	assert.Contains(t, reply.Text, "Deep Clean")
	assert.Contains(t, reply.Text, "$150.00")

	reply = send("confirm_quote")
	assert.Contains(t, reply.Text, "https://pay.example/quote-1")

	reply = send("PAYMENT_COMPLETED_quote-1")
	assert.Contains(t, reply.Text, "You're booked")
	assert.Contains(t, reply.Text, "booking-1")

	sess := sessions.m[participant.ID]
	assert.Nil(t, sess.ActiveGoal)
	require.Len(t, sess.PreviousGoals, 1)
	assert.Equal(t, flow.StatusCompleted, sess.PreviousGoals[0].Status)
	assert.Equal(t, []string{"quote-1"}, td.bookings.confirmed)

	require.Len(t, td.quotes.quotes, 1)
	assert.Equal(t, "2026-09-07", td.quotes.quotes[0].Date)
	assert.Equal(t, "10:00", td.quotes.quotes[0].Time)
	assert.Equal(t, "Ana Souza", td.quotes.quotes[0].UserName)
}

// TestBrowseConversation walks the calendar path: browse days, pick one,
// pick an hour.
func TestBrowseConversation(t *testing.T) {
	td := newTestDeps()
	reg := NewRegistry(td.deps)
	sessions := &memSessions{m: map[string]*flow.Session{}}
	goals := flow.NewGoalManager(staticCatalog{services: []flow.ServiceRef{
		{ID: "svc-1", Name: "Deep Clean", DurationMin: 90, PriceCents: 15000},
	}}, logging.Default())
	p := flow.NewProcessor(sessions, reg, goals, logging.Default())

	participant := flow.Participant{ID: "+5511888880000", BusinessID: "biz-1"}
	ctx := context.Background()

	send := func(input string) flow.Reply {
		t.Helper()
		reply, err := p.HandleMessage(ctx, participant, input)
		require.NoError(t, err)
		return reply
	}

	send("hello")
	send("svc-1")

	reply := send("browse_days")
	assert.Contains(t, reply.Text, "Which day")
	require.NotEmpty(t, reply.Buttons)
	assert.Equal(t, "day_2026-09-07", reply.Buttons[0].Payload)

	reply = send("day_2026-09-08")
	assert.Contains(t, reply.Text, "open on")
	require.Len(t, reply.Buttons, 2)
	assert.Equal(t, "slot_2026-09-08T09:00", reply.Buttons[0].Payload)

	reply = send("slot_2026-09-08T09:00")
	assert.Contains(t, reply.Text, "booked with us before")

	sess := sessions.m[participant.ID]
	require.NotNil(t, sess.ActiveGoal)
	assert.Equal(t, "2026-09-08", sess.ActiveGoal.Collected.Date)
	assert.Equal(t, "09:00", sess.ActiveGoal.Collected.Time)
}
