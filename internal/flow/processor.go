package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flowline-ai/flowline/pkg/logging"
)

var flowTracer = otel.Tracer("flowline.internal.flow")

// Special inbound payloads handled before any step logic runs.
const (
	StartBookingPayload    = "START_BOOKING"
	PaymentCompletedPrefix = "PAYMENT_COMPLETED_"
)

// systemPayloads are button payloads generated by the assistant itself.
// They always bypass the decision oracle.
var systemPayloads = map[string]bool{
	"confirm_quote":      true,
	"edit_quote":         true,
	"choose_another_day": true,
	"open_calendar":      true,
	"browse_days":        true,
	"existing_user":      true,
	"new_user":           true,
	"confirm_address":    true,
	"confirm_location":   true,
	"add_email_later":    true,
}

// Reply is what goes back to the participant for one turn.
type Reply struct {
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons,omitempty"`
}

// QuoteRestorer rebuilds collected data from a persisted quote, used when a
// payment confirmation arrives on a fresh or out-of-date session.
type QuoteRestorer interface {
	RestoreQuote(ctx context.Context, quoteID string, data *BookingData) error
}

// GoalArchiver receives goals as they finish so transcripts survive session
// expiry. Archive failures never fail the turn.
type GoalArchiver interface {
	ArchiveGoal(ctx context.Context, participant Participant, goal *UserGoal) error
}

// Observer receives per-turn measurements. Implementations must be nil-safe
// no-ops when unset.
type Observer interface {
	ObserveTurn(goalType string, outcome string, seconds float64)
	ObserveDecision(action string, fromOracle bool)
}

const (
	defaultAutoAdvanceLimit = 10
	fallbackReplyText       = "Sorry - I'm having trouble responding right now. Please try again in a moment."
)

// Processor orchestrates one conversation turn: session load, oracle
// consultation, step validation/processing, navigation, and reply assembly.
type Processor struct {
	sessions SessionStore
	registry *Registry
	ctrl     *Controller
	goals    *GoalManager
	oracle   DecisionOracle
	quotes   QuoteRestorer
	observer Observer
	archiver GoalArchiver
	logger   *logging.Logger

	defaultLanguage  string
	autoAdvanceLimit int

	// locks serializes turns per participant so concurrent webhook
	// deliveries cannot interleave updates to one session.
	locks sync.Map // participantID -> *sync.Mutex
}

// ProcessorOption customizes processor behavior.
type ProcessorOption func(*Processor)

// WithOracle wires the decision oracle. Without one every free-text input is
// handled deterministically by the current step.
func WithOracle(oracle DecisionOracle) ProcessorOption {
	return func(p *Processor) { p.oracle = oracle }
}

// WithQuoteRestorer wires quote restoration for payment confirmations.
func WithQuoteRestorer(qr QuoteRestorer) ProcessorOption {
	return func(p *Processor) { p.quotes = qr }
}

// WithObserver wires turn metrics.
func WithObserver(o Observer) ProcessorOption {
	return func(p *Processor) { p.observer = o }
}

// WithGoalArchiver wires transcript archival for finished goals.
func WithGoalArchiver(a GoalArchiver) ProcessorOption {
	return func(p *Processor) { p.archiver = a }
}

// WithAutoAdvanceLimit caps chained auto-advance steps per turn.
func WithAutoAdvanceLimit(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.autoAdvanceLimit = n
		}
	}
}

// WithDefaultLanguage sets the language replies are authored in.
func WithDefaultLanguage(lang string) ProcessorOption {
	return func(p *Processor) {
		if lang != "" {
			p.defaultLanguage = lang
		}
	}
}

// NewProcessor constructs the turn orchestrator.
func NewProcessor(sessions SessionStore, registry *Registry, goals *GoalManager, logger *logging.Logger, opts ...ProcessorOption) *Processor {
	if sessions == nil {
		panic("flow: session store required")
	}
	if registry == nil {
		panic("flow: registry required")
	}
	if goals == nil {
		panic("flow: goal manager required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	p := &Processor{
		sessions:         sessions,
		registry:         registry,
		ctrl:             NewController(logger),
		goals:            goals,
		logger:           logger,
		defaultLanguage:  "en",
		autoAdvanceLimit: defaultAutoAdvanceLimit,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Controller exposes the navigation resolver, mainly for tests and tooling.
func (p *Processor) Controller() *Controller { return p.ctrl }

// HandleMessage runs one conversation turn and returns the reply to send.
func (p *Processor) HandleMessage(ctx context.Context, participant Participant, raw string) (Reply, error) {
	mu := p.lockFor(participant.ID)
	mu.Lock()
	defer mu.Unlock()

	ctx, span := flowTracer.Start(ctx, "flow.handle_message")
	defer span.End()
	span.SetAttributes(
		attribute.String("flowline.participant_id", participant.ID),
		attribute.String("flowline.business_id", participant.BusinessID),
	)

	started := time.Now()
	input := strings.TrimSpace(raw)

	sess, err := p.sessions.Load(ctx, participant.ID)
	if errors.Is(err, ErrSessionNotFound) {
		sess = &Session{Participant: participant}
	} else if err != nil {
		span.RecordError(err)
		return Reply{}, fmt.Errorf("flow: load session: %w", err)
	}
	sess.Participant = participant
	shelved := len(sess.PreviousGoals)

	reply, turnErr := p.dispatch(ctx, sess, input)
	if turnErr != nil {
		span.RecordError(turnErr)
		p.observeTurn(sess, "error", started)
		return Reply{}, turnErr
	}

	reply = p.translateReply(ctx, participant, reply)

	if goal := p.historyGoal(sess); goal != nil {
		goal.AppendHistory(RoleAssistant, reply.Text)
	}
	sess.UpdatedAt = time.Now().UTC()
	if err := p.sessions.Save(ctx, sess); err != nil {
		span.RecordError(err)
		return Reply{}, fmt.Errorf("flow: save session: %w", err)
	}

	if p.archiver != nil {
		for _, goal := range sess.PreviousGoals[shelved:] {
			if err := p.archiver.ArchiveGoal(ctx, participant, goal); err != nil {
				p.logger.Warn("goal archive failed", "participant_id", participant.ID, "goal_type", goal.Type, "error", err)
			}
		}
	}

	p.observeTurn(sess, "ok", started)
	return reply, nil
}

func (p *Processor) dispatch(ctx context.Context, sess *Session, input string) (Reply, error) {
	if quoteID, ok := strings.CutPrefix(input, PaymentCompletedPrefix); ok {
		return p.handlePaymentCompleted(ctx, sess, quoteID)
	}

	if input == StartBookingPayload {
		return p.startBookingGoal(ctx, sess)
	}

	if sess.ActiveGoal == nil {
		return p.startFirstGoal(ctx, sess, input)
	}

	goal := sess.ActiveGoal
	goal.AppendHistory(RoleUser, input)

	if isSystemPayload(input) {
		p.observeDecision(string(ActionContinue), false)
		return p.processStepInput(ctx, sess, input)
	}

	decision := fallbackDecision()
	fromOracle := false
	if p.oracle != nil {
		step, _ := goal.CurrentStep()
		d, err := p.oracle.Decide(ctx, DecisionInput{
			Message:     input,
			CurrentStep: step,
			GoalType:    goal.Type,
			History:     goal.History,
			Data:        &goal.Collected,
		})
		if err != nil {
			p.logger.Warn("decision oracle failed, continuing flow", "error", err, "participant_id", sess.Participant.ID)
		} else {
			decision = actionable(d)
			fromOracle = true
		}
	}
	p.observeDecision(string(decision.Action), fromOracle)

	switch decision.Action {
	case ActionGoBack:
		step, ok := p.ctrl.GoBack(goal, decision.TargetStep)
		if !ok {
			return p.processStepInput(ctx, sess, input)
		}
		return p.promptStep(ctx, sess, step)
	case ActionRestart:
		step, ok := p.ctrl.Restart(goal)
		if !ok {
			return Reply{Text: fallbackReplyText}, nil
		}
		return p.promptStep(ctx, sess, step)
	case ActionSwitchTopic:
		return p.switchTopic(ctx, sess, decision)
	default:
		return p.processStepInput(ctx, sess, input)
	}
}

// startFirstGoal handles the very first message of a session: create a goal
// (oracle may pick its type), position at step zero, and show its prompt.
func (p *Processor) startFirstGoal(ctx context.Context, sess *Session, input string) (Reply, error) {
	goalType := GoalServiceBooking
	action := ActionCreate
	if p.oracle != nil && input != "" && !isSystemPayload(input) {
		d, err := p.oracle.Decide(ctx, DecisionInput{Message: input})
		if err == nil && d.NewGoalType != "" && d.Confidence >= switchTopicThreshold {
			goalType = d.NewGoalType
			if d.NewGoalAction != "" {
				action = d.NewGoalAction
			}
		}
	}

	goal, err := p.goals.CreateGoal(ctx, sess.Participant, goalType, action)
	if err != nil {
		return Reply{}, err
	}
	sess.ActiveGoal = goal
	goal.AppendHistory(RoleUser, input)

	if err := p.runAutoAdvance(ctx, sess); err != nil {
		p.logger.Warn("auto-advance failed on new goal", "error", err)
	}
	step, ok := sess.ActiveGoal.CurrentStep()
	if !ok {
		return Reply{Text: fallbackReplyText}, nil
	}
	return p.promptStep(ctx, sess, step)
}

// startBookingGoal forces a fresh booking goal, carrying the transcript over
// from whatever goal was active before.
func (p *Processor) startBookingGoal(ctx context.Context, sess *Session) (Reply, error) {
	var history []HistoryEntry
	if sess.ActiveGoal != nil {
		history = sess.ActiveGoal.History
		sess.CompleteActiveGoal(StatusCompleted)
	}

	goal, err := p.goals.CreateGoal(ctx, sess.Participant, GoalServiceBooking, ActionCreate)
	if err != nil {
		return Reply{}, err
	}
	goal.History = history
	goal.AppendHistory(RoleUser, StartBookingPayload)
	sess.ActiveGoal = goal

	if err := p.runAutoAdvance(ctx, sess); err != nil {
		p.logger.Warn("auto-advance failed on booking restart", "error", err)
	}
	step, ok := goal.CurrentStep()
	if !ok {
		return Reply{Text: fallbackReplyText}, nil
	}
	return p.promptStep(ctx, sess, step)
}

// handlePaymentCompleted routes an external payment confirmation into the
// createBooking step, restoring the quote when the session lost it.
func (p *Processor) handlePaymentCompleted(ctx context.Context, sess *Session, quoteID string) (Reply, error) {
	if sess.ActiveGoal == nil {
		goal, err := p.goals.CreateGoal(ctx, sess.Participant, GoalServiceBooking, ActionCreate)
		if err != nil {
			return Reply{}, err
		}
		sess.ActiveGoal = goal
	}
	goal := sess.ActiveGoal
	data := &goal.Collected

	if data.QuoteID != quoteID {
		data.QuoteID = quoteID
		if p.quotes != nil {
			if err := p.quotes.RestoreQuote(ctx, quoteID, data); err != nil {
				p.logger.Error("quote restore failed", "error", err, "quote_id", quoteID)
			}
		}
	}
	data.PaymentCompleted = true
	data.PaymentLinkGenerated = true

	idx := StepIndex(goal.Flow, StepCreateBooking)
	if idx < 0 {
		return Reply{Text: fallbackReplyText}, nil
	}
	goal.CurrentStepIndex = idx
	goal.AppendHistory(RoleUser, PaymentCompletedPrefix+quoteID)

	if err := p.runAutoAdvance(ctx, sess); err != nil {
		p.logger.Error("booking creation after payment failed", "error", err, "quote_id", quoteID)
		return Reply{Text: "Your payment was received, but confirming the booking hit a snag. Our team will follow up shortly."}, nil
	}
	step, ok := goal.CurrentStep()
	if !ok {
		return Reply{Text: fallbackReplyText}, nil
	}
	return p.promptStep(ctx, sess, step)
}

func (p *Processor) switchTopic(ctx context.Context, sess *Session, d Decision) (Reply, error) {
	newType := d.NewGoalType
	if newType == "" {
		newType = GoalFAQ
	}
	newAction := d.NewGoalAction
	if newAction == "" {
		newAction = ActionNone
	}
	if newType == GoalServiceBooking {
		newAction = ActionCreate
	}

	var history []HistoryEntry
	if sess.ActiveGoal != nil {
		history = sess.ActiveGoal.History
		sess.CompleteActiveGoal(StatusCompleted)
	}

	goal, err := p.goals.CreateGoal(ctx, sess.Participant, newType, newAction)
	if err != nil {
		return Reply{}, err
	}
	goal.History = history
	sess.ActiveGoal = goal

	if err := p.runAutoAdvance(ctx, sess); err != nil {
		p.logger.Warn("auto-advance failed after topic switch", "error", err)
	}
	step, ok := goal.CurrentStep()
	if !ok {
		return Reply{Text: fallbackReplyText}, nil
	}
	return p.promptStep(ctx, sess, step)
}

// processStepInput validates the input against the current step. Inputs the
// step rejects without a message are offered to subsequent steps, so answers
// that arrive "early" still land where they belong.
func (p *Processor) processStepInput(ctx context.Context, sess *Session, input string) (Reply, error) {
	goal := sess.ActiveGoal
	sc := &StepContext{Participant: sess.Participant, Goal: goal}

	for attempts := 0; attempts < len(Steps(goal.Flow))+1; attempts++ {
		step, ok := goal.CurrentStep()
		if !ok {
			sess.CompleteActiveGoal(StatusCompleted)
			return Reply{Text: "All done! Is there anything else I can help you with?"}, nil
		}
		handler, ok := p.registry.Handler(step)
		if !ok {
			return Reply{}, fmt.Errorf("flow: no handler for step %s", step)
		}

		vr := handler.Validate(ctx, sc, input)
		if vr.Valid {
			if err := handler.Process(ctx, sc, input); err != nil {
				p.logger.Error("step processing failed", "error", err, "step", step)
				goal.Collected.LastError = err.Error()
				return p.promptStep(ctx, sess, step)
			}
			goal.Collected.LastError = ""
			landed, ok := p.ctrl.Navigate(goal)
			if !ok {
				sess.CompleteActiveGoal(StatusCompleted)
				return Reply{Text: "All done! Is there anything else I can help you with?"}, nil
			}
			if err := p.runAutoAdvance(ctx, sess); err != nil {
				p.logger.Error("auto-advance failed", "error", err, "step", landed)
			}
			if sess.ActiveGoal == nil {
				return Reply{Text: "You're all set!"}, nil
			}
			current, ok := sess.ActiveGoal.CurrentStep()
			if !ok {
				sess.CompleteActiveGoal(StatusCompleted)
				return Reply{Text: "You're all set!"}, nil
			}
			return p.promptStep(ctx, sess, current)
		}

		if vr.ErrorMessage != "" {
			reply, err := p.promptStep(ctx, sess, step)
			if err != nil {
				return Reply{}, err
			}
			reply.Text = vr.ErrorMessage + "\n\n" + reply.Text
			return reply, nil
		}

		// Rejected without a message: the input belongs to a later step.
		if _, ok := p.ctrl.AdvanceAndSkip(goal); !ok {
			sess.CompleteActiveGoal(StatusCompleted)
			return Reply{Text: "All done! Is there anything else I can help you with?"}, nil
		}
	}
	return Reply{Text: fallbackReplyText}, nil
}

// runAutoAdvance executes chained no-input steps, bounded so a handler bug
// cannot spin the flow forever.
func (p *Processor) runAutoAdvance(ctx context.Context, sess *Session) error {
	goal := sess.ActiveGoal
	if goal == nil {
		return nil
	}
	sc := &StepContext{Participant: sess.Participant, Goal: goal}

	for i := 0; i < p.autoAdvanceLimit; i++ {
		step, ok := goal.CurrentStep()
		if !ok {
			return nil
		}
		handler, ok := p.registry.Handler(step)
		if !ok {
			return fmt.Errorf("flow: no handler for step %s", step)
		}
		if !handler.AutoAdvance(sc) {
			return nil
		}
		if err := handler.Process(ctx, sc, ""); err != nil {
			return fmt.Errorf("flow: auto-advance %s: %w", step, err)
		}
		if _, ok := p.ctrl.Navigate(goal); !ok {
			return nil
		}
	}
	p.logger.Warn("auto-advance limit reached", "flow", goal.Flow, "limit", p.autoAdvanceLimit)
	return nil
}

// promptStep renders the reply for the step the flow landed on. A booking
// confirmation is terminal: the goal completes after its prompt is built.
func (p *Processor) promptStep(ctx context.Context, sess *Session, step StepID) (Reply, error) {
	goal := sess.ActiveGoal
	handler, ok := p.registry.Handler(step)
	if !ok {
		return Reply{}, fmt.Errorf("flow: no handler for step %s", step)
	}
	sc := &StepContext{Participant: sess.Participant, Goal: goal}
	text, buttons, err := handler.Prompt(ctx, sc)
	if err != nil {
		p.logger.Error("step prompt failed", "error", err, "step", step)
		return Reply{Text: fallbackReplyText}, nil
	}

	reply := Reply{Text: text, Buttons: buttons}
	if step == StepDisplayConfirmedBooking || step == StepEscalateToHuman {
		goal.AppendHistory(RoleAssistant, text)
		sess.CompleteActiveGoal(StatusCompleted)
	}
	return reply, nil
}

func (p *Processor) translateReply(ctx context.Context, participant Participant, reply Reply) Reply {
	lang := strings.TrimSpace(participant.Language)
	if p.oracle == nil || lang == "" || strings.EqualFold(lang, p.defaultLanguage) {
		return reply
	}
	translated, err := p.oracle.Translate(ctx, reply.Text, lang)
	if err != nil || strings.TrimSpace(translated) == "" {
		p.logger.Warn("reply translation failed", "error", err, "language", lang)
		return reply
	}
	reply.Text = translated
	return reply
}

// historyGoal returns the goal that should record the outbound reply. A goal
// completed this turn already holds its closing entry.
func (p *Processor) historyGoal(sess *Session) *UserGoal {
	if sess.ActiveGoal != nil {
		return sess.ActiveGoal
	}
	return nil
}

func (p *Processor) lockFor(participantID string) *sync.Mutex {
	mu, _ := p.locks.LoadOrStore(participantID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (p *Processor) observeTurn(sess *Session, outcome string, started time.Time) {
	if p.observer == nil {
		return
	}
	goalType := ""
	if sess.ActiveGoal != nil {
		goalType = string(sess.ActiveGoal.Type)
	}
	p.observer.ObserveTurn(goalType, outcome, time.Since(started).Seconds())
}

func (p *Processor) observeDecision(action string, fromOracle bool) {
	if p.observer == nil {
		return
	}
	p.observer.ObserveDecision(action, fromOracle)
}

// isSystemPayload reports whether the input was produced by one of the
// assistant's own buttons rather than typed by the participant.
func isSystemPayload(input string) bool {
	if input == "" {
		return false
	}
	if strings.HasPrefix(input, "slot_") || strings.HasPrefix(input, "day_") {
		return true
	}
	if systemPayloads[input] {
		return true
	}
	if _, err := uuid.Parse(input); err == nil {
		return true
	}
	return false
}
