package session

import (
	"strings"
	"sync"
	"time"

	"github.com/jinzhu/copier"

	"github.com/frontdesk-ai/frontdesk-core/core/events"
)

type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
	TurnRoleSystem    TurnRole = "system"
)

// Turn is one contiguous utterance or response in the conversation log. A
// turn is open while deltas may still arrive and sealed afterwards; sealed
// turns are immutable.
type Turn struct {
	Role TurnRole
	Text string
	// Context carries the retrieved source context attached to an assistant
	// turn at seal time, when a knowledge lookup ran during the response.
	Context    string
	StartedAt  time.Time
	FinishedAt time.Time
	Elapsed    time.Duration
	Sealed     bool
}

// transcript reduces the inbound control-event stream into an append-only
// turn log. At most one assistant turn and one user turn are open at a time;
// in practice user turns arrive already final.
type transcript struct {
	mu sync.Mutex

	turns         []Turn
	openAssistant *Turn

	// lastUserFinishedAt anchors response-latency accounting: an assistant
	// turn's elapsed time is measured from the end of the preceding user turn.
	lastUserFinishedAt time.Time
	pendingContext     string

	now       func() time.Time
	onChanged func()
}

func newTranscript() *transcript {
	return &transcript{now: time.Now}
}

func (t *transcript) setOnChanged(onChanged func()) {
	t.mu.Lock()
	t.onChanged = onChanged
	t.mu.Unlock()
}

// Apply folds one inbound event into the log. Events that reference a turn
// with nothing open create the turn lazily; the remote stream order is
// trusted but not assumed perfectly well-formed.
func (t *transcript) Apply(event events.Event) {
	switch typedEvent := event.(type) {
	case events.UserTranscriptionCompleted:
		t.applyUserTranscription(typedEvent.Transcript)
	case events.AssistantTranscriptDelta:
		t.applyAssistantDelta(typedEvent.Delta)
	case events.AssistantTranscriptDone:
		t.applyAssistantDone(typedEvent.Transcript)
	case events.Error:
		t.AppendSystemNotice(typedEvent.Message)
	}
}

func (t *transcript) applyUserTranscription(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	t.mu.Lock()
	now := t.now()
	t.turns = append(t.turns, Turn{
		Role:       TurnRoleUser,
		Text:       text,
		StartedAt:  now,
		FinishedAt: now,
		Sealed:     true,
	})
	t.lastUserFinishedAt = now
	t.mu.Unlock()
	t.notifyChanged()
}

func (t *transcript) applyAssistantDelta(delta string) {
	t.mu.Lock()
	if t.openAssistant == nil {
		t.openAssistant = &Turn{Role: TurnRoleAssistant, StartedAt: t.now()}
	}
	t.openAssistant.Text += delta
	t.mu.Unlock()
	t.notifyChanged()
}

func (t *transcript) applyAssistantDone(finalText string) {
	t.mu.Lock()
	if t.openAssistant == nil {
		t.openAssistant = &Turn{Role: TurnRoleAssistant, StartedAt: t.now()}
	}

	turn := t.openAssistant
	t.openAssistant = nil

	// The done text is authoritative; deltas were only a preview.
	turn.Text = finalText
	turn.FinishedAt = t.now()
	if !t.lastUserFinishedAt.IsZero() {
		turn.Elapsed = turn.FinishedAt.Sub(t.lastUserFinishedAt)
	} else {
		turn.Elapsed = turn.FinishedAt.Sub(turn.StartedAt)
	}
	turn.Context = t.pendingContext
	t.pendingContext = ""
	turn.Sealed = true
	t.turns = append(t.turns, *turn)
	t.mu.Unlock()
	t.notifyChanged()
}

// AppendSystemNotice seals a synthetic system turn. In-progress user or
// assistant turns are left untouched.
func (t *transcript) AppendSystemNotice(text string) {
	t.mu.Lock()
	now := t.now()
	t.turns = append(t.turns, Turn{
		Role:       TurnRoleSystem,
		Text:       text,
		StartedAt:  now,
		FinishedAt: now,
		Sealed:     true,
	})
	t.mu.Unlock()
	t.notifyChanged()
}

// SetPendingContext stores retrieved source context to be attached to the
// assistant turn sealed next.
func (t *transcript) SetPendingContext(context string) {
	t.mu.Lock()
	t.pendingContext = context
	t.mu.Unlock()
}

// Snapshot returns a deep copy of the log, the open assistant turn last.
func (t *transcript) Snapshot() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := make([]Turn, 0, len(t.turns)+1)
	if err := copier.Copy(&snapshot, t.turns); err != nil {
		snapshot = append(snapshot, t.turns...)
	}
	if t.openAssistant != nil {
		snapshot = append(snapshot, *t.openAssistant)
	}
	return snapshot
}

func (t *transcript) notifyChanged() {
	t.mu.Lock()
	onChanged := t.onChanged
	t.mu.Unlock()
	if onChanged != nil {
		onChanged()
	}
}
