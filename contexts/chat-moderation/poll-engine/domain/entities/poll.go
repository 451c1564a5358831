package entities

import "time"

type PollKind string

const (
	PollKindBan PollKind = "ban"
)

type Choice string

const (
	ChoiceYes Choice = "yes"
	ChoiceNo  Choice = "no"
)

// ChoiceOrder fixes the evaluation order for winner resolution. Yes is checked
// before no, so if both choices ever reach threshold in the same recount the
// tie-break is deterministic rather than map-iteration luck.
var ChoiceOrder = []Choice{ChoiceYes, ChoiceNo}

func ParseChoice(raw string) (Choice, bool) {
	switch Choice(raw) {
	case ChoiceYes:
		return ChoiceYes, true
	case ChoiceNo:
		return ChoiceNo, true
	default:
		return "", false
	}
}

// Poll is one open question: should the target be removed from the chat.
// At most one poll per (chat, target, kind) may be open at a time; that
// invariant is enforced by the store's uniqueness primitive and defended by
// application-level reconciliation.
type Poll struct {
	PollID           string
	Kind             PollKind
	ChatID           int64
	SourceID         int64
	TargetID         int64
	Ended            bool
	Forced           bool
	TriggerMessageID int64
	PollMessageID    int64 // 0 until the public poll message has been sent
	CreatedAt        time.Time
}

func (p Poll) Open() bool {
	return !p.Ended
}

// Vote is one user's current choice on a poll. Changing the choice mutates
// the row; CastAt keeps the time of the first cast.
type Vote struct {
	VoteID    string
	PollID    string
	VoterID   int64
	Choice    Choice
	CastAt    time.Time
	UpdatedAt time.Time
}

// ResolveWinner returns the first choice in ChoiceOrder whose count meets the
// threshold.
func ResolveWinner(counts map[Choice]int, threshold int) (Choice, bool) {
	if threshold <= 0 {
		return "", false
	}
	for _, choice := range ChoiceOrder {
		if counts[choice] >= threshold {
			return choice, true
		}
	}
	return "", false
}
