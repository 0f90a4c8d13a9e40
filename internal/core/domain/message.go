package domain

type MessageType string

const (
	MessageTypeInit   MessageType = "init"
	MessageTypeUpdate MessageType = "update"
	MessageTypeVote   MessageType = "vote"
)

type InitMessage struct {
	Type     MessageType `json:"type"`
	Options  []Option    `json:"options"`
	Votes    Tally       `json:"votes"`
	HasVoted bool        `json:"hasVoted"`
}

func NewInitMessage(s Snapshot) InitMessage {
	return InitMessage{
		Type:     MessageTypeInit,
		Options:  s.Options,
		Votes:    s.Votes,
		HasVoted: s.HasVoted(),
	}
}

// UpdateMessage carries the shared tally; HasVoted belongs to the
// recipient, not to the voter that triggered the update.
type UpdateMessage struct {
	Type     MessageType `json:"type"`
	Votes    Tally       `json:"votes"`
	HasVoted bool        `json:"hasVoted"`
}

func NewUpdateMessage(votes Tally, hasVoted bool) UpdateMessage {
	return UpdateMessage{
		Type:     MessageTypeUpdate,
		Votes:    votes,
		HasVoted: hasVoted,
	}
}

type ClientMessage struct {
	Type   MessageType `json:"type"`
	Option Option      `json:"option"`
}
