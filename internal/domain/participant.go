package domain

// Participant is one roster entry as self-reported through presence
type Participant struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Vote        *CardValue `json:"vote"`
	IsSpectator bool       `json:"isSpectator"`
}

// HasVoted reports whether the participant currently holds a vote
func (p Participant) HasVoted() bool {
	return p.Vote != nil
}

// WithVote returns a copy of p holding v (nil clears the vote)
func (p Participant) WithVote(v *CardValue) Participant {
	if v != nil {
		c := *v
		v = &c
	}
	p.Vote = v
	return p
}

// RoomState is the shared state of a room, replaced wholesale on every broadcast
type RoomState struct {
	IsRevealed bool   `json:"isRevealed"`
	Topic      string `json:"topic,omitempty"`
}
