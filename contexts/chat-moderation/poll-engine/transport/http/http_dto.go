package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PollDTO struct {
	PollID           string `json:"poll_id"`
	Kind             string `json:"kind"`
	ChatID           int64  `json:"chat_id"`
	SourceID         int64  `json:"source_id"`
	TargetID         int64  `json:"target_id"`
	Ended            bool   `json:"ended"`
	Forced           bool   `json:"forced"`
	TriggerMessageID int64  `json:"trigger_message_id,omitempty"`
	PollMessageID    int64  `json:"poll_message_id,omitempty"`
	CreatedAt        string `json:"created_at"`
}

type GetPollResponse struct {
	Status string `json:"status"`
	Data   struct {
		Poll      PollDTO        `json:"poll"`
		Counts    map[string]int `json:"counts"`
		Winner    string         `json:"winner,omitempty"`
		HasWinner bool           `json:"has_winner"`
	} `json:"data"`
}

type ListVotersResponse struct {
	Status string `json:"status"`
	Data   struct {
		PollID string  `json:"poll_id"`
		Choice string  `json:"choice"`
		Voters []int64 `json:"voters"`
		Count  int     `json:"count"`
	} `json:"data"`
}

type ListOpenPollsResponse struct {
	Status string `json:"status"`
	Data   struct {
		ChatID int64     `json:"chat_id"`
		Polls  []PollDTO `json:"polls"`
	} `json:"data"`
}
