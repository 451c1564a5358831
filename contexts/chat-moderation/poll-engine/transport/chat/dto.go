package chat

// Command is an inbound slash command addressed to the bot.
type Command struct {
	ChatID           int64
	MessageID        int64
	SenderID         int64
	Text             string
	ReplyToMessageID int64
	// Mentions holds the user ids mentioned in the command text, in order of
	// appearance. Only the first one is used as a poll target.
	Mentions []int64
}

// Callback is an inbound button press on one of the bot's messages.
type Callback struct {
	CallbackID string
	ChatID     int64
	MessageID  int64
	SenderID   int64
	Data       string
}

// Update is a single inbound transport event. Exactly one field is set.
type Update struct {
	Command  *Command
	Callback *Callback
}
