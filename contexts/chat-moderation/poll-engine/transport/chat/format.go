package chat

import (
	"fmt"
	"strconv"
	"strings"

	"bobbot/contexts/chat-moderation/poll-engine/domain/entities"
	"bobbot/contexts/chat-moderation/poll-engine/ports"
)

// OpenPollView is the rendered form of a poll still collecting votes.
type OpenPollView struct {
	Text    string
	Buttons []ports.Button
}

// FormatOpenPoll renders the poll message with live tallies on the vote
// buttons. sourceLink and targetLink are display links resolved by the
// caller.
func FormatOpenPoll(
	poll entities.Poll,
	sourceLink string,
	targetLink string,
	counts map[entities.Choice]int,
	threshold int,
) OpenPollView {
	lines := []string{
		fmt.Sprintf("%s would like to kick %s.", sourceLink, targetLink),
		"Do you agree?",
	}
	buttons := []ports.Button{
		{
			Label: fmt.Sprintf("Yes: %d/%d", counts[entities.ChoiceYes], threshold),
			Data:  EncodeVoteCallback(poll.PollID, entities.ChoiceYes),
		},
		{
			Label: fmt.Sprintf("No: %d/%d", counts[entities.ChoiceNo], threshold),
			Data:  EncodeVoteCallback(poll.PollID, entities.ChoiceNo),
		},
	}
	return OpenPollView{
		Text:    strings.Join(lines, "\n"),
		Buttons: buttons,
	}
}

// FormatEndedPoll renders the terminal message for a decided poll, listing
// the winning side's voters in first-cast order.
func FormatEndedPoll(targetLink string, winner entities.Choice, voterLinks []string) string {
	kicked := winner == entities.ChoiceYes
	verdict := "not "
	side := "no"
	if kicked {
		verdict = ""
		side = "yes"
	}
	lines := []string{
		fmt.Sprintf("The community has decided that %s should %sbe banned.", targetLink, verdict),
		fmt.Sprintf("The following users voted %s: %s", side, strings.Join(voterLinks, ", ")),
	}
	return strings.Join(lines, "\n")
}

// FormatEndedWithoutWinner covers the anomaly where a poll ended with
// neither choice at threshold.
func FormatEndedWithoutWinner(targetLink string) string {
	lines := []string{
		fmt.Sprintf("Something went wrong, so we've done nothing to %s.", targetLink),
		"Please try again.",
	}
	return strings.Join(lines, "\n")
}

// PermissionsAdvisory builds the note appended to a result message when the
// bot found itself short on chat permissions. Empty when nothing is missing.
func PermissionsAdvisory(needDelete, needBan bool) string {
	if !needDelete && !needBan {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n(I require ")
	if needDelete {
		b.WriteString("delete ")
	}
	if needDelete && needBan {
		b.WriteString("and ")
	}
	if needBan {
		b.WriteString("ban ")
	}
	b.WriteString("permissions to work properly!)")
	return b.String()
}

// FormatExistingPoll points a repeat initiator at the already-running poll.
// votedYes is set when their initiation was converted into a yes vote.
func FormatExistingPoll(pollLink string, votedYes bool) string {
	if votedYes {
		return fmt.Sprintf(`There's already an active poll <a href="%s">here</a>. Your vote for "Yes" has been added.`, pollLink)
	}
	return fmt.Sprintf(`There's already an active poll <a href="%s">here</a>.`, pollLink)
}

func FormatLimitReached(window string) string {
	return fmt.Sprintf("Too many ban attempts in the past %s. Please contact an admin instead.", window)
}

const (
	RefusalText          = "I'm sorry Dave, I'm afraid I can't do that."
	SomethingWentWrong   = "Oops, something went wrong!"
	ReplyInsteadText     = "Try replying to a message with /bob instead!"
	SameChoiceAnswer     = "You can't vote for the same choice multiple times."
	PollEndedAnswer      = "This poll has already ended."
	NoMentionText        = "It doesn't seem like you've mentioned a valid user. Try again."
	NoMentionOnReplyText = "It doesn't seem like you've mentioned a valid user. Try again, or reply to a message with just /bob instead."
)

// VotedAnswer is the toast shown after a successful button vote.
func VotedAnswer(choice entities.Choice) string {
	label := string(choice)
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	return fmt.Sprintf("You've voted for %s!", label)
}

// MessageLink builds a deep link to a message in a supergroup. Chat ids on
// the wire carry a -100 prefix that the link format omits.
func MessageLink(chatID int64, messageID int64) string {
	raw := strconv.FormatInt(chatID, 10)
	raw = strings.TrimPrefix(raw, "-100")
	raw = strings.TrimPrefix(raw, "-")
	return fmt.Sprintf("https://t.me/c/%s/%d", raw, messageID)
}
