package chat

import (
	"errors"
	"testing"

	"bobbot/contexts/chat-moderation/poll-engine/domain/entities"
	domainerrors "bobbot/contexts/chat-moderation/poll-engine/domain/errors"
)

const samplePollID = "5f3a1c2e-9b4d-4f6a-8c1d-0a2b3c4d5e6f"

func TestVoteCallbackRoundTrip(t *testing.T) {
	for _, choice := range []entities.Choice{entities.ChoiceYes, entities.ChoiceNo} {
		data := EncodeVoteCallback(samplePollID, choice)
		decoded, err := DecodeVoteCallback(data)
		if err != nil {
			t.Fatalf("decode %q: %v", data, err)
		}
		if decoded.PollID != samplePollID || decoded.Choice != choice {
			t.Fatalf("round trip mismatch: %+v", decoded)
		}
	}
}

func TestEncodeVoteCallbackWireFormat(t *testing.T) {
	data := EncodeVoteCallback(samplePollID, entities.ChoiceYes)
	want := "poll_vote " + samplePollID + " yes"
	if data != want {
		t.Fatalf("got %q, want %q", data, want)
	}
	if len(data) > 64 {
		t.Fatalf("payload %q exceeds the 64 byte cap", data)
	}
}

func TestDecodeVoteCallbackIsCaseInsensitive(t *testing.T) {
	decoded, err := DecodeVoteCallback("POLL_VOTE " + samplePollID + " YES")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Choice != entities.ChoiceYes {
		t.Fatalf("got choice %q", decoded.Choice)
	}
}

func TestDecodeVoteCallbackRejectsMalformedData(t *testing.T) {
	cases := []string{
		"",
		"poll_vote",
		"poll_vote " + samplePollID,
		"poll_vote not-a-uuid yes",
		"poll_vote " + samplePollID + " maybe",
		"poll_vote " + samplePollID + " yes trailing",
		"other_action " + samplePollID + " yes",
	}
	for _, data := range cases {
		if _, err := DecodeVoteCallback(data); !errors.Is(err, domainerrors.ErrInvalidChoice) {
			t.Fatalf("decode %q: got %v, want ErrInvalidChoice", data, err)
		}
	}
}

func TestIsVoteCallback(t *testing.T) {
	if !IsVoteCallback("poll_vote " + samplePollID + " yes") {
		t.Fatalf("vote payload should match")
	}
	if IsVoteCallback("poll_votes " + samplePollID + " yes") {
		t.Fatalf("prefix must match a whole token")
	}
	if IsVoteCallback("other_action x") {
		t.Fatalf("foreign payloads should not match")
	}
}
