package realtime

import (
	"errors"
	"testing"
)

func TestDecodeClientMessageVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"join", `{"type":"join-room","payload":{"playerAddress":"0xabc"}}`, TypeJoinRoom},
		{"leave", `{"type":"leave-room","payload":{"playerAddress":"0xabc"}}`, TypeLeaveRoom},
		{"request", `{"type":"request-mint","payload":{"playerId":"p1","playerAddress":"0xabc","rewardType":"first_win"}}`, TypeRequestMint},
		{"completed", `{"type":"mint-completed","payload":{"taskId":"t1","objectId":"0xobj","success":true}}`, TypeMintCompleted},
		{"failed", `{"type":"mint-completed","payload":{"taskId":"t1","success":false,"errorMessage":"rejected"}}`, TypeMintCompleted},
		{"list", `{"type":"list-pending","payload":{"playerAddress":"0xabc"}}`, TypeListPending},
	}
	for _, tc := range cases {
		msg, err := DecodeClientMessage([]byte(tc.raw))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if msg.ClientType() != tc.want {
			t.Fatalf("%s: got type %s, want %s", tc.name, msg.ClientType(), tc.want)
		}
	}
}

func TestDecodeClientMessageRejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `{nope`, ErrMalformedMessage},
		{"no type", `{"payload":{}}`, ErrMalformedMessage},
		{"unknown", `{"type":"dance","payload":{}}`, ErrUnknownType},
		{"no payload", `{"type":"join-room"}`, ErrMalformedMessage},
		{"missing address", `{"type":"join-room","payload":{}}`, ErrInvalidPayload},
		{"success without object", `{"type":"mint-completed","payload":{"taskId":"t1","success":true}}`, ErrInvalidPayload},
		{"missing task", `{"type":"mint-completed","payload":{"objectId":"0x1","success":true}}`, ErrInvalidPayload},
		{"wrong field type", `{"type":"request-mint","payload":{"playerId":7}}`, ErrMalformedMessage},
	}
	for _, tc := range cases {
		_, err := DecodeClientMessage([]byte(tc.raw))
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestEncodeServerMessageRoundTrip(t *testing.T) {
	data, err := Encode(MintNow{TaskID: "t1", RewardType: "first_win", PlayerID: "p1", PlayerAddress: "0xabc"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	msg, err := DecodeServerMessage(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	mint, ok := msg.(MintNow)
	if !ok {
		t.Fatalf("expected MintNow, got %T", msg)
	}
	if mint.TaskID != "t1" || mint.PlayerAddress != "0xabc" {
		t.Fatalf("unexpected payload: %+v", mint)
	}
}

func TestDecodeServerMintNowRequiresTask(t *testing.T) {
	_, err := DecodeServerMessage([]byte(`{"type":"mint-now","payload":{"playerAddress":"0xabc"}}`))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}
