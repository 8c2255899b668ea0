package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"chess-mint-rewards/models"
	"chess-mint-rewards/realtime"
	"chess-mint-rewards/services"
)

func frame(t *testing.T, msg realtime.ClientMessage) []byte {
	t.Helper()
	raw, err := realtime.EncodeClient(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return raw
}

func TestSessionJoinRequiresOwnership(t *testing.T) {
	env := newTestEnv(t)
	conn := newRecordingConn("c1")
	s := newSession(aliceID, conn, env.deps)
	ctx := context.Background()

	s.handle(ctx, frame(t, realtime.JoinRoom{PlayerAddress: bobAddress}))
	if msg, ok := conn.last(t).(realtime.ErrorMessage); !ok || msg.Reason != "not_owner" {
		t.Fatalf("expected not_owner error, got %#v", conn.last(t))
	}
	if env.deps.Registry.LiveExecutors(bobAddress) != 0 {
		t.Fatalf("foreign join must not register")
	}

	s.handle(ctx, frame(t, realtime.JoinRoom{PlayerAddress: aliceAddress}))
	joined, ok := conn.last(t).(realtime.RoomJoined)
	if !ok || joined.PlayerAddress != aliceAddress {
		t.Fatalf("expected room-joined, got %#v", conn.last(t))
	}
	if env.deps.Registry.LiveExecutors(aliceAddress) != 1 {
		t.Fatalf("join should register the connection")
	}

	s.close()
	if env.deps.Registry.LiveExecutors(aliceAddress) != 0 {
		t.Fatalf("close should drop the connection")
	}
}

func TestSessionMalformedMessageKeepsGoing(t *testing.T) {
	env := newTestEnv(t)
	conn := newRecordingConn("c1")
	s := newSession(aliceID, conn, env.deps)
	ctx := context.Background()

	s.handle(ctx, []byte(`{"type":"join-room"`))
	if msg, ok := conn.last(t).(realtime.ErrorMessage); !ok || msg.Reason != "malformed_message" {
		t.Fatalf("expected malformed_message, got %#v", conn.last(t))
	}

	s.handle(ctx, frame(t, realtime.RequestMint{PlayerID: aliceID, PlayerAddress: aliceAddress, RewardType: "first_win"}))
	res, ok := conn.last(t).(realtime.RequestResult)
	if !ok || !res.Accepted {
		t.Fatalf("expected accepted request, got %#v", conn.last(t))
	}
}

func TestSessionRequestMintForOtherPlayer(t *testing.T) {
	env := newTestEnv(t)
	conn := newRecordingConn("c1")
	s := newSession(aliceID, conn, env.deps)

	s.handle(context.Background(), frame(t, realtime.RequestMint{PlayerID: bobID, PlayerAddress: bobAddress, RewardType: "first_win"}))
	if msg, ok := conn.last(t).(realtime.ErrorMessage); !ok || msg.Reason != "not_owner" {
		t.Fatalf("expected not_owner, got %#v", conn.last(t))
	}
}

func TestSessionRequestMintToAnotherWallet(t *testing.T) {
	env := newTestEnv(t)
	conn := newRecordingConn("c1")
	s := newSession(aliceID, conn, env.deps)

	s.handle(context.Background(), frame(t, realtime.RequestMint{PlayerID: aliceID, PlayerAddress: bobAddress, RewardType: "first_win"}))
	res, ok := conn.last(t).(realtime.RequestResult)
	if !ok || res.Accepted || res.Reason != string(services.RejectAddressNotOwned) {
		t.Fatalf("expected address_not_owned rejection, got %#v", conn.last(t))
	}

	var count int64
	env.db.Model(&models.MintTask{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no task stored, have %d", count)
	}
}

func TestSessionCompleteAndListPending(t *testing.T) {
	env := newTestEnv(t)
	conn := newRecordingConn("c1")
	s := newSession(aliceID, conn, env.deps)
	ctx := context.Background()

	s.handle(ctx, frame(t, realtime.RequestMint{PlayerID: aliceID, PlayerAddress: aliceAddress, RewardType: "first_win"}))
	taskID := conn.last(t).(realtime.RequestResult).TaskID

	s.handle(ctx, frame(t, realtime.ListPending{PlayerAddress: aliceAddress}))
	list, ok := conn.last(t).(realtime.PendingList)
	if !ok || len(list.Tasks) != 1 || list.Tasks[0].ID != taskID {
		t.Fatalf("expected pending list with the task, got %#v", conn.last(t))
	}

	s.handle(ctx, frame(t, realtime.JoinRoom{PlayerAddress: aliceAddress}))
	s.handle(ctx, frame(t, realtime.MintCompletedReport{TaskID: taskID, ObjectID: "0xobj", Success: true}))

	// The notice goes to the room (this connection) before the ack.
	var sawNotice bool
	conn.mu.Lock()
	for _, m := range conn.sent {
		if n, ok := m.(realtime.MintCompletedNotice); ok && n.ObjectID == "0xobj" {
			sawNotice = true
		}
	}
	conn.mu.Unlock()
	if !sawNotice {
		t.Fatalf("expected mint-completed notice")
	}
	ack, ok := conn.last(t).(realtime.CompletionAck)
	if !ok || !ack.Applied {
		t.Fatalf("expected applied ack, got %#v", conn.last(t))
	}

	s.handle(ctx, frame(t, realtime.MintCompletedReport{TaskID: taskID, ObjectID: "0xobj", Success: true}))
	if ack := conn.last(t).(realtime.CompletionAck); ack.Applied {
		t.Fatalf("second completion should not apply")
	}
}

func TestStreamConnFramesAndBounds(t *testing.T) {
	conn := newStreamConn()
	if err := conn.Send(realtime.MintCompletedNotice{RewardName: "First Victory", RewardType: "first_win", ObjectID: "0x1", Success: true}); err != nil {
		t.Fatalf("send: %v", err)
	}
	got := string(<-conn.events)
	want := "event: mint-completed\ndata: "
	if len(got) < len(want) || got[:len(want)] != want {
		t.Fatalf("unexpected frame %q", got)
	}
	var notice realtime.MintCompletedNotice
	data := got[len(want) : len(got)-2]
	if err := json.Unmarshal([]byte(data), &notice); err != nil || notice.ObjectID != "0x1" {
		t.Fatalf("bad payload %q: %v", data, err)
	}

	for i := 0; i < streamBuffer; i++ {
		_ = conn.Send(realtime.MintCompletedNotice{})
	}
	if err := conn.Send(realtime.MintCompletedNotice{}); err != errStreamFull {
		t.Fatalf("expected errStreamFull, got %v", err)
	}
}
