package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chess-mint-rewards/realtime"
)

// fakeServer accepts one connection, expects join-room, pushes mint-now and
// forwards the completion report it receives.
func fakeServer(t *testing.T, reports chan<- realtime.ClientMessage) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok" || r.URL.Query().Get("device_id") != "dev" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := realtime.DecodeClientMessage(raw)
			if err != nil {
				t.Errorf("client sent invalid frame: %v", err)
				return
			}
			reports <- msg

			if join, ok := msg.(realtime.JoinRoom); ok {
				for _, out := range []realtime.ServerMessage{
					realtime.RoomJoined{PlayerAddress: join.PlayerAddress},
					realtime.MintNow{TaskID: "t1", RewardType: "first_win", PlayerID: "p1", PlayerAddress: join.PlayerAddress},
				} {
					data, _ := realtime.Encode(out)
					_ = conn.WriteMessage(websocket.TextMessage, data)
				}
			}
		}
	}))
}

func TestSessionExecutesPushedMint(t *testing.T) {
	reports := make(chan realtime.ClientMessage, 8)
	srv := fakeServer(t, reports)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	sess, err := Dial(ctx, Config{ServerURL: wsURL, Token: "tok", DeviceID: "dev", PlayerAddress: playerAddr}, zap.NewNop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	go sess.Run(ctx, &scriptedSigner{}, WithPause(0))

	expect := func() realtime.ClientMessage {
		select {
		case m := <-reports:
			return m
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for client message")
			return nil
		}
	}

	if _, ok := expect().(realtime.JoinRoom); !ok {
		t.Fatalf("first message should be join-room")
	}
	done, ok := expect().(realtime.MintCompletedReport)
	if !ok || done.TaskID != "t1" || !done.Success || done.ObjectID != "obj-t1" {
		t.Fatalf("unexpected completion report: %#v", done)
	}
}

func TestDialRejectsBadCredentials(t *testing.T) {
	srv := fakeServer(t, make(chan realtime.ClientMessage, 1))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	if _, err := Dial(context.Background(), Config{ServerURL: wsURL, Token: "nope", DeviceID: "dev"}, zap.NewNop()); err == nil {
		t.Fatalf("expected dial failure")
	}
}
