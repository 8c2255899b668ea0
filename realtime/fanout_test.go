package realtime

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func TestFanoutSubjectUsesNormalizedAddress(t *testing.T) {
	f := &Fanout{prefix: "mint"}
	got := f.subject(strings.ToUpper(addr[2:]))
	if got != "mint.notify."+strings.ToLower(addr[2:]) {
		t.Fatalf("unexpected subject %q", got)
	}
	if got := f.subject(addr); got != "mint.notify."+addr {
		t.Fatalf("unexpected subject %q", got)
	}
}

func TestFanoutHandleDeliversLocally(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	exec := &recordingConn{id: "exec", kind: KindExecutor}
	notify := &recordingConn{id: "sse", kind: KindNotify}
	reg.Join(addr, exec)
	reg.Join(addr, notify)

	f := &Fanout{prefix: "mint", local: reg, logger: zap.NewNop()}
	data, _ := json.Marshal(MintCompletedNotice{RewardName: "First Victory", RewardType: "first_win", ObjectID: "0xobj", Success: true})
	f.handle(&nats.Msg{Subject: "mint.notify." + addr, Data: data})

	if exec.count() != 1 || notify.count() != 1 {
		t.Fatalf("expected notice on both connections, got exec=%d sse=%d", exec.count(), notify.count())
	}
	got, ok := notify.sent[0].(MintCompletedNotice)
	if !ok || got.ObjectID != "0xobj" {
		t.Fatalf("unexpected message %#v", notify.sent[0])
	}
}

func TestFanoutHandleDropsMalformed(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	conn := &recordingConn{id: "sse", kind: KindNotify}
	reg.Join(addr, conn)

	f := &Fanout{prefix: "mint", local: reg, logger: zap.NewNop()}
	f.handle(&nats.Msg{Subject: "mint.notify." + addr, Data: []byte("{")})

	if conn.count() != 0 {
		t.Fatalf("expected nothing delivered, got %d", conn.count())
	}
}
