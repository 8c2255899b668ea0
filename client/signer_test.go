package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPSigner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var action MintAction
		if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
			http.Error(w, `{"error":"bad json"}`, http.StatusBadRequest)
			return
		}
		if action.TaskID == "reject" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"user rejected the request"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"objectId": "0xobj-" + action.TaskID})
	}))
	defer srv.Close()

	s := NewHTTPSigner(srv.URL)
	id, err := s.SignAndSubmit(context.Background(), MintAction{TaskID: "t1"})
	if err != nil || id != "0xobj-t1" {
		t.Fatalf("expected object id, got %q err=%v", id, err)
	}

	_, err = s.SignAndSubmit(context.Background(), MintAction{TaskID: "reject"})
	if err == nil || !strings.Contains(err.Error(), "user rejected") {
		t.Fatalf("expected bridge error, got %v", err)
	}
}
