package handlers

import (
	"encoding/json"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestGameResultsRequiresGameServerRole(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"player_id": aliceID, "game_id": "g-1", "outcome": "win"}

	resp, _ := env.do(t, "POST", "/s/games/results", aliceID, body)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("players must not post results, got %d", resp.StatusCode)
	}

	resp, raw := env.do(t, "POST", "/s/games/results", "game-server-1", body, RoleGameServer)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, raw)
	}
	var out struct {
		Progress struct {
			Wins int64 `json:"wins"`
		} `json:"progress"`
		Requests map[string]struct {
			Accepted bool `json:"accepted"`
		} `json:"mint_requests"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Progress.Wins != 1 || !out.Requests["first_win"].Accepted {
		t.Fatalf("unexpected outcome: %s", raw)
	}

	resp, _ = env.do(t, "POST", "/s/games/results", "game-server-1", body, RoleGameServer)
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected 409 for duplicate result, got %d", resp.StatusCode)
	}

	resp, raw = env.do(t, "GET", "/s/players/me/progress", aliceID, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
}
