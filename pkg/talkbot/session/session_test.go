package session

import (
	"fmt"
	"sync"
	"testing"
)

func testStore(limit int) *Store {
	return NewStore(Config{
		Models:       DefaultModels(),
		Voices:       DefaultVoices(),
		DefaultModel: "gpt-4.1-mini",
		DefaultVoice: "alena",
		HistoryLimit: limit,
		SystemPrompt: "You are a helpful assistant.",
	}, nil)
}

func TestGetOrCreateDefaults(t *testing.T) {
	st := testStore(10)

	s := st.GetOrCreate(42)
	snap := s.Snapshot()

	if snap.ModelID != "gpt-4.1-mini" {
		t.Errorf("ModelID = %q, want gpt-4.1-mini", snap.ModelID)
	}
	if snap.VoiceID != "alena" {
		t.Errorf("VoiceID = %q, want alena", snap.VoiceID)
	}
	if snap.VoiceMode {
		t.Error("VoiceMode should default to false")
	}
	if snap.Mode != ModeIdle {
		t.Errorf("Mode = %s, want idle", snap.Mode)
	}
	if len(snap.History) != 0 {
		t.Errorf("new session has %d history turns", len(snap.History))
	}

	if again := st.GetOrCreate(42); again != s {
		t.Error("GetOrCreate returned a different session for the same user")
	}
	if st.Count() != 1 {
		t.Errorf("Count = %d, want 1", st.Count())
	}
}

func TestHistoryBoundFIFO(t *testing.T) {
	st := testStore(4)

	// The concrete scenario: limit 4, turns A..E leave [B C D E].
	for _, content := range []string{"A", "B", "C", "D", "E"} {
		st.AppendTurn(1, RoleUser, content)
		if n := len(st.GetOrCreate(1).Snapshot().History); n > 4 {
			t.Fatalf("history grew to %d after appending %q", n, content)
		}
	}

	hist := st.GetOrCreate(1).Snapshot().History
	want := []string{"B", "C", "D", "E"}
	if len(hist) != len(want) {
		t.Fatalf("history length = %d, want %d", len(hist), len(want))
	}
	for i, w := range want {
		if hist[i].Content != w {
			t.Errorf("history[%d] = %q, want %q", i, hist[i].Content, w)
		}
	}
}

func TestAppendBothSidesMayEvictTwice(t *testing.T) {
	st := testStore(2)

	st.AppendTurn(1, RoleUser, "q1")
	st.AppendTurn(1, RoleAssistant, "a1")
	// One full exchange on a tight bound evicts both earlier turns.
	st.AppendTurn(1, RoleUser, "q2")
	st.AppendTurn(1, RoleAssistant, "a2")

	hist := st.GetOrCreate(1).Snapshot().History
	if len(hist) != 2 || hist[0].Content != "q2" || hist[1].Content != "a2" {
		t.Errorf("history = %+v, want [q2 a2]", hist)
	}
}

func TestBuildPrompt(t *testing.T) {
	st := testStore(10)
	s := st.GetOrCreate(7)

	st.AppendTurn(7, RoleUser, "hi")
	st.AppendTurn(7, RoleAssistant, "hello")

	prompt := st.BuildPrompt(s, "how are you?")

	if len(prompt) != 4 {
		t.Fatalf("prompt length = %d, want 4", len(prompt))
	}
	if prompt[0].Role != RoleSystem || prompt[0].Content != "You are a helpful assistant." {
		t.Errorf("prompt[0] = %+v, want system instruction first", prompt[0])
	}
	if prompt[1].Content != "hi" || prompt[2].Content != "hello" {
		t.Errorf("history not preserved in order: %+v", prompt[1:3])
	}
	last := prompt[len(prompt)-1]
	if last.Role != RoleUser || last.Content != "how are you?" {
		t.Errorf("prompt tail = %+v, want the new user message", last)
	}

	// The system instruction must never leak into stored history.
	for _, turn := range s.Snapshot().History {
		if turn.Role == RoleSystem {
			t.Error("system turn found in history")
		}
	}
}

func TestSystemInstructionSurvivesEviction(t *testing.T) {
	st := testStore(3)
	s := st.GetOrCreate(7)

	for i := 0; i < 10; i++ {
		st.AppendTurn(7, RoleUser, fmt.Sprintf("msg-%d", i))
	}

	prompt := st.BuildPrompt(s, "next")
	if prompt[0].Role != RoleSystem {
		t.Error("system instruction missing after evictions")
	}
	if len(prompt) != 5 { // system + 3 history + new message
		t.Errorf("prompt length = %d, want 5", len(prompt))
	}
}

func TestClearHistoryIdempotent(t *testing.T) {
	st := testStore(10)
	s := st.GetOrCreate(3)

	st.AppendTurn(3, RoleUser, "q")
	st.AppendTurn(3, RoleAssistant, "a")

	st.ClearHistory(3)
	st.ClearHistory(3)

	prompt := st.BuildPrompt(s, "fresh start")
	if len(prompt) != 2 {
		t.Fatalf("prompt after clear has %d turns, want 2", len(prompt))
	}
	if prompt[0].Role != RoleSystem || prompt[1].Content != "fresh start" {
		t.Errorf("prompt after clear = %+v", prompt)
	}

	// Clear keeps the rest of the session.
	if snap := s.Snapshot(); snap.ModelID != "gpt-4.1-mini" {
		t.Errorf("ModelID after clear = %q", snap.ModelID)
	}
}

func TestSetModelValidation(t *testing.T) {
	st := testStore(10)
	st.GetOrCreate(5)

	if st.SetModel(5, "nonexistent") {
		t.Error("SetModel accepted an unregistered id")
	}
	if got := st.GetOrCreate(5).Snapshot().ModelID; got != "gpt-4.1-mini" {
		t.Errorf("ModelID changed to %q after rejected selection", got)
	}

	if !st.SetModel(5, "o3") {
		t.Error("SetModel rejected a registered id")
	}
	if got := st.GetOrCreate(5).Snapshot().ModelID; got != "o3" {
		t.Errorf("ModelID = %q, want o3", got)
	}
}

func TestSetVoiceValidation(t *testing.T) {
	st := testStore(10)

	if st.SetVoice(5, "ghost") {
		t.Error("SetVoice accepted an unregistered id")
	}
	if !st.SetVoice(5, "filipp") {
		t.Error("SetVoice rejected a registered id")
	}
	if got := st.GetOrCreate(5).Snapshot().VoiceID; got != "filipp" {
		t.Errorf("VoiceID = %q, want filipp", got)
	}
}

func TestModeTransitions(t *testing.T) {
	st := testStore(10)
	st.SetMode(9, ModeAwaitingImagePrompt)

	if got := st.GetOrCreate(9).Snapshot().Mode; got != ModeAwaitingImagePrompt {
		t.Errorf("Mode = %s, want awaiting_image_prompt", got)
	}

	st.SetMode(9, ModeIdle)
	if got := st.GetOrCreate(9).Snapshot().Mode; got != ModeIdle {
		t.Errorf("Mode = %s, want idle", got)
	}
}

func TestOperationsTotalOverUnknownUsers(t *testing.T) {
	st := testStore(10)

	// None of these may panic or error for a user that was never seen.
	st.ClearHistory(999)
	st.SetVoiceMode(998, true)
	st.SetMode(997, ModeAwaitingImagePrompt)
	st.AppendTurn(996, RoleUser, "hello")

	if st.Count() != 4 {
		t.Errorf("Count = %d, want 4 implicitly created sessions", st.Count())
	}
}

func TestConcurrentAppendsStayBounded(t *testing.T) {
	st := testStore(8)

	var wg sync.WaitGroup
	for u := int64(0); u < 4; u++ {
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(u int64, i int) {
				defer wg.Done()
				st.AppendTurn(u, RoleUser, fmt.Sprintf("m%d", i))
			}(u, i)
		}
	}
	wg.Wait()

	for u := int64(0); u < 4; u++ {
		if n := len(st.GetOrCreate(u).Snapshot().History); n != 8 {
			t.Errorf("user %d history length = %d, want 8", u, n)
		}
	}
}

func TestRegistriesNonEmpty(t *testing.T) {
	st := testStore(10)

	if len(st.Models()) == 0 || len(st.Voices()) == 0 {
		t.Fatal("default registries are empty")
	}
	if _, ok := st.Model("gpt-4.1-mini"); !ok {
		t.Error("default model missing from registry")
	}
	if _, ok := st.Voice("alena"); !ok {
		t.Error("default voice missing from registry")
	}
}
