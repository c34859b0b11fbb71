package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestGetAbsentKeyReturnsNil(t *testing.T) {
	st := openTestStore(t)

	got, err := st.Get(KeyUserPersona)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for absent key, got %q", got)
	}
}

func TestSetThenGetRoundTrip(t *testing.T) {
	st := openTestStore(t)

	if err := st.Set(KeyAppSettings, []byte(`{"accentColor":"lime"}`)); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	got, err := st.Get(KeyAppSettings)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if string(got) != `{"accentColor":"lime"}` {
		t.Fatalf("unexpected blob: %q", got)
	}
}

func TestSetReplacesWholesale(t *testing.T) {
	st := openTestStore(t)

	if err := st.Set(KeyBots, []byte(`["a","b"]`)); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	if err := st.Set(KeyBots, []byte(`["c"]`)); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	got, err := st.Get(KeyBots)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if string(got) != `["c"]` {
		t.Fatalf("expected replaced blob, got %q", got)
	}
}

func TestLoadJSONAbsentKey(t *testing.T) {
	st := openTestStore(t)

	var out map[string]string
	found, err := st.LoadJSON(KeyUserPersona, &out)
	if err != nil {
		t.Fatalf("LoadJSON err: %v", err)
	}
	if found {
		t.Fatal("reported absent key as present")
	}
}

func TestLoadJSONMalformedBlobTreatedAsAbsent(t *testing.T) {
	st := openTestStore(t)

	if err := st.Set(KeyUserPersona, []byte(`{not json`)); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	var out map[string]string
	found, err := st.LoadJSON(KeyUserPersona, &out)
	if err != nil {
		t.Fatalf("LoadJSON err: %v", err)
	}
	if found {
		t.Fatal("malformed blob reported as present")
	}
}

func TestSaveJSONLoadJSONRoundTrip(t *testing.T) {
	st := openTestStore(t)

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := st.SaveJSON(KeyChatHistories, record{Name: "aria", Count: 2}); err != nil {
		t.Fatalf("SaveJSON err: %v", err)
	}

	var got record
	found, err := st.LoadJSON(KeyChatHistories, &got)
	if err != nil {
		t.Fatalf("LoadJSON err: %v", err)
	}
	if !found {
		t.Fatal("saved record not found")
	}
	if got.Name != "aria" || got.Count != 2 {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	if err := st.Set(KeyAppSettings, []byte(`{}`)); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close err: %v", err)
	}

	st2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen err: %v", err)
	}
	defer func() { _ = st2.Close() }()

	got, err := st2.Get(KeyAppSettings)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if string(got) != `{}` {
		t.Fatalf("record lost across reopen: %q", got)
	}
}
