package ws

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	botmodel "github.com/wanderinn/roleplay-backend/internal/model/bot"
	chatmodel "github.com/wanderinn/roleplay-backend/internal/model/chat"
	"github.com/wanderinn/roleplay-backend/internal/model/persona"
	chatservice "github.com/wanderinn/roleplay-backend/internal/service/chat"
	"github.com/wanderinn/roleplay-backend/internal/service/profile"
	"github.com/wanderinn/roleplay-backend/internal/service/turn"
	"github.com/wanderinn/roleplay-backend/internal/store"
)

type stubStream struct {
	chunks []string
}

func (s *stubStream) Recv() (string, error) {
	if len(s.chunks) == 0 {
		return "", io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func (s *stubStream) Close() {}

type stubBackend struct {
	chunks []string
}

func (b *stubBackend) CreateSession(context.Context, botmodel.Config, persona.Persona, []chatmodel.Message) (turn.Session, error) {
	return "session", nil
}

func (b *stubBackend) CreateRegenSession(context.Context, botmodel.Config, persona.Persona, []chatmodel.Message, string) (turn.Session, error) {
	return "regen-session", nil
}

func (b *stubBackend) StreamReply(context.Context, turn.Session, string) (turn.Stream, error) {
	return &stubStream{chunks: append([]string(nil), b.chunks...)}, nil
}

func dialFixture(t *testing.T) *websocket.Conn {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "ws.db"))
	if err != nil {
		t.Fatalf("store.Open err: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	profiles, err := profile.NewService(st, zerolog.Nop())
	if err != nil {
		t.Fatalf("profile.NewService err: %v", err)
	}
	if _, err := profiles.SaveUserPersona(persona.Persona{Name: "Sam"}); err != nil {
		t.Fatalf("SaveUserPersona err: %v", err)
	}
	b, err := profiles.SaveBot(botmodel.Config{Name: "Aria"})
	if err != nil {
		t.Fatalf("SaveBot err: %v", err)
	}

	chats, err := chatservice.NewService(st, profiles, &stubBackend{chunks: []string{"Hel", "lo"}}, zerolog.Nop())
	if err != nil {
		t.Fatalf("chat.NewService err: %v", err)
	}

	r := chi.NewRouter()
	New(chats, zerolog.Nop()).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/bots/" + b.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame err: %v", err)
	}
	return f
}

func TestSendCommandStreamsTurn(t *testing.T) {
	conn := dialFixture(t)

	if err := conn.WriteJSON(command{Type: "send", Text: "hi"}); err != nil {
		t.Fatalf("write err: %v", err)
	}

	var events []string
	for {
		f := readFrame(t, conn)
		events = append(events, f.Event)
		if f.Event == "end" || f.Event == "error" {
			break
		}
	}

	want := []string{"append", "append", "delta", "delta", "message", "end"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected event sequence: got %v want %v", events, want)
	}
}

func TestUnknownCommandReportsError(t *testing.T) {
	conn := dialFixture(t)

	if err := conn.WriteJSON(command{Type: "teleport"}); err != nil {
		t.Fatalf("write err: %v", err)
	}
	f := readFrame(t, conn)
	if f.Event != "error" || f.Error == "" {
		t.Fatalf("expected error frame, got %+v", f)
	}
}

func TestSendCommandEmptyTextReportsError(t *testing.T) {
	conn := dialFixture(t)

	if err := conn.WriteJSON(command{Type: "send", Text: "   "}); err != nil {
		t.Fatalf("write err: %v", err)
	}
	f := readFrame(t, conn)
	if f.Event != "error" {
		t.Fatalf("expected error frame, got %+v", f)
	}
}
