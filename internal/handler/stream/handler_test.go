package stream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
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

type fixture struct {
	router chi.Router
	chats  *chatservice.Service
	bot    botmodel.Config
}

func newFixture(t *testing.T, backend turn.Backend) *fixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "stream.db"))
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

	chats, err := chatservice.NewService(st, profiles, backend, zerolog.Nop())
	if err != nil {
		t.Fatalf("chat.NewService err: %v", err)
	}

	r := chi.NewRouter()
	New(chats, zerolog.Nop()).RegisterRoutes(r)
	return &fixture{router: r, chats: chats, bot: b}
}

// parseFrames decodes every "data: {...}" line of an SSE body.
func parseFrames(t *testing.T, body string) []StreamResponse {
	t.Helper()
	var frames []StreamResponse
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var f StreamResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f); err != nil {
			t.Fatalf("decode frame %q: %v", line, err)
		}
		frames = append(frames, f)
	}
	return frames
}

func eventNames(frames []StreamResponse) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Event)
	}
	return out
}

func TestSendStreamsTurnEvents(t *testing.T) {
	f := newFixture(t, &stubBackend{chunks: []string{"Hel", "lo"}})

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bots/"+f.bot.ID+"/chat?message=hi", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %q", ct)
	}

	frames := parseFrames(t, rec.Body.String())
	want := []string{"append", "append", "delta", "delta", "message", "end"}
	got := eventNames(frames)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected event sequence: got %v want %v", got, want)
	}

	if frames[0].Message == nil || frames[0].Message.Sender != chatmodel.SenderUser {
		t.Fatalf("first append is not the user message: %+v", frames[0])
	}
	if frames[1].Message == nil || !frames[1].Message.Streaming {
		t.Fatalf("second append is not the streaming placeholder: %+v", frames[1])
	}
	if frames[2].Content != "Hel" || frames[3].Content != "Hello" {
		t.Fatalf("deltas not cumulative: %+v", frames[2:4])
	}
	if frames[4].Message == nil || frames[4].Message.Text != "Hello" || frames[4].Message.Streaming {
		t.Fatalf("unexpected final message: %+v", frames[4])
	}
	if !frames[5].Finished {
		t.Fatal("end frame not marked finished")
	}
}

func TestSendMissingMessageParam(t *testing.T) {
	f := newFixture(t, &stubBackend{})

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bots/"+f.bot.ID+"/chat", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSendUnknownBot(t *testing.T) {
	f := newFixture(t, &stubBackend{})

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bots/missing/chat?message=hi", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSendWithoutBackend(t *testing.T) {
	f := newFixture(t, nil)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bots/"+f.bot.ID+"/chat?message=hi", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRegenerateUnknownMessage(t *testing.T) {
	f := newFixture(t, &stubBackend{})

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bots/"+f.bot.ID+"/regenerate/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRegenerateStreamsReplacement(t *testing.T) {
	f := newFixture(t, &stubBackend{chunks: []string{"first"}})

	// Run one turn so there is a bot reply to regenerate.
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bots/"+f.bot.ID+"/chat?message=hi", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("send failed: %d", rec.Code)
	}
	transcript := f.chats.Transcript(f.bot.ID)
	botMsgID := transcript[1].ID

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bots/"+f.bot.ID+"/regenerate/"+botMsgID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	frames := parseFrames(t, rec.Body.String())
	got := eventNames(frames)
	// Reset delta, content delta, final message, end.
	want := []string{"delta", "delta", "message", "end"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected event sequence: got %v want %v", got, want)
	}
	if frames[0].Content != "" || frames[0].MessageID != botMsgID {
		t.Fatalf("first delta is not the reset: %+v", frames[0])
	}
	if frames[2].Message == nil || frames[2].Message.ID != botMsgID {
		t.Fatal("regenerated message lost its identifier")
	}
}
