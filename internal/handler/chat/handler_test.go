package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	chatmodel "github.com/atomchat/atom/backend/internal/model/chat"
	"github.com/atomchat/atom/backend/internal/model/persona"
	speechmodel "github.com/atomchat/atom/backend/internal/model/speech"
	"github.com/atomchat/atom/backend/internal/service/ai"
	chatservice "github.com/atomchat/atom/backend/internal/service/chat"
	speechsvc "github.com/atomchat/atom/backend/internal/service/speech"
)

type stubConversation struct {
	reply   string
	sendErr error
	history []chatmodel.Message
}

func (s *stubConversation) Prime(context.Context, string) error { return nil }

func (s *stubConversation) Send(_ context.Context, text string) (ai.Reply, error) {
	if s.sendErr != nil {
		return ai.Reply{}, s.sendErr
	}
	s.history = append(s.history,
		chatmodel.Message{Role: chatmodel.RoleUser, Content: text},
		chatmodel.Message{Role: chatmodel.RoleAssistant, Content: s.reply},
	)
	return ai.SingleReply(s.reply), nil
}

func (s *stubConversation) History() []chatmodel.Message { return s.history }

type stubVision struct {
	calls int
}

func (s *stubVision) Describe(context.Context, string, chatmodel.Image) (ai.Reply, error) {
	s.calls++
	return ai.SingleReply("an image"), nil
}

type stubSpeech struct {
	fail bool
}

func (s *stubSpeech) SynthesizeSpeech(context.Context, *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if s.fail {
		return nil, errors.New("tts down")
	}
	return &speechmodel.TTSResponse{AudioData: []byte("ID3-audio"), Format: "mp3"}, nil
}

type testEnv struct {
	router       *chi.Mux
	chatSvc      *chatservice.Service
	conversation *stubConversation
	vision       *stubVision
	speech       *stubSpeech
}

func setupRouter(t *testing.T) testEnv {
	t.Helper()

	artifacts, err := speechsvc.NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewArtifactStore err: %v", err)
	}

	env := testEnv{
		conversation: &stubConversation{reply: "Hi, I am Atom."},
		vision:       &stubVision{},
		speech:       &stubSpeech{},
	}

	env.chatSvc, err = chatservice.NewService(persona.NewMemoryStore(persona.Seed("")), chatservice.Options{
		NewConversation: func() ai.Conversation { return env.conversation },
		Vision:          env.vision,
		Speech:          env.speech,
		Artifacts:       artifacts,
	})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	t.Cleanup(env.chatSvc.Close)

	env.router = chi.NewRouter()
	New(env.chatSvc, ai.ImageLimits{MaxSide: 64, MaxPixels: 1_000_000}).RegisterRoutes(env.router)
	return env
}

func (env testEnv) createSession(t *testing.T) string {
	t.Helper()
	session, err := env.chatSvc.CreateSession(context.Background(), persona.DefaultID)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	return session.ID()
}

func (env testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	return resp
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode err: %v", err)
	}
	return buf.Bytes()
}

func multipartTurn(t *testing.T, path, text string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if text != "" {
		writer.WriteField("text", text)
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", "photo.png")
		if err != nil {
			t.Fatalf("CreateFormFile err: %v", err)
		}
		part.Write(image)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestCreateSessionValidPersona(t *testing.T) {
	env := setupRouter(t)

	resp := env.do(postJSON("/session", `{"personaId":"atom"}`))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	var session chatmodel.Session
	if err := json.Unmarshal(resp.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if session.ID == "" || session.PersonaID != "atom" || session.HasAudio {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestCreateSessionInvalidPersona(t *testing.T) {
	env := setupRouter(t)

	if resp := env.do(postJSON("/session", `{"personaId":"non-existent"}`)); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCreateSessionMissingPersonaID(t *testing.T) {
	env := setupRouter(t)

	if resp := env.do(postJSON("/session", `{}`)); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestTurnTextReturnsAudioLink(t *testing.T) {
	env := setupRouter(t)
	id := env.createSession(t)

	resp := env.do(postJSON("/session/"+id+"/turn", `{"text":"Hello"}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body turnResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if body.Text != "Hi, I am Atom." || body.Route != chatmodel.RouteConversation {
		t.Fatalf("unexpected body: %+v", body)
	}
	if !body.Audio.Available || body.Audio.URL != "/session/"+id+"/audio" {
		t.Fatalf("unexpected audio status: %+v", body.Audio)
	}

	audio := env.do(httptest.NewRequest(http.MethodGet, body.Audio.URL, nil))
	if audio.Code != http.StatusOK || audio.Header().Get("Content-Type") != "audio/mpeg" {
		t.Fatalf("unexpected audio response: %d %s", audio.Code, audio.Header().Get("Content-Type"))
	}
	if audio.Body.String() != "ID3-audio" {
		t.Fatalf("unexpected audio body %q", audio.Body.String())
	}
}

func TestTurnSynthesisFailureStillReturnsText(t *testing.T) {
	env := setupRouter(t)
	env.speech.fail = true
	id := env.createSession(t)

	resp := env.do(postJSON("/session/"+id+"/turn", `{"text":"Hello"}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body turnResponse
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body.Text == "" || body.Audio.Available || body.Audio.Error == "" {
		t.Fatalf("unexpected body: %+v", body)
	}

	audio := env.do(httptest.NewRequest(http.MethodGet, "/session/"+id+"/audio", nil))
	if audio.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", audio.Code)
	}
}

func TestTurnInferenceFailure(t *testing.T) {
	env := setupRouter(t)
	env.conversation.sendErr = errors.New("upstream 500")
	id := env.createSession(t)

	if resp := env.do(postJSON("/session/"+id+"/turn", `{"text":"Hello"}`)); resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
}

func TestTurnEmptyInput(t *testing.T) {
	env := setupRouter(t)
	id := env.createSession(t)

	resp := env.do(postJSON("/session/"+id+"/turn", `{"text":"  "}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body turnResponse
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body.Route != chatmodel.RouteNone || body.Text != "" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestTurnMultipartImage(t *testing.T) {
	env := setupRouter(t)
	id := env.createSession(t)

	resp := env.do(multipartTurn(t, "/session/"+id+"/turn", "what is it", pngBytes(t, 128, 32)))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body turnResponse
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body.Route != chatmodel.RouteMultimodal || body.Text != "an image" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if env.vision.calls != 1 || len(env.conversation.history) != 0 {
		t.Fatal("image turn should use vision only")
	}
}

func TestTurnUnsupportedImage(t *testing.T) {
	env := setupRouter(t)
	id := env.createSession(t)

	resp := env.do(multipartTurn(t, "/session/"+id+"/turn", "", []byte("GIF89a not really")))
	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.Code)
	}
}

func TestTurnOversizedImage(t *testing.T) {
	env := setupRouter(t)
	id := env.createSession(t)

	resp := env.do(multipartTurn(t, "/session/"+id+"/turn", "", pngBytes(t, 2000, 600)))
	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.Code)
	}
	if env.vision.calls != 0 {
		t.Fatal("oversized image must not reach the vision model")
	}
}

func TestAudioLostArtifact(t *testing.T) {
	env := setupRouter(t)
	id := env.createSession(t)

	env.do(postJSON("/session/"+id+"/turn", `{"text":"Hello"}`))

	session, _ := env.chatSvc.GetSession(context.Background(), id)
	artifact, ok := session.LatestAudio()
	if !ok {
		t.Fatal("expected audio artifact")
	}
	os.Remove(artifact.Path)

	resp := env.do(httptest.NewRequest(http.MethodGet, "/session/"+id+"/audio", nil))
	if resp.Code != http.StatusGone {
		t.Fatalf("expected 410, got %d", resp.Code)
	}
}

func TestGetAndDeleteSession(t *testing.T) {
	env := setupRouter(t)
	id := env.createSession(t)
	env.do(postJSON("/session/"+id+"/turn", `{"text":"Hello"}`))

	resp := env.do(httptest.NewRequest(http.MethodGet, "/session/"+id, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body sessionResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if body.LatestResponse != "Hi, I am Atom." || !body.HasAudio || len(body.History) != 2 {
		t.Fatalf("unexpected session body: %+v", body)
	}

	if resp := env.do(httptest.NewRequest(http.MethodDelete, "/session/"+id, nil)); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if resp := env.do(httptest.NewRequest(http.MethodGet, "/session/"+id, nil)); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	env := setupRouter(t)

	if resp := env.do(postJSON("/session/missing/turn", `{"text":"Hello"}`)); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
