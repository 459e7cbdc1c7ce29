package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-sam/internal/capability"
	"github.com/loqalabs/loqa-sam/internal/config"
	"github.com/loqalabs/loqa-sam/internal/eventstore"
	"github.com/loqalabs/loqa-sam/internal/sam"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestAPI(t *testing.T) *speechAPI {
	t.Helper()
	cfg := config.Default()
	set, err := LoadTables(cfg.Tables)
	if err != nil {
		t.Fatalf("load tables: %v", err)
	}
	return &speechAPI{
		engine: sam.New(set, sam.DefaultOptions(), nil),
		voices: cfg.Voice,
		logger: newLogger(),
	}
}

func serve(t *testing.T, api *speechAPI) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	api.register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, journal *eventstore.Store) *httptest.Server {
	t.Helper()
	api := newTestAPI(t)
	api.journal = journal
	api.maxText = 64
	return serve(t, api)
}

func post(t *testing.T, srv *httptest.Server, path string, body any, header http.Header) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSpeakReturnsWAV(t *testing.T) {
	srv := newTestServer(t, nil)
	resp := post(t, srv, "/v1/speak", speakRequest{Text: "HELLO"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/wav" {
		t.Fatalf("content type = %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(body) < 44 || string(body[:4]) != "RIFF" || string(body[8:12]) != "WAVE" {
		t.Fatalf("body is not a wav file (%d bytes)", len(body))
	}
	if resp.Header.Get("X-Loqa-Phonemes") == "0" {
		t.Fatal("no phonemes reported")
	}
}

func TestSpeakErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	cases := []struct {
		name string
		body speakRequest
		want int
	}{
		{"unknown voice", speakRequest{Text: "HI", Voice: "nobody"}, http.StatusBadRequest},
		{"bad phoneme", speakRequest{Text: "HEH@LOW", Phonetic: true}, http.StatusUnprocessableEntity},
		{"too long", speakRequest{Text: strings.Repeat("A", 65)}, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := post(t, srv, "/v1/speak", tc.body, nil)
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestPhonemes(t *testing.T) {
	srv := newTestServer(t, nil)
	resp := post(t, srv, "/v1/phonemes", speakRequest{Text: "HELLO"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out phonemesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Transcription != "/HEHLOW" || out.Phonemes == "" {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestVoices(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := srv.Client().Get(srv.URL + "/v1/voices")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var out voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Default != "sam" || len(out.Presets) != len(config.DefaultPresets()) {
		t.Fatalf("unexpected voices: %+v", out)
	}
	if elf := out.Presets["elf"]; elf.Throat != 160 {
		t.Fatalf("elf preset = %+v", elf)
	}
}

func TestSpeakJournals(t *testing.T) {
	store, err := eventstore.Open(context.Background(), config.EventStoreConfig{
		Path:          filepath.Join(t.TempDir(), "journal.db"),
		RetentionMode: "session",
	}, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	srv := newTestServer(t, store)
	header := http.Header{}
	header.Set(sessionHeader, "kitchen")
	if resp := post(t, srv, "/v1/speak", speakRequest{Text: "HELLO", Voice: "elf"}, header); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	resp, err := srv.Client().Get(srv.URL + "/v1/utterances?session=kitchen")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var out []utteranceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].Voice != "elf" || out[0].PCMBytes == 0 {
		t.Fatalf("unexpected journal: %+v", out)
	}
}

func TestReadiness(t *testing.T) {
	r := New(config.Default(), newLogger())
	rec := httptest.NewRecorder()
	r.handleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status before start = %d", rec.Code)
	}
	r.ready.Store(true)
	rec = httptest.NewRecorder()
	r.handleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status when ready = %d", rec.Code)
	}
}

type staticNodes []capability.NodeInfo

func (s staticNodes) Query(filter func(capability.NodeInfo) bool) []capability.NodeInfo {
	var out []capability.NodeInfo
	for _, n := range s {
		if filter(n) {
			out = append(out, n)
		}
	}
	return out
}

func TestNodes(t *testing.T) {
	nodes := staticNodes{
		{ID: "b", Healthy: true, Capabilities: []capability.Capability{{
			Name: "tts.sam", Tier: "fast", Attributes: map[string]string{"voices": "sam,elf"},
		}}},
		{ID: "a", Healthy: true, Capabilities: []capability.Capability{{
			Name: "tts.sam", Tier: "slow", Attributes: map[string]string{"voices": "sam"},
		}}},
		{ID: "c", Healthy: true, Capabilities: []capability.Capability{{Name: "audio.playback"}}},
	}
	api := newTestAPI(t)
	api.nodes = nodes
	srv := serve(t, api)

	cases := []struct {
		query string
		want  []string
	}{
		{"", []string{"a", "b", "c"}},
		{"?voice=elf", []string{"b"}},
		{"?voice=sam&tier=slow", []string{"a"}},
		{"?capability=tts.sam", []string{"a", "b"}},
		{"?tier=medium", nil},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			resp, err := srv.Client().Get(srv.URL + "/v1/nodes" + tc.query)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			defer resp.Body.Close()
			var out []capability.NodeInfo
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			var ids []string
			for _, n := range out {
				ids = append(ids, n.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tc.want, ",") {
				t.Fatalf("nodes = %v, want %v", ids, tc.want)
			}
		})
	}
}

func TestSpeakPhoneticTokenTooLong(t *testing.T) {
	srv := serve(t, newTestAPI(t))
	resp := post(t, srv, "/v1/speak", speakRequest{Text: strings.Repeat("AA", 200), Phonetic: true}, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}
