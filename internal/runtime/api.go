package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/loqalabs/loqa-sam/internal/capability"
	"github.com/loqalabs/loqa-sam/internal/config"
	"github.com/loqalabs/loqa-sam/internal/eventstore"
	"github.com/loqalabs/loqa-sam/internal/sam"
	"github.com/loqalabs/loqa-sam/internal/tts"
	"github.com/loqalabs/loqa-sam/internal/wavfile"
)

const sessionHeader = "X-Loqa-Session"

type speakRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice,omitempty"`
	Phonetic bool   `json:"phonetic,omitempty"`
}

type phonemesResponse struct {
	Transcription string `json:"transcription,omitempty"`
	Phonemes      string `json:"phonemes"`
}

type voiceResponse struct {
	Pitch  int  `json:"pitch"`
	Speed  int  `json:"speed"`
	Mouth  int  `json:"mouth"`
	Throat int  `json:"throat"`
	Sing   bool `json:"sing,omitempty"`
}

type voicesResponse struct {
	Default string                   `json:"default"`
	Timing  string                   `json:"timing"`
	Presets map[string]voiceResponse `json:"presets"`
}

type utteranceResponse struct {
	SessionID  string    `json:"session_id"`
	Voice      string    `json:"voice,omitempty"`
	Text       string    `json:"text"`
	Phonetic   bool      `json:"phonetic,omitempty"`
	Phonemes   int       `json:"phonemes"`
	Chunks     int       `json:"chunks"`
	PCMBytes   int       `json:"pcm_bytes"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// nodeLister is the read side of the capability registry.
type nodeLister interface {
	Query(filter func(capability.NodeInfo) bool) []capability.NodeInfo
}

// speechAPI serves synchronous synthesis over HTTP.
type speechAPI struct {
	engine  *sam.Engine
	voices  config.VoiceConfig
	journal *eventstore.Store
	nodes   nodeLister
	maxText int
	logger  *slog.Logger
}

func (a *speechAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/speak", a.handleSpeak)
	mux.HandleFunc("POST /v1/phonemes", a.handlePhonemes)
	mux.HandleFunc("GET /v1/voices", a.handleVoices)
	mux.HandleFunc("GET /v1/utterances", a.handleUtterances)
	mux.HandleFunc("GET /v1/nodes", a.handleNodes)
}

func (a *speechAPI) decode(w http.ResponseWriter, req *http.Request) (speakRequest, bool) {
	var body speakRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return body, false
	}
	if a.maxText > 0 && len(body.Text) > a.maxText {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("text of %d bytes exceeds limit of %d", len(body.Text), a.maxText))
		return body, false
	}
	return body, true
}

func (a *speechAPI) handleSpeak(w http.ResponseWriter, req *http.Request) {
	body, ok := a.decode(w, req)
	if !ok {
		return
	}
	start := time.Now()
	u, err := a.speak(body)
	a.record(req, body, u, time.Since(start), err)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	wav, err := wavfile.Encode(u.PCM, u.SampleRate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("X-Loqa-Phonemes", strconv.Itoa(u.Phonemes))
	w.Header().Set("X-Loqa-Duration-Ms", strconv.FormatInt(u.Duration().Milliseconds(), 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

// speak renders body segment by segment and joins the PCM.
func (a *speechAPI) speak(body speakRequest) (*sam.Utterance, error) {
	opts, err := tts.VoiceOptions(a.voices, body.Voice)
	if err != nil {
		return nil, err
	}
	segments, err := tts.Segments(body.Text, body.Phonetic)
	if err != nil {
		return nil, err
	}
	out := &sam.Utterance{SampleRate: sam.SampleRate}
	for _, segment := range segments {
		u, err := a.engine.SpeakWith([]byte(segment), body.Phonetic, opts)
		if err != nil {
			return nil, err
		}
		for _, b := range u.Breaks {
			out.Breaks = append(out.Breaks, len(out.PCM)+b)
		}
		out.PCM = append(out.PCM, u.PCM...)
		out.Phonemes += u.Phonemes
	}
	return out, nil
}

func (a *speechAPI) record(req *http.Request, body speakRequest, u *sam.Utterance, elapsed time.Duration, err error) {
	session := req.Header.Get(sessionHeader)
	if a.journal == nil || session == "" {
		return
	}
	rec := eventstore.Utterance{
		SessionID: session,
		Voice:     body.Voice,
		Text:      body.Text,
		Phonetic:  body.Phonetic,
		Duration:  elapsed,
	}
	if rec.Voice == "" {
		rec.Voice = a.voices.Default
	}
	if err != nil {
		rec.Error = err.Error()
	} else {
		rec.Phonemes = u.Phonemes
		rec.Chunks = len(u.Breaks)
		rec.PCMBytes = len(u.PCM)
	}
	if jerr := a.journal.RecordUtterance(req.Context(), rec); jerr != nil {
		a.logger.Warn("failed to journal utterance", slog.String("error", jerr.Error()))
	}
}

func (a *speechAPI) handlePhonemes(w http.ResponseWriter, req *http.Request) {
	body, ok := a.decode(w, req)
	if !ok {
		return
	}
	var resp phonemesResponse
	if !body.Phonetic {
		transcription, err := a.engine.Transcribe([]byte(body.Text))
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		resp.Transcription = transcription
	}
	phonemes, err := a.engine.Phonemes([]byte(body.Text), body.Phonetic)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	resp.Phonemes = phonemes
	writeJSON(w, http.StatusOK, resp)
}

func (a *speechAPI) handleVoices(w http.ResponseWriter, _ *http.Request) {
	resp := voicesResponse{
		Default: a.voices.Default,
		Timing:  a.voices.Timing,
		Presets: make(map[string]voiceResponse, len(a.voices.Presets)),
	}
	for name, p := range a.voices.Presets {
		resp.Presets[name] = voiceResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *speechAPI) handleUtterances(w http.ResponseWriter, req *http.Request) {
	limit := 100
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	resp := []utteranceResponse{}
	if a.journal != nil {
		recs, err := a.journal.ListUtterances(req.Context(), req.URL.Query().Get("session"), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		for _, u := range recs {
			resp = append(resp, utteranceResponse{
				SessionID:  u.SessionID,
				Voice:      u.Voice,
				Text:       u.Text,
				Phonetic:   u.Phonetic,
				Phonemes:   u.Phonemes,
				Chunks:     u.Chunks,
				PCMBytes:   u.PCMBytes,
				DurationMS: u.Duration.Milliseconds(),
				Error:      u.Error,
				CreatedAt:  u.CreatedAt,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleNodes lists the nodes known to the registry. The voice, tier and
// capability query parameters narrow the list; all given must match.
func (a *speechAPI) handleNodes(w http.ResponseWriter, req *http.Request) {
	var filters []func(capability.NodeInfo) bool
	q := req.URL.Query()
	if v := q.Get("voice"); v != "" {
		filters = append(filters, capability.WithVoiceFilter(v))
	}
	if v := q.Get("tier"); v != "" {
		filters = append(filters, capability.WithTierFilter(v))
	}
	if v := q.Get("capability"); v != "" {
		filters = append(filters, capability.WithCapabilityFilter(v))
	}

	resp := []capability.NodeInfo{}
	if a.nodes != nil {
		resp = append(resp, a.nodes.Query(func(node capability.NodeInfo) bool {
			for _, match := range filters {
				if !match(node) {
					return false
				}
			}
			return true
		})...)
	}
	sort.Slice(resp, func(i, j int) bool { return resp[i].ID < resp[j].ID })
	writeJSON(w, http.StatusOK, resp)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, tts.ErrUnknownVoice):
		return http.StatusBadRequest
	case errors.Is(err, sam.ErrTokenization), errors.Is(err, sam.ErrTranscription), errors.Is(err, sam.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
