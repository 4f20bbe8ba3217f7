package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/intervoq/intervoq/internal/gateway"
	"github.com/intervoq/intervoq/internal/interview"
	"github.com/intervoq/intervoq/internal/session"
	"github.com/intervoq/intervoq/internal/transcript"
	"github.com/intervoq/intervoq/pkg/provider/stt"
	"github.com/intervoq/intervoq/pkg/types"
)

// sttKeepaliveInterval is how long the STT stream may go without traffic
// before it is pinged. Deepgram drops streams after ~10s of silence; streams
// carrying live audio need no ping at all.
const sttKeepaliveInterval = 2 * time.Second

// trailingFinalsWait gives the STT provider a moment to flush final
// transcripts after the client stops recording.
const trailingFinalsWait = time.Second

// autoSubmitMinChars is the shortest accumulated transcript that speech_end
// will submit on its own. Anything shorter waits for more speech or an
// explicit submit.
const autoSubmitMinChars = 10

// livenessTimeout bounds the ping used to decide whether an already
// registered socket for the same interview is still alive.
const livenessTimeout = 2 * time.Second

// persistTimeout bounds the final session save during socket cleanup.
const persistTimeout = 10 * time.Second

// clientMessage is any JSON frame sent by the candidate client.
type clientMessage struct {
	Type     string      `json:"type"`
	Text     string      `json:"text,omitempty"`
	Code     string      `json:"code,omitempty"`
	Language string      `json:"language,omitempty"`
	Action   string      `json:"action,omitempty"`
	Data     *clientData `json:"data,omitempty"`
}

// clientData is the payload envelope of data-bearing client frames.
type clientData struct {
	// Chunk is base64-encoded PCM for audio_chunk frames.
	Chunk      string `json:"chunk,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`

	// Answer carries the text of a submit_answer frame.
	Answer string `json:"answer,omitempty"`
}

// serverEvent is any JSON frame sent to the candidate client. Audio payloads
// go out as separate binary frames.
type serverEvent struct {
	Type string `json:"type"`

	Text        string                  `json:"text,omitempty"`
	Status      string                  `json:"status,omitempty"`
	Message     string                  `json:"message,omitempty"`
	InterviewID string                  `json:"interview_id,omitempty"`
	Question    *questionPayload        `json:"question,omitempty"`
	Framing     string                  `json:"framing,omitempty"`
	Evaluation  *interview.Evaluation   `json:"evaluation,omitempty"`
	FlowState   interview.FlowState     `json:"flow_state,omitempty"`
	State       *interviewStateSnapshot `json:"interview_state,omitempty"`

	TotalQuestions int `json:"total_questions,omitempty"`
}

// interviewStateSnapshot is the resume payload sent to a reconnecting client
// that has no question outstanding.
type interviewStateSnapshot struct {
	Status         string              `json:"status"`
	CurrentPhase   string              `json:"current_phase"`
	TotalQuestions int                 `json:"total_questions"`
	MaxQuestions   int                 `json:"max_questions"`
	Progress       int                 `json:"progress"`
	FlowState      interview.FlowState `json:"flow_state"`
}

// registry tracks the single live socket per interview.
type registry struct {
	mu    sync.Mutex
	conns map[string]*socket
}

func newRegistry() *registry {
	return &registry{conns: make(map[string]*socket)}
}

func (r *registry) get(interviewID string) *socket {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[interviewID]
}

func (r *registry) put(interviewID string, c *socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[interviewID] = c
}

// remove unregisters c, unless a newer socket already took the slot.
func (r *registry) remove(interviewID string, c *socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[interviewID] == c {
		delete(r.conns, interviewID)
	}
}

// socket is one live WebSocket connection for an interview.
type socket struct {
	srv  *Server
	st   *session.State
	conn *websocket.Conn

	writeMu sync.Mutex

	acc *transcript.Accumulator

	audioMu   sync.Mutex
	lastAudio time.Time

	sttMu      sync.Mutex
	sttSession stt.SessionHandle
	sttStarted bool
}

// handleSocket upgrades /ws/interview/{id} and runs the realtime loop until
// the client disconnects or the interview completes.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "interviewID")
	st, err := s.sessions.Load(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load interview")
		return
	}
	if st == nil {
		s.writeError(w, http.StatusNotFound, "interview not found")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "interview_id", id, "error", err)
		return
	}

	sock := &socket{
		srv:  s,
		st:   st,
		conn: conn,
		acc:  transcript.NewAccumulator(),
	}

	// One live socket per interview. A still-responsive existing connection
	// wins; a dead one is displaced.
	if old := s.conns.get(id); old != nil {
		pctx, cancel := context.WithTimeout(r.Context(), livenessTimeout)
		alive := old.conn.Ping(pctx) == nil
		cancel()
		if alive {
			conn.Close(websocket.StatusPolicyViolation, "Duplicate connection rejected")
			return
		}
		old.conn.Close(websocket.StatusGoingAway, "Connection replaced")
		s.conns.remove(id, old)
	}
	s.conns.put(id, sock)

	s.metrics.ActiveConnections.Add(r.Context(), 1)
	s.logger.Info("interview socket connected", "interview_id", id)

	sock.run(r.Context())
}

func (c *socket) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.cleanup()

	if done := c.greet(ctx); done {
		c.conn.Close(websocket.StatusNormalClosure, "interview finished")
		return
	}

	go c.keepaliveLoop(ctx)

	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		switch typ {
		case websocket.MessageBinary:
			c.handleAudio(ctx, data)
		case websocket.MessageText:
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				c.sendEvent(ctx, serverEvent{Type: "error", Message: "invalid message"})
				continue
			}
			if done := c.handleMessage(ctx, msg); done {
				c.conn.Close(websocket.StatusNormalClosure, "interview finished")
				return
			}
		}
	}
}

// greet runs the connect preamble. Completed interviews are told so and
// closed; everyone else gets a connected event followed by either the
// outstanding question (asked again, with audio) or a resume snapshot.
func (c *socket) greet(ctx context.Context) bool {
	if c.st.Status == session.StatusCompleted {
		c.sendEvent(ctx, serverEvent{Type: "completed", TotalQuestions: c.st.TotalQuestions})
		return true
	}
	c.sendEvent(ctx, serverEvent{
		Type:        "connected",
		Message:     "Connected to interview session",
		InterviewID: c.st.ID,
	})
	if q := c.st.CurrentQuestion; q != nil {
		c.askAgain(ctx, *q)
		return false
	}
	c.sendEvent(ctx, serverEvent{Type: "resume", State: c.snapshotState()})
	return false
}

// askAgain re-delivers a question the client may have missed.
func (c *socket) askAgain(ctx context.Context, q interview.Question) {
	c.speak(ctx, q.Text)
	p := toQuestionPayload(q)
	c.sendEvent(ctx, serverEvent{Type: "question", Question: &p})
	c.setFlow(ctx, interview.FlowAISpeaking)
}

func (c *socket) snapshotState() *interviewStateSnapshot {
	total := c.st.TotalQuestions
	pct := total * 100 / interview.ExpectedQuestionCount
	if pct > 100 {
		pct = 100
	}
	return &interviewStateSnapshot{
		Status:         string(c.st.Status),
		CurrentPhase:   string(c.st.Phase),
		TotalQuestions: total,
		MaxQuestions:   interview.ExpectedQuestionCount,
		Progress:       pct,
		FlowState:      c.st.FlowState(),
	}
}

// setFlow moves the conversation flow state, notifying the client and
// persisting the session only when the state actually changed.
func (c *socket) setFlow(ctx context.Context, f interview.FlowState) {
	if !c.st.SetFlow(f) {
		return
	}
	c.sendEvent(ctx, serverEvent{Type: "flow_state", FlowState: f})
	if err := c.srv.sessions.Save(ctx, c.st); err != nil {
		c.srv.logger.Warn("flow state persist failed", "interview_id", c.st.ID, "error", err)
	}
}

// handleAudio forwards one PCM chunk to the STT stream, opening it lazily on
// the first chunk and reopening it if the provider dropped it.
func (c *socket) handleAudio(ctx context.Context, chunk []byte) {
	c.markAudio(time.Now())
	c.setFlow(ctx, interview.FlowUserSpeaking)
	sess, err := c.ensureSTT(ctx)
	if err != nil {
		c.srv.logger.Error("stt stream open failed", "interview_id", c.st.ID, "error", err)
		c.srv.metrics.RecordProviderError(ctx, "stt", "stream_open")
		c.sendEvent(ctx, serverEvent{Type: "error", Message: "transcription unavailable"})
		return
	}
	if err := sess.SendAudio(chunk); err != nil {
		c.dropSTT(sess)
	}
}

func (c *socket) markAudio(now time.Time) {
	c.audioMu.Lock()
	c.lastAudio = now
	c.audioMu.Unlock()
}

// keepaliveDue reports whether the STT stream has been quiet long enough to
// need a keepalive.
func keepaliveDue(lastAudio, now time.Time) bool {
	return now.Sub(lastAudio) >= sttKeepaliveInterval
}

// keywordBoosts adapts a plain vocabulary list to the stt.StreamConfig
// keyword type, leaving each boost at the provider default.
func keywordBoosts(words []string) []types.KeywordBoost {
	out := make([]types.KeywordBoost, len(words))
	for i, w := range words {
		out[i] = types.KeywordBoost{Keyword: w}
	}
	return out
}

// ensureSTT returns the live STT session, opening one when needed.
func (c *socket) ensureSTT(ctx context.Context) (stt.SessionHandle, error) {
	c.sttMu.Lock()
	defer c.sttMu.Unlock()
	if c.sttSession != nil {
		return c.sttSession, nil
	}
	sess, err := c.srv.stt.StartStream(ctx, stt.StreamConfig{
		SampleRate: 16000,
		Channels:   1,
		Language:   "en",
		Keywords:   keywordBoosts(transcript.DefaultVocabulary),
	})
	if err != nil {
		return nil, err
	}
	if c.sttStarted {
		c.srv.metrics.STTReconnects.Add(ctx, 1)
	}
	c.sttStarted = true
	c.sttSession = sess
	go c.consumeTranscripts(ctx, sess)
	return sess, nil
}

// currentSTT returns the live STT session without opening one.
func (c *socket) currentSTT() stt.SessionHandle {
	c.sttMu.Lock()
	defer c.sttMu.Unlock()
	return c.sttSession
}

// dropSTT forgets a dead STT session so the next audio chunk reopens one.
func (c *socket) dropSTT(sess stt.SessionHandle) {
	c.sttMu.Lock()
	defer c.sttMu.Unlock()
	if c.sttSession == sess {
		_ = sess.Close()
		c.sttSession = nil
	}
}

// consumeTranscripts relays partials and finals until the session closes.
// Finals pass through the vocabulary corrector before being accumulated.
func (c *socket) consumeTranscripts(ctx context.Context, sess stt.SessionHandle) {
	partials, finals := sess.Partials(), sess.Finals()
	for partials != nil || finals != nil {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			c.acc.AddInterim(t.Text)
			c.sendEvent(ctx, serverEvent{Type: "transcript_partial", Text: t.Text})
		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			corrected, _ := c.srv.corrector.Correct(t.Text)
			c.acc.AddFinal(corrected)
			c.sendEvent(ctx, serverEvent{Type: "transcript_final", Text: corrected})
		}
	}
	c.dropSTT(sess)
}

// keepaliveLoop keeps the STT stream warm while the candidate is silent. A
// stream that is receiving audio needs no keepalive, so the tick is skipped
// whenever a chunk arrived within the interval.
func (c *socket) keepaliveLoop(ctx context.Context) {
	ticker := time.NewTicker(sttKeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.audioMu.Lock()
			last := c.lastAudio
			c.audioMu.Unlock()
			if !keepaliveDue(last, now) {
				continue
			}
			sess := c.currentSTT()
			if sess == nil {
				continue
			}
			if err := sess.Keepalive(); err != nil {
				c.dropSTT(sess)
				continue
			}
			c.markAudio(now)
		}
	}
}

// handleMessage dispatches one client JSON frame. It returns true when the
// socket should close because the interview is over.
func (c *socket) handleMessage(ctx context.Context, msg clientMessage) bool {
	switch msg.Type {
	case "ping":
		if sess := c.currentSTT(); sess != nil {
			if err := sess.Keepalive(); err != nil {
				c.dropSTT(sess)
			}
		}
		c.sendEvent(ctx, serverEvent{Type: "pong"})
		return false
	case "audio_chunk":
		if msg.Data == nil || msg.Data.Chunk == "" {
			c.sendEvent(ctx, serverEvent{Type: "error", Message: "missing audio payload"})
			return false
		}
		chunk, err := base64.StdEncoding.DecodeString(msg.Data.Chunk)
		if err != nil {
			c.sendEvent(ctx, serverEvent{Type: "error", Message: "malformed audio payload"})
			return false
		}
		c.handleAudio(ctx, chunk)
		return false
	case "stop_recording":
		return c.finishRecording(ctx)
	case "answer":
		text := msg.Text
		if text == "" {
			text = c.acc.Text()
		}
		c.acc.Reset()
		return c.submit(ctx, interview.Answer{Text: text})
	case "submit_answer":
		text := ""
		if msg.Data != nil {
			text = msg.Data.Answer
		}
		if text == "" {
			text = c.acc.Text()
		}
		c.acc.Reset()
		return c.submit(ctx, interview.Answer{Text: text})
	case "speech_end":
		if text := c.acc.Text(); len(text) >= autoSubmitMinChars {
			c.acc.Reset()
			return c.submit(ctx, interview.Answer{Text: text})
		}
		return false
	case "get_current_question":
		if q := c.st.CurrentQuestion; q != nil {
			c.askAgain(ctx, *q)
		} else {
			c.sendEvent(ctx, serverEvent{Type: "error", Message: "no question is awaiting an answer"})
		}
		return false
	case "code_submission":
		c.acc.Reset()
		return c.submit(ctx, interview.Answer{
			Text:     msg.Text,
			Code:     msg.Code,
			Language: msg.Language,
		})
	case "control":
		if msg.Action == "end" {
			c.end(ctx)
			return true
		}
		return false
	default:
		c.sendEvent(ctx, serverEvent{Type: "error", Message: "unknown message type"})
		return false
	}
}

// finishRecording closes out a voice answer: the STT stream gets a last
// keepalive, trailing finals are given a moment to land, and whatever the
// accumulator then holds becomes the answer.
func (c *socket) finishRecording(ctx context.Context) bool {
	if sess := c.currentSTT(); sess != nil {
		_ = sess.Keepalive()
		select {
		case <-ctx.Done():
			return false
		case <-time.After(trailingFinalsWait):
		}
		c.dropSTT(sess)
	}
	text := c.acc.Text()
	c.acc.Reset()
	if strings.TrimSpace(text) == "" {
		c.sendEvent(ctx, serverEvent{
			Type:    "error",
			Message: "No transcript available. Please try speaking again.",
		})
		c.setFlow(ctx, interview.FlowUserWaiting)
		return false
	}
	return c.submit(ctx, interview.Answer{Text: text})
}

// submit runs one turn and streams the resulting events back to the client.
func (c *socket) submit(ctx context.Context, ans interview.Answer) bool {
	c.setFlow(ctx, interview.FlowAIThinking)
	c.sendEvent(ctx, serverEvent{Type: "status", Status: "ai_thinking"})

	tctx := gateway.WithInterview(ctx, c.st.ID)
	start := time.Now()
	res, err := c.srv.turns.Submit(tctx, c.st, ans)
	if err != nil {
		_, msg := httpStatusFor(err)
		c.srv.logger.Error("turn failed", "interview_id", c.st.ID, "error", err)
		c.sendEvent(ctx, serverEvent{Type: "error", Message: msg})
		c.setFlow(ctx, interview.FlowUserWaiting)
		return false
	}
	c.srv.recordTurn(tctx, c.st.Phase, res, time.Since(start))

	if res.Reprompt {
		c.sendEvent(ctx, serverEvent{
			Type:    "status",
			Status:  "reprompt",
			Message: "Could you elaborate on that a bit more?",
		})
		c.setFlow(ctx, interview.FlowUserWaiting)
		return false
	}

	eval := res.Evaluation
	c.sendEvent(ctx, serverEvent{Type: "evaluation", Evaluation: &eval})

	if res.Completed {
		c.setFlow(ctx, interview.FlowComplete)
		c.sendEvent(ctx, serverEvent{Type: "completed", TotalQuestions: res.TotalQuestions})
		return true
	}

	next := *res.NextQuestion
	c.speak(ctx, res.Framing+" "+next.Text)
	q := toQuestionPayload(next)
	c.sendEvent(ctx, serverEvent{Type: "question", Question: &q, Framing: res.Framing})
	c.setFlow(ctx, interview.FlowAISpeaking)
	return false
}

// end finishes the interview on client request.
func (c *socket) end(ctx context.Context) {
	tctx := gateway.WithInterview(ctx, c.st.ID)
	wasRunning := c.st.Status == session.StatusInProgress
	if _, err := c.srv.turns.End(tctx, c.st); err != nil {
		c.srv.logger.Error("interview end failed", "interview_id", c.st.ID, "error", err)
	}
	if wasRunning {
		c.srv.metrics.ActiveInterviews.Add(ctx, -1)
	}
	if err := c.srv.sessions.ClearCandidateKey(ctx, c.st.ID); err != nil {
		c.srv.logger.Warn("candidate key cleanup failed", "interview_id", c.st.ID, "error", err)
	}
	c.setFlow(ctx, interview.FlowComplete)
	c.sendEvent(ctx, serverEvent{Type: "completed", TotalQuestions: c.st.TotalQuestions})
}

// speak synthesizes text and sends it as one binary frame. Synthesis failure
// degrades to text-only delivery.
func (c *socket) speak(ctx context.Context, text string) {
	if c.srv.tts == nil {
		return
	}
	start := time.Now()
	audio, err := c.srv.tts.Synthesize(ctx, text, c.srv.voice)
	if err != nil {
		c.srv.logger.Warn("tts synthesis failed", "interview_id", c.st.ID, "error", err)
		c.srv.metrics.RecordProviderError(ctx, "tts", "synthesize")
		return
	}
	c.srv.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	c.sendEvent(ctx, serverEvent{Type: "audio"})
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.Write(ctx, websocket.MessageBinary, audio)
}

// sendEvent writes one JSON frame. Writes are serialized; failures are left
// for the read loop to observe as a broken connection.
func (c *socket) sendEvent(ctx context.Context, ev serverEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.Write(ctx, websocket.MessageText, data)
}

// cleanup tears the connection state down: the STT stream is closed, the
// session snapshot is persisted, and the registry slot is released.
func (c *socket) cleanup() {
	c.sttMu.Lock()
	if c.sttSession != nil {
		_ = c.sttSession.Close()
		c.sttSession = nil
	}
	c.sttMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.srv.sessions.Save(ctx, c.st); err != nil {
		c.srv.logger.Error("session persist on disconnect failed",
			"interview_id", c.st.ID, "error", err)
	}

	c.srv.conns.remove(c.st.ID, c)
	c.srv.metrics.ActiveConnections.Add(ctx, -1)
	c.srv.logger.Info("interview socket closed", "interview_id", c.st.ID)
}
