package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/domain/repositories"
	"github.com/satriahrh/sayword/internal/game"
	"github.com/satriahrh/sayword/internal/recognition"
	"github.com/satriahrh/sayword/internal/wordlist"
)

const (
	providerTimeout = 15 * time.Second
	recordTimeout   = 5 * time.Second
)

// WriteData is one frame queued for the peer
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the game. It
// owns the player's game controller and listening session.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound messages. Never closed; done signals
	// shutdown instead so late producers cannot panic.
	send      chan WriteData
	done      chan struct{}
	closeOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	playerID  string
	logger    *zap.Logger
	validator *MessageValidator

	recog *recognition.Session

	// advanced and total number advance messages of the current game. They
	// are touched from emitter callbacks, which run under the controller
	// lock, so they cannot share mu.
	advanced atomic.Int32
	total    atomic.Int32

	mu         sync.Mutex
	game       *game.Controller
	difficulty entities.Difficulty
	handle     recognition.Handle
	stream     repositories.RecognitionStream
}

func newClient(hub *Hub, conn *websocket.Conn, playerID string, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, sendBufferSize),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		playerID:  playerID,
		logger:    logger,
		validator: NewMessageValidator(),
	}

	opts := []recognition.Option{recognition.WithClock(hub.deps.Clock)}
	if hub.deps.SilenceTimeout > 0 {
		opts = append(opts, recognition.WithSilenceTimeout(hub.deps.SilenceTimeout))
	}
	c.recog = recognition.NewSession(c, logger, opts...)
	return c
}

// close stops the pumps. Safe to call more than once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
	})
}

// readPump pumps messages from the websocket connection to the game
func (c *Client) readPump() {
	defer func() {
		c.teardown()
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps queued frames to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			c.flush()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) write(message WriteData) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(message.Type, message.Payload)
}

// flush writes whatever is still queued so the last messages before a close
// reach the peer
func (c *Client) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// teardown ends the listening session and stores an unfinished game
func (c *Client) teardown() {
	c.recog.Stop()

	c.mu.Lock()
	g := c.game
	c.mu.Unlock()

	if g != nil {
		g.Cancel()
		if result := g.Abandon(); result != nil {
			c.recordResult(result)
		}
	}
	c.close()
}

// enqueue queues a frame without blocking. Frames are dropped when the
// buffer is full or the client is closing.
func (c *Client) enqueue(data WriteData) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		c.logger.Warn("Send buffer full, dropping message")
		return false
	}
}

// enqueueWait queues a frame, waiting for buffer space
func (c *Client) enqueueWait(ctx context.Context, data WriteData) bool {
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (c *Client) enqueueJSON(message interface{}) bool {
	payload, err := json.Marshal(message)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return false
	}
	return c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

func (c *Client) sendError(code, message string) {
	c.enqueueJSON(CreateErrorMessage(code, message))
}

// processMessage dispatches one JSON message from the player
func (c *Client) processMessage(message []byte) {
	msg, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.sendError(ErrorCodeInvalidMessage, err.Error())
		return
	}

	switch m := msg.(type) {
	case *GameStartMessage:
		c.handleGameStart(m)
	case *ListeningStartMessage:
		c.handleListeningStart(m)
	case *TranscriptMessage:
		c.handleTranscript(m)
	case *RecognitionErrorMessage:
		c.handleRecognitionError(m)
	case *PingMessage:
		c.enqueueJSON(CreatePongMessage(m.Data))
	case *ControlMessage:
		switch m.Type {
		case MessageTypeListeningEnd:
			c.handleListeningEnd()
		case MessageTypeListeningStop:
			c.handleListeningStop()
		case MessageTypeSkip:
			c.handleSkip()
		case MessageTypeHintRequest:
			c.handleHintRequest()
		case MessageTypePronounceRequest:
			c.handlePronounceRequest()
		}
	}
}

func (c *Client) currentGame() *game.Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.game
}

func (c *Client) currentHandle() (recognition.Handle, repositories.RecognitionStream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle, c.stream
}

func (c *Client) newController(words []entities.Word) *game.Controller {
	return game.NewController(words, c.hub.deps.Evaluator, c, c.logger,
		game.WithClock(c.hub.deps.Clock),
		game.WithSettleDelay(c.hub.deps.SettleDelay),
		game.WithPlayer(c.playerID),
		game.OnFinish(c.recordResult),
	)
}

func (c *Client) handleGameStart(msg *GameStartMessage) {
	words := wordlist.FilterByDifficulty(c.hub.deps.Words, msg.Difficulty)
	if len(words) == 0 {
		c.sendError(ErrorCodeNoGame, "There are no words for that difficulty.")
		return
	}

	c.recog.Stop()

	c.mu.Lock()
	previous := c.game
	if previous == nil || c.difficulty != msg.Difficulty {
		c.game = c.newController(words)
		c.difficulty = msg.Difficulty
	}
	g := c.game
	c.handle = recognition.Handle{}
	c.stream = nil
	c.mu.Unlock()

	if previous != nil {
		previous.Cancel()
		if result := previous.Abandon(); result != nil {
			c.recordResult(result)
		}
	}

	c.total.Store(int32(len(words)))
	c.advanced.Store(0)
	if err := g.Start(); err != nil {
		c.logger.Error("Failed to start game", zap.Error(err))
		c.sendError(ErrorCodeInternal, "The game could not be started.")
	}
}

func (c *Client) audioConfig(msg *ListeningStartMessage) repositories.AudioConfig {
	cfg := c.hub.deps.Audio
	if msg.SampleRate > 0 {
		cfg.SampleRate = msg.SampleRate
	}
	if msg.Encoding != "" {
		cfg.Encoding = msg.Encoding
	}
	if msg.Language != "" {
		cfg.Language = msg.Language
	}
	return cfg
}

func (c *Client) handleListeningStart(msg *ListeningStartMessage) {
	g := c.currentGame()
	if g == nil {
		c.sendError(ErrorCodeNoGame, "Start a game first.")
		return
	}
	snap := g.Snapshot()
	if snap.Current == nil {
		c.sendError(ErrorCodeNoGame, "There is no word to say.")
		return
	}
	// a session finalized now would be dropped by the adjudication guard
	if snap.Processing {
		c.sendError(ErrorCodeBusy, "Still checking the last answer. Try again in a moment.")
		return
	}
	if c.recog.Active() {
		c.sendError(ErrorCodeAlreadyListening, "Already listening.")
		return
	}

	var capture recognition.Capture
	var stream repositories.RecognitionStream
	if msg.Source == SourceCloud {
		if c.hub.deps.STT == nil {
			c.sendError(ErrorCodeUnavailable, "Server speech recognition is not available.")
			return
		}

		start := time.Now()
		var err error
		stream, err = c.hub.deps.STT.InitRecognitionStreaming(c.ctx, c.audioConfig(msg))
		c.recordProvider("stt", "stream_open", err, start)
		if err != nil {
			c.logger.Error("Failed to open recognition stream", zap.Error(err))
			kind := recognition.KindFromError(err)
			c.hub.deps.Metrics.RecordRecognitionError(c.ctx, string(kind))
			c.sendError(string(kind), kind.Message())
			return
		}
		capture = stream
	}

	handle, ok := c.recog.Start(capture)
	if !ok {
		if stream != nil {
			stream.Close()
		}
		c.sendError(ErrorCodeAlreadyListening, "Already listening.")
		return
	}

	c.mu.Lock()
	c.handle = handle
	c.stream = stream
	c.mu.Unlock()

	g.SetListening(true)
	if stream != nil {
		go c.pumpResults(handle, stream)
	}

	c.logger.Debug("Listening started", zap.String("source", msg.Source))
}

// pumpResults feeds recognizer events into the listening session. A stream
// that ends without a final result finalizes on whatever was buffered.
func (c *Client) pumpResults(handle recognition.Handle, stream repositories.RecognitionStream) {
	for result := range stream.Results() {
		switch {
		case result.Err != nil:
			handle.Fail(recognition.KindFromError(result.Err))
		case result.IsFinal:
			handle.Final(result.Transcript(), result.Alternatives)
		default:
			handle.Interim(result.Transcript(), result.Alternatives)
		}
	}
	handle.Final("", nil)
}

func (c *Client) processAudioChunk(data []byte) {
	_, stream := c.currentHandle()
	if stream == nil || !c.recog.Active() {
		c.logger.Debug("Audio chunk without an active cloud session", zap.Int("size", len(data)))
		return
	}
	if err := stream.Stream(data); err != nil {
		c.logger.Warn("Failed to stream audio data", zap.Error(err))
	}
}

func (c *Client) handleTranscript(msg *TranscriptMessage) {
	handle, _ := c.currentHandle()

	var accepted bool
	if msg.Type == MessageTypeFinalTranscript {
		accepted = handle.Final(msg.Transcript, msg.Alternatives)
	} else {
		accepted = handle.Interim(msg.Transcript, msg.Alternatives)
	}
	if !accepted {
		c.logger.Debug("Transcript dropped",
			zap.String("type", string(msg.Type)),
			zap.String("transcript", msg.Transcript))
	}
}

func (c *Client) handleRecognitionError(msg *RecognitionErrorMessage) {
	handle, _ := c.currentHandle()
	if !handle.Fail(recognition.ParseErrorKind(msg.Error)) {
		c.logger.Debug("Recognition error outside a listening session", zap.String("error", msg.Error))
	}
}

func (c *Client) handleListeningEnd() {
	handle, stream := c.currentHandle()
	if !c.recog.Active() {
		c.sendError(ErrorCodeNotListening, "Not listening.")
		return
	}

	if stream != nil {
		if err := stream.Finish(); err != nil {
			handle.Fail(recognition.KindFromError(err))
		}
		return
	}
	handle.Final("", nil)
}

// handleListeningStop abandons the live session. The buffered interim is
// discarded and no attempt is used.
func (c *Client) handleListeningStop() {
	stopped := c.recog.Stop()

	c.mu.Lock()
	c.handle = recognition.Handle{}
	c.stream = nil
	c.mu.Unlock()

	if g := c.currentGame(); g != nil {
		g.Cancel()
	}
	if stopped {
		c.EmitStatus("stopped")
	}
}

func (c *Client) handleSkip() {
	g := c.currentGame()
	if g == nil {
		c.sendError(ErrorCodeNoGame, "Start a game first.")
		return
	}

	c.recog.Stop()
	g.SetListening(false)
	if err := g.Skip(); err != nil {
		c.sendError(ErrorCodeNoGame, "There is no word to skip.")
	}
}

func (c *Client) handleHintRequest() {
	word, ok := c.currentWord()
	if !ok {
		return
	}
	if c.hub.deps.Hints == nil {
		c.sendError(ErrorCodeUnavailable, "Hints are not available.")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, providerTimeout)
		defer cancel()

		hint, err := c.hub.deps.Hints.Hint(ctx, word)
		if err != nil {
			c.logger.Warn("Failed to get hint", zap.String("word", word.Text), zap.Error(err))
			c.sendError(ErrorCodeUnavailable, "No hint right now.")
			return
		}
		c.enqueueJSON(&HintMessage{BaseMessage: newBase(MessageTypeHint), Word: word.Text, Hint: hint})
	}()
}

func (c *Client) handlePronounceRequest() {
	word, ok := c.currentWord()
	if !ok {
		return
	}
	if c.hub.deps.TTS == nil {
		c.sendError(ErrorCodeUnavailable, "Pronunciation is not available.")
		return
	}

	go c.pronounce(word)
}

// pronounce streams synthesized audio of word bracketed by speaking_start
// and speaking_end
func (c *Client) pronounce(word entities.Word) {
	ctx, cancel := context.WithTimeout(c.ctx, providerTimeout)
	defer cancel()

	start := time.Now()
	audio, err := c.hub.deps.TTS.ConvertTextToSpeech(ctx, word.Text)
	c.recordProvider("tts", "speech", err, start)
	if err != nil {
		c.logger.Error("Failed to convert text to speech", zap.String("word", word.Text), zap.Error(err))
		c.sendError(ErrorCodeUnavailable, "Pronunciation is not available right now.")
		return
	}

	c.enqueueJSON(&SpeakingMessage{BaseMessage: newBase(MessageTypeSpeakingStart), Word: word.Text})
	chunks := 0
	for chunk := range audio {
		if !c.enqueueWait(ctx, WriteData{Type: websocket.BinaryMessage, Payload: chunk}) {
			// drain so the producer goroutine can exit
			for range audio {
			}
			return
		}
		chunks++
	}
	c.enqueueJSON(&SpeakingMessage{BaseMessage: newBase(MessageTypeSpeakingEnd), Word: word.Text})

	c.logger.Debug("Pronunciation sent", zap.String("word", word.Text), zap.Int("chunks", chunks))
}

func (c *Client) currentWord() (entities.Word, bool) {
	g := c.currentGame()
	if g == nil {
		c.sendError(ErrorCodeNoGame, "Start a game first.")
		return entities.Word{}, false
	}
	word, err := g.Current()
	if err != nil {
		c.sendError(ErrorCodeNoGame, "There is no current word.")
		return entities.Word{}, false
	}
	return word, true
}

func (c *Client) recordResult(result *entities.GameResult) {
	if c.hub.deps.Results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := c.hub.deps.Results.Record(ctx, result); err != nil {
		c.logger.Error("Failed to record game result", zap.String("gameID", result.ID), zap.Error(err))
	}
}

func (c *Client) recordProvider(provider, kind string, err error, start time.Time) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.hub.deps.Metrics.RecordProviderRequest(c.ctx, provider, kind, status, time.Since(start).Seconds())
}

// OnUtterance adjudicates a finalized listening session
func (c *Client) OnUtterance(u recognition.Utterance) {
	g := c.currentGame()
	if g == nil {
		return
	}
	if !g.Adjudicate(u) {
		c.hub.deps.Metrics.DuplicateResults.Add(c.ctx, 1)
	}
}

// OnAborted reports a failed listening session to the player
func (c *Client) OnAborted(kind recognition.ErrorKind) {
	c.hub.deps.Metrics.RecordRecognitionError(c.ctx, string(kind))
	if g := c.currentGame(); g != nil {
		g.OnAborted(kind)
		return
	}
	c.EmitError(string(kind), kind.Message())
}

// EmitAdjudication implements game.Emitter
func (c *Client) EmitAdjudication(entry entities.GameLogEntry) {
	verdict := "incorrect"
	switch {
	case entry.IsCorrect:
		verdict = "correct"
	case entry.IsSkip():
		verdict = "skipped"
	}
	c.hub.deps.Metrics.RecordAdjudication(c.ctx, verdict)
	c.enqueueJSON(&AdjudicationMessage{BaseMessage: newBase(MessageTypeAdjudication), Entry: entry})
}

// EmitAdvance implements game.Emitter
func (c *Client) EmitAdvance(word *entities.Word) {
	index := c.advanced.Add(1) - 1
	c.enqueueJSON(&AdvanceMessage{
		BaseMessage: newBase(MessageTypeAdvance),
		Word:        word,
		Index:       int(index),
		Total:       int(c.total.Load()),
	})
}

// EmitGameOver implements game.Emitter
func (c *Client) EmitGameOver(log []entities.GameLogEntry) {
	total := int(c.total.Load())
	score := entities.NewGameResult("", c.playerID, time.Time{}, total, log)
	c.enqueueJSON(&GameOverMessage{
		BaseMessage: newBase(MessageTypeGameOver),
		Log:         log,
		Correct:     score.Correct,
		FirstTry:    score.FirstTry,
		Total:       total,
	})
}

// EmitStatus implements game.Emitter
func (c *Client) EmitStatus(status string) {
	c.enqueueJSON(CreateStatusMessage(status))
}

// EmitError implements game.Emitter
func (c *Client) EmitError(code, message string) {
	c.sendError(code, message)
}
