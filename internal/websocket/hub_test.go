package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/sayword/adapters/llm"
	"github.com/satriahrh/sayword/adapters/memory"
	"github.com/satriahrh/sayword/adapters/stt"
	"github.com/satriahrh/sayword/adapters/tts"
	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/domain/repositories"
	"github.com/satriahrh/sayword/internal/homophone"
	"github.com/satriahrh/sayword/internal/match"
	"github.com/satriahrh/sayword/internal/observe"
	"github.com/satriahrh/sayword/usecase"
)

const readTimeout = 2 * time.Second

type testEnv struct {
	hub     *Hub
	server  *httptest.Server
	results *memory.ResultRepository
	cancel  context.CancelFunc
}

func setupTestHub(t *testing.T, words []string, mutate func(*Dependencies)) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	table, err := homophone.Default(logger)
	if err != nil {
		t.Fatalf("Failed to load homophones: %v", err)
	}

	list := make([]entities.Word, 0, len(words))
	for _, w := range words {
		list = append(list, entities.Word{Text: w, Difficulty: entities.DifficultyEasy})
	}

	metrics := observe.DefaultMetrics()
	results := memory.NewResultRepository()
	deps := Dependencies{
		Words:          list,
		Evaluator:      match.NewEvaluator(table),
		Results:        usecase.NewResultService(results, metrics, logger),
		Hints:          usecase.NewHintService(llm.NewMockHintGenerator(logger), nil, "mock", metrics, logger),
		TTS:            tts.NewMockTextToSpeech(logger),
		Metrics:        metrics,
		Audio:          repositories.AudioConfig{SampleRate: 16000, Encoding: "LINEAR16", Language: "en-US", MaxAlternatives: 5},
		SilenceTimeout: time.Second,
	}
	if mutate != nil {
		mutate(&deps)
	}

	hub := NewHub(deps, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocket(hub, c, c.QueryParam("player"), logger)
	})
	server := httptest.NewServer(e)

	env := &testEnv{hub: hub, server: server, results: results, cancel: cancel}
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return env
}

func (env *testEnv) dial(t *testing.T, playerID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?player=" + playerID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket connection failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (env *testEnv) client(t *testing.T, playerID string) *Client {
	t.Helper()
	var c *Client
	waitFor(t, func() bool {
		env.hub.mu.RLock()
		defer env.hub.mu.RUnlock()
		c = env.hub.clients[playerID]
		return c != nil
	})
	return c
}

func sendJSON(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("Failed to send %s: %v", msg, err)
	}
}

// expect reads until a text message of the wanted type arrives, skipping
// status lines and binary frames
func expect(t *testing.T, conn *websocket.Conn, want MessageType) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(readTimeout)
	for {
		conn.SetReadDeadline(deadline)
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Waiting for %s: %v", want, err)
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Failed to unmarshal %s: %v", data, err)
		}
		if msg["type"] == string(want) {
			return msg
		}
		if want != MessageTypeStatus && msg["type"] != string(MessageTypeStatus) {
			t.Fatalf("Expected %s, got %s", want, data)
		}
	}
}

func startGame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	sendJSON(t, conn, `{"type": "game_start"}`)
	advance := expect(t, conn, MessageTypeAdvance)
	word, ok := advance["word"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected a word in the first advance, got %v", advance)
	}
	return word["text"].(string)
}

func entryOf(t *testing.T, msg map[string]interface{}) map[string]interface{} {
	t.Helper()
	entry, ok := msg["entry"].(map[string]interface{})
	if !ok {
		t.Fatalf("Adjudication without entry: %v", msg)
	}
	return entry
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(readTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met within timeout")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGameFlow_BrowserRecognition(t *testing.T) {
	env := setupTestHub(t, []string{"cat"}, nil)
	conn := env.dial(t, "player-1")

	word := startGame(t, conn)
	if word != "cat" {
		t.Fatalf("Expected cat, got %s", word)
	}

	sendJSON(t, conn, `{"type": "listening_start"}`)
	status := expect(t, conn, MessageTypeStatus)
	if status["status"] != "listening" {
		t.Errorf("Expected listening status, got %v", status["status"])
	}

	sendJSON(t, conn, `{"type": "interim_transcript", "transcript": "ca"}`)
	sendJSON(t, conn, `{"type": "final_transcript", "transcript": "Cat!", "alternatives": [{"transcript": "Cat!", "confidence": 0.9}]}`)

	entry := entryOf(t, expect(t, conn, MessageTypeAdjudication))
	if entry["is_correct"] != true {
		t.Errorf("Expected a correct answer, got %v", entry)
	}
	if entry["attempt_number"].(float64) != 1 {
		t.Errorf("Expected attempt 1, got %v", entry["attempt_number"])
	}

	advance := expect(t, conn, MessageTypeAdvance)
	if advance["word"] != nil {
		t.Errorf("Expected null word at the end, got %v", advance["word"])
	}

	over := expect(t, conn, MessageTypeGameOver)
	if over["correct"].(float64) != 1 || over["total"].(float64) != 1 {
		t.Errorf("Unexpected score %v", over)
	}

	waitFor(t, func() bool {
		list, _ := env.results.ListByPlayer(context.Background(), "player-1", 10)
		return len(list) == 1 && list[0].Status == entities.ResultStatusCompleted
	})
}

func TestGameFlow_TwoMissesAdvance(t *testing.T) {
	env := setupTestHub(t, []string{"cat"}, nil)
	conn := env.dial(t, "player-1")
	startGame(t, conn)

	for attempt := 1; attempt <= 2; attempt++ {
		sendJSON(t, conn, `{"type": "listening_start"}`)
		sendJSON(t, conn, `{"type": "final_transcript", "transcript": "dog"}`)

		entry := entryOf(t, expect(t, conn, MessageTypeAdjudication))
		if entry["is_correct"] != false {
			t.Errorf("Attempt %d: expected a miss, got %v", attempt, entry)
		}
		if int(entry["attempt_number"].(float64)) != attempt {
			t.Errorf("Expected attempt %d, got %v", attempt, entry["attempt_number"])
		}
		if entry["user_answer"] != "dog" {
			t.Errorf("Expected user answer dog, got %v", entry["user_answer"])
		}
	}

	advance := expect(t, conn, MessageTypeAdvance)
	if advance["word"] != nil {
		t.Errorf("Expected the game to move past the word, got %v", advance["word"])
	}
	expect(t, conn, MessageTypeGameOver)
}

func TestGameFlow_StopDiscardsInterim(t *testing.T) {
	env := setupTestHub(t, []string{"cat"}, nil)
	conn := env.dial(t, "player-1")
	startGame(t, conn)

	sendJSON(t, conn, `{"type": "listening_start"}`)
	expect(t, conn, MessageTypeStatus)
	sendJSON(t, conn, `{"type": "interim_transcript", "transcript": "hat"}`)
	sendJSON(t, conn, `{"type": "listening_stop"}`)

	// nothing buffered survives the stop, so ending now has no session
	sendJSON(t, conn, `{"type": "listening_end"}`)
	if msg := expect(t, conn, MessageTypeError); msg["error_code"] != ErrorCodeNotListening {
		t.Errorf("Expected %s after stop, got %v", ErrorCodeNotListening, msg["error_code"])
	}

	sendJSON(t, conn, `{"type": "listening_start"}`)
	sendJSON(t, conn, `{"type": "final_transcript", "transcript": "cat"}`)

	entry := entryOf(t, expect(t, conn, MessageTypeAdjudication))
	if entry["is_correct"] != true || entry["attempt_number"].(float64) != 1 {
		t.Errorf("Expected a first-attempt match after the stop, got %v", entry)
	}
}

func TestGameFlow_ListeningStartDuringSettle(t *testing.T) {
	mock := clock.NewMock()
	env := setupTestHub(t, []string{"cat", "dog"}, func(d *Dependencies) {
		d.Clock = mock
		d.SettleDelay = 2 * time.Second
	})
	conn := env.dial(t, "player-1")
	word := startGame(t, conn)

	sendJSON(t, conn, `{"type": "listening_start"}`)
	sendJSON(t, conn, `{"type": "final_transcript", "transcript": "`+word+`"}`)
	expect(t, conn, MessageTypeAdjudication)
	advance := expect(t, conn, MessageTypeAdvance)
	next := advance["word"].(map[string]interface{})["text"].(string)

	sendJSON(t, conn, `{"type": "listening_start"}`)
	if msg := expect(t, conn, MessageTypeError); msg["error_code"] != ErrorCodeBusy {
		t.Fatalf("Expected %s while the last answer settles, got %v", ErrorCodeBusy, msg["error_code"])
	}
	if snap := env.client(t, "player-1").currentGame().Snapshot(); snap.Listening {
		t.Error("A refused start must not mark the game as listening")
	}

	mock.Add(2 * time.Second)
	waitFor(t, func() bool {
		return !env.client(t, "player-1").currentGame().Snapshot().Processing
	})

	sendJSON(t, conn, `{"type": "listening_start"}`)
	sendJSON(t, conn, `{"type": "final_transcript", "transcript": "`+next+`"}`)
	entry := entryOf(t, expect(t, conn, MessageTypeAdjudication))
	if entry["word"] != next || entry["is_correct"] != true {
		t.Errorf("Expected %s to be adjudicated after the settle delay, got %v", next, entry)
	}
}

func TestGameFlow_HomophoneAlternative(t *testing.T) {
	env := setupTestHub(t, []string{"knight"}, nil)
	conn := env.dial(t, "player-1")
	startGame(t, conn)

	sendJSON(t, conn, `{"type": "listening_start"}`)
	sendJSON(t, conn, `{"type": "final_transcript", "transcript": "nice", "alternatives": [{"transcript": "nice", "confidence": 0.7}, {"transcript": "night", "confidence": 0.5}]}`)

	entry := entryOf(t, expect(t, conn, MessageTypeAdjudication))
	if entry["is_correct"] != true {
		t.Errorf("Expected homophone in alternatives to count, got %v", entry)
	}
	possibilities, _ := entry["possibilities"].([]interface{})
	if len(possibilities) != 2 {
		t.Errorf("Expected both alternatives logged, got %v", entry["possibilities"])
	}
}

func TestGameFlow_SilencePromotesInterim(t *testing.T) {
	env := setupTestHub(t, []string{"cat"}, func(d *Dependencies) {
		d.SilenceTimeout = 50 * time.Millisecond
	})
	conn := env.dial(t, "player-1")
	startGame(t, conn)

	sendJSON(t, conn, `{"type": "listening_start"}`)
	sendJSON(t, conn, `{"type": "interim_transcript", "transcript": "cat"}`)

	entry := entryOf(t, expect(t, conn, MessageTypeAdjudication))
	if entry["is_correct"] != true {
		t.Errorf("Expected the buffered interim to be adjudicated, got %v", entry)
	}

	// a final after the silence timer fired must not be adjudicated again
	sendJSON(t, conn, `{"type": "final_transcript", "transcript": "cat"}`)
	sendJSON(t, conn, `{"type": "ping", "data": "after"}`)
	expect(t, conn, MessageTypeAdvance)
	expect(t, conn, MessageTypeGameOver)
	pong := expect(t, conn, MessageTypePong)
	if pong["data"] != "after" {
		t.Errorf("Unexpected pong %v", pong)
	}
}

func TestGameFlow_CloudRecognition(t *testing.T) {
	env := setupTestHub(t, []string{"two"}, func(d *Dependencies) {
		d.STT = stt.NewMockSpeechToText(zap.NewNop(), []entities.RecognitionAlternative{
			{Transcript: "too", Confidence: 0.8},
		})
	})
	conn := env.dial(t, "player-1")
	startGame(t, conn)

	sendJSON(t, conn, `{"type": "listening_start", "source": "cloud", "sample_rate": 16000}`)
	expect(t, conn, MessageTypeStatus)

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Failed to send audio: %v", err)
	}
	sendJSON(t, conn, `{"type": "listening_end"}`)

	entry := entryOf(t, expect(t, conn, MessageTypeAdjudication))
	if entry["is_correct"] != true {
		t.Errorf("Expected too to match two, got %v", entry)
	}
	if entry["user_answer"] != "too" {
		t.Errorf("Expected matched candidate as answer, got %v", entry["user_answer"])
	}
}

func TestGameFlow_CloudUnavailable(t *testing.T) {
	env := setupTestHub(t, []string{"cat"}, nil)
	conn := env.dial(t, "player-1")
	startGame(t, conn)

	sendJSON(t, conn, `{"type": "listening_start", "source": "cloud"}`)
	msg := expect(t, conn, MessageTypeError)
	if msg["error_code"] != ErrorCodeUnavailable {
		t.Errorf("Expected %s, got %v", ErrorCodeUnavailable, msg["error_code"])
	}
}

func TestGameFlow_CloudOpenFailure(t *testing.T) {
	recognizer := stt.NewMockSpeechToText(zap.NewNop())
	recognizer.FailNextOpen(repositories.ErrPermissionDenied)

	env := setupTestHub(t, []string{"cat"}, func(d *Dependencies) { d.STT = recognizer })
	conn := env.dial(t, "player-1")
	startGame(t, conn)

	sendJSON(t, conn, `{"type": "listening_start", "source": "cloud"}`)
	msg := expect(t, conn, MessageTypeError)
	if msg["error_code"] != "permission_denied" {
		t.Errorf("Expected permission_denied, got %v", msg["error_code"])
	}
}

func TestGameFlow_RecognitionErrorKeepsAttempts(t *testing.T) {
	env := setupTestHub(t, []string{"cat"}, nil)
	conn := env.dial(t, "player-1")
	startGame(t, conn)

	sendJSON(t, conn, `{"type": "listening_start"}`)
	sendJSON(t, conn, `{"type": "recognition_error", "error": "no-speech"}`)

	msg := expect(t, conn, MessageTypeError)
	if msg["error_code"] != "no_speech" {
		t.Errorf("Expected no_speech, got %v", msg["error_code"])
	}
	if msg["message"] == "" {
		t.Error("Expected a player-facing message")
	}

	sendJSON(t, conn, `{"type": "listening_start"}`)
	sendJSON(t, conn, `{"type": "final_transcript", "transcript": "dog"}`)

	entry := entryOf(t, expect(t, conn, MessageTypeAdjudication))
	if entry["attempt_number"].(float64) != 1 {
		t.Errorf("A recognition error must not consume an attempt, got %v", entry["attempt_number"])
	}
}

func TestGameFlow_Skip(t *testing.T) {
	env := setupTestHub(t, []string{"cat", "dog"}, nil)
	conn := env.dial(t, "player-1")
	word := startGame(t, conn)

	sendJSON(t, conn, `{"type": "skip"}`)

	entry := entryOf(t, expect(t, conn, MessageTypeAdjudication))
	if entry["user_answer"] != entities.SkippedAnswer || entry["is_correct"] != false {
		t.Errorf("Unexpected skip entry %v", entry)
	}
	if entry["word"] != word {
		t.Errorf("Expected skipped word %s, got %v", word, entry["word"])
	}

	advance := expect(t, conn, MessageTypeAdvance)
	next, ok := advance["word"].(map[string]interface{})
	if !ok || next["text"] == word {
		t.Errorf("Expected the other word next, got %v", advance["word"])
	}
	if advance["index"].(float64) != 1 {
		t.Errorf("Expected index 1, got %v", advance["index"])
	}
}

func TestGameFlow_HintAndPronounce(t *testing.T) {
	env := setupTestHub(t, []string{"flower"}, nil)
	conn := env.dial(t, "player-1")
	startGame(t, conn)

	sendJSON(t, conn, `{"type": "hint_request"}`)
	hint := expect(t, conn, MessageTypeHint)
	if !strings.Contains(hint["hint"].(string), "flower") {
		t.Errorf("Expected hint about flower, got %v", hint["hint"])
	}

	sendJSON(t, conn, `{"type": "pronounce_request"}`)
	expect(t, conn, MessageTypeSpeakingStart)

	var audio []byte
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Reading audio: %v", err)
		}
		if messageType == websocket.BinaryMessage {
			audio = append(audio, data...)
			continue
		}
		var msg map[string]interface{}
		json.Unmarshal(data, &msg)
		if msg["type"] != string(MessageTypeSpeakingEnd) {
			t.Fatalf("Expected speaking_end, got %s", data)
		}
		break
	}
	if string(audio) != "flower" {
		t.Errorf("Expected mock audio of the word, got %q", audio)
	}
}

func TestGameFlow_Errors(t *testing.T) {
	env := setupTestHub(t, []string{"cat"}, func(d *Dependencies) { d.TTS = nil })
	conn := env.dial(t, "player-1")

	sendJSON(t, conn, `{"type": "listening_start"}`)
	if msg := expect(t, conn, MessageTypeError); msg["error_code"] != ErrorCodeNoGame {
		t.Errorf("Expected %s before a game, got %v", ErrorCodeNoGame, msg["error_code"])
	}

	sendJSON(t, conn, `{invalid json}`)
	if msg := expect(t, conn, MessageTypeError); msg["error_code"] != ErrorCodeInvalidMessage {
		t.Errorf("Expected %s, got %v", ErrorCodeInvalidMessage, msg["error_code"])
	}

	startGame(t, conn)
	sendJSON(t, conn, `{"type": "listening_start"}`)
	expect(t, conn, MessageTypeStatus)
	sendJSON(t, conn, `{"type": "listening_start"}`)
	if msg := expect(t, conn, MessageTypeError); msg["error_code"] != ErrorCodeAlreadyListening {
		t.Errorf("Expected %s, got %v", ErrorCodeAlreadyListening, msg["error_code"])
	}

	sendJSON(t, conn, `{"type": "pronounce_request"}`)
	if msg := expect(t, conn, MessageTypeError); msg["error_code"] != ErrorCodeUnavailable {
		t.Errorf("Expected %s without TTS, got %v", ErrorCodeUnavailable, msg["error_code"])
	}
}

func TestGameFlow_DisconnectStoresAbandonedGame(t *testing.T) {
	env := setupTestHub(t, []string{"cat", "dog", "sun"}, nil)
	conn := env.dial(t, "player-1")
	startGame(t, conn)

	sendJSON(t, conn, `{"type": "skip"}`)
	expect(t, conn, MessageTypeAdjudication)
	conn.Close()

	waitFor(t, func() bool {
		list, _ := env.results.ListByPlayer(context.Background(), "player-1", 10)
		return len(list) == 1 && list[0].Status == entities.ResultStatusAbandoned && list[0].Skipped == 1
	})
	waitFor(t, func() bool { return len(env.hub.GetActivePlayers()) == 0 })
}

func TestHub_ReplacesConnection(t *testing.T) {
	env := setupTestHub(t, []string{"cat"}, nil)

	first := env.dial(t, "player-1")
	waitFor(t, func() bool { return len(env.hub.GetActivePlayers()) == 1 })

	env.dial(t, "player-1")

	msg := expect(t, first, MessageTypeError)
	if msg["error_code"] != "replaced" {
		t.Errorf("Expected replaced, got %v", msg["error_code"])
	}
	if players := env.hub.GetActivePlayers(); len(players) != 1 || players[0] != "player-1" {
		t.Errorf("Expected a single active player, got %v", players)
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	env := setupTestHub(t, []string{"cat"}, nil)
	conn := env.dial(t, "player-1")
	waitFor(t, func() bool { return len(env.hub.GetActivePlayers()) == 1 })

	env.cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Errorf("Expected a normal close, got %v", err)
			}
			return
		}
	}
}
