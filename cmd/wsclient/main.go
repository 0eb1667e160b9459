// Command wsclient plays a game against a running server from the terminal.
// Typed lines are sent as final transcripts; /skip, /hint, /say and /stop send
// the matching requests and /wav streams a 16 kHz LINEAR16 file to the cloud
// recognizer.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/satriahrh/sayword/internal/api"
)

const chunkSize = 3200 // 100ms of 16 kHz LINEAR16

func main() {
	server := flag.String("server", "localhost:8080", "server host and port")
	name := flag.String("name", "player", "player name to register")
	difficulty := flag.String("difficulty", "", "easy, medium or hard; empty plays every word")
	audioDir := flag.String("audio-dir", "audio_responses", "where pronounced words are saved")
	flag.Parse()

	registration, err := register(*server, *name)
	if err != nil {
		log.Fatal("Failed to register player:", err)
	}
	log.Printf("Registered player %s (%s)", registration.Name, registration.PlayerID)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *server, Path: "/ws", RawQuery: "token=" + url.QueryEscape(registration.Token)}
	log.Printf("connecting to ws://%s/ws", *server)

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	done := make(chan struct{})
	go handleIncomingMessages(c, *audioDir, done)

	if err := sendJSON(c, map[string]interface{}{"type": "game_start", "difficulty": *difficulty}); err != nil {
		log.Fatal("game_start:", err)
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("interrupt")
			closeConn(c, done)
			return
		case line, ok := <-lines:
			if !ok {
				closeConn(c, done)
				return
			}
			if err := handleLine(c, line); err != nil {
				log.Println("send:", err)
			}
		}
	}
}

func register(server, name string) (*api.RegisterPlayerResponse, error) {
	body, err := json.Marshal(api.RegisterPlayerRequest{Name: name})
	if err != nil {
		return nil, err
	}

	resp, err := http.Post("http://"+server+"/api/v1/players", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("registration failed: %s", string(data))
	}

	var out api.RegisterPlayerResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func handleLine(c *websocket.Conn, line string) error {
	switch {
	case line == "":
		return nil
	case line == "/skip":
		return sendJSON(c, map[string]interface{}{"type": "skip"})
	case line == "/hint":
		return sendJSON(c, map[string]interface{}{"type": "hint_request"})
	case line == "/say":
		return sendJSON(c, map[string]interface{}{"type": "pronounce_request"})
	case line == "/stop":
		return sendJSON(c, map[string]interface{}{"type": "listening_stop"})
	case line == "/restart":
		return sendJSON(c, map[string]interface{}{"type": "game_start"})
	case strings.HasPrefix(line, "/wav "):
		return streamFile(c, strings.TrimSpace(strings.TrimPrefix(line, "/wav ")))
	default:
		if err := sendJSON(c, map[string]interface{}{"type": "listening_start", "source": "browser"}); err != nil {
			return err
		}
		return sendJSON(c, map[string]interface{}{"type": "final_transcript", "transcript": line})
	}
}

func streamFile(c *websocket.Conn, path string) error {
	audio, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	log.Printf("Streaming %s (%d bytes)", path, len(audio))

	if err := sendJSON(c, map[string]interface{}{
		"type":        "listening_start",
		"source":      "cloud",
		"sample_rate": 16000,
		"encoding":    "LINEAR16",
	}); err != nil {
		return err
	}

	for start := 0; start < len(audio); start += chunkSize {
		end := start + chunkSize
		if end > len(audio) {
			end = len(audio)
		}
		if err := c.WriteMessage(websocket.BinaryMessage, audio[start:end]); err != nil {
			return err
		}
		time.Sleep(100 * time.Millisecond)
	}

	return sendJSON(c, map[string]interface{}{"type": "listening_end"})
}

func sendJSON(c *websocket.Conn, message map[string]interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

func closeConn(c *websocket.Conn, done chan struct{}) {
	err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Println("write close:", err)
		return
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func handleIncomingMessages(c *websocket.Conn, audioDir string, done chan struct{}) {
	defer close(done)
	var audioFile *os.File

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			log.Println("read:", err)
			return
		}

		if messageType == websocket.BinaryMessage {
			if audioFile != nil {
				if _, err := audioFile.Write(message); err != nil {
					log.Printf("Error writing audio chunk: %v", err)
				}
			}
			continue
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Println("unmarshal error:", err)
			continue
		}

		switch msg["type"] {
		case "advance":
			word, _ := msg["word"].(map[string]interface{})
			if word == nil {
				continue
			}
			fmt.Printf("\nWord %v/%v: %v\n> ", toInt(msg["index"])+1, msg["total"], word["text"])
		case "adjudication":
			entry, _ := msg["entry"].(map[string]interface{})
			if entry["is_correct"] == true {
				fmt.Printf("Correct: %v\n", entry["user_answer"])
			} else {
				fmt.Printf("Not quite (%v), attempt %v\n", entry["user_answer"], entry["attempt_number"])
			}
		case "game_over":
			fmt.Printf("\nGame over: %v/%v correct, %v on the first try\n", msg["correct"], msg["total"], msg["first_try"])
			fmt.Println("Type /restart to play again")
		case "hint":
			fmt.Printf("Hint: %v\n", msg["hint"])
		case "speaking_start":
			if err := os.MkdirAll(audioDir, 0o755); err != nil {
				log.Printf("Error creating audio directory: %v", err)
				continue
			}
			path := filepath.Join(audioDir, fmt.Sprintf("%v-%d.mp3", msg["word"], time.Now().Unix()))
			audioFile, err = os.Create(path)
			if err != nil {
				log.Printf("Error creating audio file: %v", err)
				continue
			}
			log.Printf("Saving pronunciation to %s", path)
		case "speaking_end":
			if audioFile != nil {
				audioFile.Close()
				audioFile = nil
			}
		case "status":
			log.Printf("status: %v", msg["status"])
		case "error":
			log.Printf("error %v: %v", msg["error_code"], msg["message"])
		default:
			log.Printf("Received: %s", string(message))
		}
	}
}

func toInt(v interface{}) int {
	f, _ := v.(float64)
	return int(f)
}
