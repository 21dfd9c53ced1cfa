// Command client is a terminal chat client for the relay.
//
//	USER_ID=pat1 PEER_ID=doc1 client
//
// Lines typed are sent as messages. "/seen" marks everything received as
// seen, "/search <terms>" searches the conversation and "/quit" exits.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"

	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
)

type session struct {
	cfg  Config
	conn *websocket.Conn

	mu             sync.Mutex
	conversationID string
	lastMessageID  uint64
	printed        map[uint64]bool
}

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if !cfg.Colours {
		color.Disable()
	}

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(cfg.RelayURL, header)
	if err != nil {
		log.Fatalf("Cannot reach %s: %v", cfg.RelayURL, err)
	}
	defer conn.Close()

	s := &session{cfg: cfg, conn: conn, printed: make(map[uint64]bool)}
	go s.listen()

	s.send("identify", map[string]string{"userId": cfg.UserID})
	s.send("joinRoom", map[string]string{"selfId": cfg.UserID, "peerId": cfg.PeerID})

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit":
			return
		case line == "/seen":
			conversationID, last := s.position()
			s.send("markAsSeen", map[string]any{"userId": cfg.UserID, "conversationId": conversationID, "lastSeenMessageId": last})
		case strings.HasPrefix(line, "/search "):
			conversationID, _ := s.position()
			s.send("searchMessages", map[string]any{"conversationId": conversationID, "query": strings.TrimPrefix(line, "/search ")})
		default:
			conversationID, _ := s.position()
			s.send("sendMessage", map[string]any{"conversationId": conversationID, "senderId": cfg.UserID, "content": line})
		}
	}
}

func (s *session) position() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID, s.lastMessageID
}

func (s *session) send(name string, data any) {
	if err := s.conn.WriteJSON(map[string]any{"event": name, "data": data}); err != nil {
		color.Red.Printf("send %s failed: %v\n", name, err)
	}
}

func (s *session) listen() {
	for {
		var in event.Inbound
		if err := s.conn.ReadJSON(&in); err != nil {
			color.Red.Printf("Disconnected: %v\n", err)
			os.Exit(0)
		}
		s.render(in)
	}
}

func (s *session) render(in event.Inbound) {
	switch in.Name {
	case event.ConversationID:
		var id string
		_ = json.Unmarshal(in.Data, &id)
		s.mu.Lock()
		s.conversationID = id
		s.mu.Unlock()
		color.New(color.BgBlack, color.FgGreen).Printf("  ====== %s <-> %s (%s) ======\n", s.cfg.UserID, s.cfg.PeerID, id)
	case event.PreviousMessages:
		var messages []domain.Message
		_ = json.Unmarshal(in.Data, &messages)
		for _, m := range messages {
			s.printMessage(m)
		}
	case event.ReceivedMessage:
		var m domain.Message
		_ = json.Unmarshal(in.Data, &m)
		s.printMessage(m)
	case event.MessagesSeen:
		var update event.SeenUpdate
		_ = json.Unmarshal(in.Data, &update)
		if update.UserID != s.cfg.UserID {
			color.Gray.Printf("  %s has seen up to #%d\n", update.UserID, update.LastSeenMessageID)
		}
	case event.SearchResults:
		var result event.SearchResult
		_ = json.Unmarshal(in.Data, &result)
		color.Yellow.Printf("  %d result(s)\n", len(result.Hits))
		for _, hit := range result.Hits {
			color.Yellow.Printf("  #%d %s: %s\n", hit.MessageID, hit.SenderID, hit.Content)
		}
	case event.Error:
		var payload event.ErrorPayload
		_ = json.Unmarshal(in.Data, &payload)
		color.Red.Printf("  ! %s\n", payload.Message)
	default:
		color.Gray.Printf("  %s %s\n", in.Name, string(in.Data))
	}
}

// printMessage shows m once. A message stored while joining can arrive both
// as a broadcast and inside the history.
func (s *session) printMessage(m domain.Message) {
	s.mu.Lock()
	if s.printed[m.ID] {
		s.mu.Unlock()
		return
	}
	s.printed[m.ID] = true
	if m.ID > s.lastMessageID {
		s.lastMessageID = m.ID
	}
	s.mu.Unlock()

	line := fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04"), m.SenderID, m.Content)
	if m.File != nil {
		line += fmt.Sprintf(" (%s %s)", m.File.Name, m.File.URL)
	}
	if m.SenderID == s.cfg.UserID {
		color.Cyan.Println(line)
		return
	}
	color.Green.Println(line)
}
