package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"campuschat/internal/client"
	"campuschat/internal/domain/entity"
	"campuschat/pkg/config"
)

// chatcli is a thin terminal harness around the chat engine: log in,
// search for a counterpart, converse. All synchronization logic lives
// in internal/client.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	reader := bufio.NewReader(os.Stdin)
	email := prompt(reader, "Email: ")
	password := prompt(reader, "Password: ")

	token, selfID, err := login(cfg.ServerURL, email, password)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	view := client.NewChatView(client.ViewConfig{
		SelfID:    selfID,
		ServerURL: cfg.ServerURL,
		HubURL:    cfg.HubURL,
		PageSize:  cfg.PageSize,
		Token: func(ctx context.Context) (string, error) {
			return token, nil
		},
		BackoffBase:      cfg.BackoffBase,
		BackoffMax:       cfg.BackoffMax,
		HandshakeTimeout: cfg.HandshakeTimeout,
		Notify:           printEvent,
	})
	defer view.Close()

	ctx := context.Background()
	if err := view.Open(ctx); err != nil {
		log.Printf("Connect failed, continuing offline: %v", err)
	}

	fmt.Println("Commands: /search <text>, /open <n>, /older, /back, /quit; anything else sends.")

	var results []entity.User
	for {
		line := prompt(reader, "> ")
		switch {
		case line == "/quit":
			return

		case strings.HasPrefix(line, "/search"):
			query := strings.TrimSpace(strings.TrimPrefix(line, "/search"))
			results, err = view.SearchUsers(ctx, query)
			if err != nil {
				fmt.Printf("search failed: %v\n", err)
				continue
			}
			for i, user := range results {
				fmt.Printf("%d) %s <%s> %s\n", i+1, user.Name, user.Email, view.PresenceLabel(user.ID))
			}

		case strings.HasPrefix(line, "/open"):
			n := 0
			fmt.Sscanf(strings.TrimPrefix(line, "/open"), "%d", &n)
			if n < 1 || n > len(results) {
				fmt.Println("no such result; /search first")
				continue
			}
			if err := view.SelectUser(ctx, results[n-1]); err != nil {
				fmt.Printf("open failed: %v\n", err)
				continue
			}
			printTimeline(view)

		case line == "/older":
			if err := view.LoadOlder(ctx); err != nil {
				fmt.Printf("load failed: %v\n", err)
				continue
			}
			printTimeline(view)

		case line == "/back":
			if err := view.Back(ctx); err != nil {
				fmt.Printf("leave failed: %v\n", err)
			}

		case line != "":
			if err := view.Send(ctx, line); err != nil {
				// The draft is still in the user's hands; just report.
				fmt.Printf("send failed: %v\n", err)
			}
		}
	}
}

func printEvent(event client.Event) {
	switch event.Kind {
	case client.EventConnecting:
		fmt.Println("[status] connecting...")
	case client.EventConnected:
		fmt.Println("[status] connected")
	case client.EventDisconnected:
		fmt.Println("[status] disconnected")
	case client.EventMessage:
		who := event.Message.SenderID
		if event.Message.IsOwnMessage {
			who = "me"
		}
		fmt.Printf("[%s] %s: %s\n", event.Message.SentAt.Format("15:04"), who, event.Message.Content)
	case client.EventError:
		fmt.Printf("[error] %v\n", event.Err)
	}
}

func printTimeline(view *client.ChatView) {
	for _, message := range view.Messages() {
		who := message.SenderID
		if message.IsOwnMessage {
			who = "me"
		}
		fmt.Printf("[%s] %s: %s\n", message.SentAt.Format("15:04"), who, message.Content)
	}
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// login exchanges credentials for a bearer token outside the engine;
// the engine only consumes tokens.
func login(serverURL, email, password string) (token, userID string, err error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})

	httpClient := &http.Client{Timeout: 10 * time.Second}
	res, err := httpClient.Post(serverURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	defer res.Body.Close()

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"token"`
			User  struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"data"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return "", "", err
	}
	if !envelope.Success {
		message := "login rejected"
		if envelope.Error != nil {
			message = envelope.Error.Message
		}
		return "", "", fmt.Errorf("%s", message)
	}
	return envelope.Data.Token, envelope.Data.User.ID, nil
}
