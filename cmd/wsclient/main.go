package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/satriahrh/cocoa-fruit/gateway/adapters/stream"
	"github.com/satriahrh/cocoa-fruit/gateway/domain"
	"github.com/satriahrh/cocoa-fruit/gateway/usecase"
)

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "gateway websocket URL")
	model := flag.String("model", "", "preferred model, or \"auto\"")
	deepSearch := flag.Bool("deep", false, "enable deep search")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}
	defer conn.Close()

	done := make(chan string, 1)
	go func() {
		var answer strings.Builder
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				log.Println("Error reading message:", err)
				os.Exit(1)
			}
			event, err := stream.ParsePayload(payload)
			if err != nil {
				log.Println("Skipping frame:", err)
				continue
			}
			switch event.Type {
			case domain.EventText:
				answer.WriteString(event.Text)
				fmt.Print(event.Text)
			case domain.EventSources:
				fmt.Printf("📚 %d sources\n", len(event.Sources))
			case domain.EventModel:
				fmt.Printf("\n🤖 %s", event.Text)
			case domain.EventError:
				fmt.Printf("\n❌ %s", event.Text)
			case domain.EventDone:
				fmt.Println()
				done <- answer.String()
				answer.Reset()
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down...")
		conn.Close()
		os.Exit(0)
	}()

	var history []domain.ChatMessage
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Ask anything (type 'exit' to quit):")
	for {
		fmt.Print("> ")
		text, err := reader.ReadString('\n')
		text = strings.TrimSpace(text)
		if err != nil || text == "exit" {
			break
		}
		if text == "" {
			continue
		}

		history = append(history, domain.ChatMessage{Role: domain.UserRole, Content: text})
		payload, err := json.Marshal(usecase.ChatRequest{
			Messages:   history,
			Model:      domain.Candidate(*model),
			DeepSearch: *deepSearch,
			Streaming:  true,
		})
		if err != nil {
			log.Println("Error encoding request:", err)
			break
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Println("Error sending message:", err)
			break
		}
		if answer := <-done; answer != "" {
			history = append(history, domain.ChatMessage{Role: domain.AssistantRole, Content: answer})
		}
	}
}
