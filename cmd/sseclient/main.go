package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/satriahrh/cocoa-fruit/gateway/adapters/stream"
	"github.com/satriahrh/cocoa-fruit/gateway/domain"
	"github.com/satriahrh/cocoa-fruit/gateway/usecase"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "gateway base URL")
	model := flag.String("model", "", "preferred model, or \"auto\"")
	deepSearch := flag.Bool("deep", false, "enable deep search")
	flag.Parse()

	question := "ما هي لغة Go؟"
	if flag.NArg() > 0 {
		question = flag.Arg(0)
	}

	fmt.Println("🚀 Starting chat streaming test...")
	if err := streamChat(*baseURL, usecase.ChatRequest{
		Messages:   []domain.ChatMessage{{Role: domain.UserRole, Content: question}},
		Model:      domain.Candidate(*model),
		DeepSearch: *deepSearch,
		Streaming:  true,
	}); err != nil {
		log.Fatalf("Failed to stream chat: %v", err)
	}
	fmt.Println("✅ Chat streaming test completed successfully!")
}

func streamChat(baseURL string, chatReq usecase.ChatRequest) error {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	startTime := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	reader := stream.NewReader(resp.Body)
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read stream: %v", err)
		}
		switch event.Type {
		case domain.EventText:
			fmt.Print(event.Text)
		case domain.EventSources:
			fmt.Fprintf(os.Stderr, "📚 %d sources\n", len(event.Sources))
			for _, s := range event.Sources {
				fmt.Fprintf(os.Stderr, "  [%d] %s %s\n", s.Score, s.Title, s.URL)
			}
		case domain.EventError:
			fmt.Fprintf(os.Stderr, "\n❌ %s\n", event.Text)
		}
	}

	fmt.Printf("\n🤖 Model: %s\n", reader.Model())
	fmt.Printf("⏱️  Completed in %v\n", time.Since(startTime))
	return nil
}
