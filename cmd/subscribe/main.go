package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/lengolf/chat-inbox/internal/adapters/meta"
	"github.com/lengolf/chat-inbox/internal/config"
)

// Webhook fields the ingestion pipeline understands
var webhookFields = []string{
	"messages",
	"messaging_postbacks",
	"message_reads",
	"message_deliveries",
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pageID := cfg.MetaPageID
	if len(os.Args) >= 2 {
		pageID = os.Args[1]
	}
	if pageID == "" {
		log.Fatal("Usage: subscribe <page_id> (or set META_PAGE_ID)")
	}

	fmt.Println("===========================================")
	fmt.Println("Meta Page Webhook Subscription Tool")
	fmt.Println("===========================================")
	fmt.Printf("Graph API: %s/%s\n", cfg.MetaGraphBaseURL, cfg.MetaGraphVersion)
	fmt.Printf("Page ID: %s\n", pageID)
	fmt.Printf("Access token: %s\n", meta.MaskToken(cfg.MetaPageAccessToken))
	fmt.Printf("Fields: %s\n", strings.Join(webhookFields, ","))
	fmt.Println()

	client := meta.NewClient(cfg.MetaGraphBaseURL, cfg.MetaGraphVersion, cfg.MetaPageAccessToken, 30*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := client.SubscribePage(ctx, pageID, webhookFields); err != nil {
		log.Fatalf("Failed to subscribe page: %v", err)
	}

	fmt.Println("✓ Page subscribed successfully")
	fmt.Println("Meta will deliver Messenger and Instagram events to the configured webhook URL.")
	fmt.Println("WhatsApp Business webhooks are configured in the app dashboard.")
	fmt.Println("===========================================")
}
