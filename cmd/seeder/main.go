package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/lengolf/chat-inbox/internal/adapters/meta"
	"github.com/lengolf/chat-inbox/internal/adapters/postgres"
	"github.com/lengolf/chat-inbox/internal/config"
	"github.com/lengolf/chat-inbox/internal/service"
	"github.com/lengolf/chat-inbox/pkg/logger"
)

// Sample deliveries for a local inbox. Message ids are fixed, so re-running is a no-op.
var messengerData = []byte(`{
  "object": "page",
  "entry": [{
    "id": "2345000000001", "time": 1760500000000,
    "messaging": [
      {"sender": {"id": "2711000000000001"}, "recipient": {"id": "2345000000001"}, "timestamp": 1760500000000,
       "message": {"mid": "m_seed_fb_1", "text": "Hi, do you have a bay free tonight?"}},
      {"sender": {"id": "2711000000000001"}, "recipient": {"id": "2345000000001"}, "timestamp": 1760500060000,
       "message": {"mid": "m_seed_fb_2", "attachments": [{"type": "image", "payload": {"url": "https://example.com/swing.jpg"}}]}}
    ]
  }]
}`)

var instagramData = []byte(`{
  "object": "instagram",
  "entry": [{
    "id": "17841400000000001", "time": 1760500100000,
    "messaging": [
      {"sender": {"id": "1790000000000042"}, "recipient": {"id": "17841400000000001"}, "timestamp": 1760500100000,
       "message": {"mid": "m_seed_ig_1", "text": "Love the new simulator!"}},
      {"sender": {"id": "1790000000000042"}, "recipient": {"id": "17841400000000001"}, "timestamp": 1760500160000,
       "message": {"mid": "m_seed_ig_2", "text": "Is it open on Sundays?", "reply_to": {"mid": "m_seed_ig_1"}}}
    ]
  }]
}`)

var whatsAppData = []byte(`{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "1098000000000001",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "66200000000", "phone_number_id": "1100000000000001"},
        "contacts": [{"profile": {"name": "Somchai"}, "wa_id": "66812345678"}],
        "messages": [
          {"from": "66812345678", "id": "wamid.seed1", "timestamp": "1760500200", "type": "text", "text": {"body": "Can I book 2 hours for Saturday?"}},
          {"from": "66812345678", "id": "wamid.seed2", "timestamp": "1760500260", "type": "location", "location": {"latitude": 13.74, "longitude": 100.54}}
        ]
      }
    }]
  }]
}`)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog := logger.Must(logger.New(cfg.LogLevel))
	defer func() { _ = zlog.Sync() }()

	repo, err := postgres.NewRepository(cfg.DBURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := repo.AutoMigrate(); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	// Only the store is wired: no profile lookups, no push, no live dashboards
	ingest := service.NewIngestService(repo.InboxStore(), nil, nil, nil, nil, repo.WebhookLogRepository(), zlog)

	ctx := context.Background()
	for name, raw := range map[string][]byte{
		"messenger": messengerData,
		"instagram": instagramData,
		"whatsapp":  whatsAppData,
	} {
		var payload meta.WebhookPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			log.Fatalf("Failed to parse %s sample: %v", name, err)
		}

		summary := ingest.ProcessPayload(ctx, &payload, raw)
		log.Printf("✓ %s: stored=%d duplicates=%d failed=%d", name, summary.MessagesStored, summary.Duplicates, summary.EntriesFailed)
	}

	log.Println("✓ Seeding completed")
}
