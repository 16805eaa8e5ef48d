package main

import (
	"fmt"
	"log"

	"github.com/lengolf/chat-inbox/internal/adapters/webpush"
)

func main() {
	publicKey, privateKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		log.Fatalf("Failed to generate VAPID keys: %v", err)
	}

	fmt.Println("# Add to .env")
	fmt.Printf("VAPID_PUBLIC_KEY=%s\n", publicKey)
	fmt.Printf("VAPID_PRIVATE_KEY=%s\n", privateKey)
}
