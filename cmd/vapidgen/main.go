// Command vapidgen prints a fresh VAPID key pair for web-push.
package main

import (
	"fmt"
	"log"

	"github.com/SherClockHolmes/webpush-go"
)

func main() {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		log.Fatal("Failed to generate VAPID keys:", err)
	}

	fmt.Println("========================================")
	fmt.Println("Add these to your .env file:")
	fmt.Println()
	fmt.Println("VAPID_PUBLIC_KEY=" + publicKey)
	fmt.Println("VAPID_PRIVATE_KEY=" + privateKey)
	fmt.Println("VAPID_SUBSCRIBER=you@example.com")
	fmt.Println("========================================")
}
