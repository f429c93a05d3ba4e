package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"groundtransfer/opsdesk/internal/common"

	"github.com/joho/godotenv"
)

// token_gen prints a bearer token for the sync trigger API.
//
//	go run ./cmd/token_gen -subject ops-dashboard -ttl 8760h
func main() {
	_ = godotenv.Load()

	subject := flag.String("subject", "", "who the token is issued to")
	ttl := flag.Duration("ttl", 365*24*time.Hour, "token lifetime, 0 for no expiry")
	secret := flag.String("secret", "", "signing secret (defaults to TRIGGER_TOKEN_SECRET)")
	flag.Parse()

	if *secret == "" {
		*secret = os.Getenv("TRIGGER_TOKEN_SECRET")
	}

	token, err := common.NewTriggerTokenService(*secret, *ttl).Issue(*subject)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}

	fmt.Println("New trigger token:", token)
}
