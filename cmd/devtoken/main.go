// Command devtoken mints a bearer token for local development.
//
//	JWT_SECRET=dev go run ./cmd/devtoken -member alice -name Alice
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mmynk/tripledger/internal/auth"
)

func main() {
	_ = godotenv.Load()

	memberID := flag.String("member", "", "member id to put in the token")
	name := flag.String("name", "", "display name")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatalf("set JWT_SECRET")
	}
	if *memberID == "" {
		log.Fatalf("-member is required")
	}

	token, err := auth.NewJWTManager(secret, *ttl).Generate(*memberID, *name)
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	fmt.Println(token)
}
