// Command token prints an access token for a user id, signed with the
// configured secret. It stands in for the auth backend in local runs.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"looped/config"
	"looped/pkg/jwt"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: token [-config file] [-ttl 1h] <user-id>")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	token, err := jwt.NewJWT(cfg.JWTKey(), *ttl).GenerateToken(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
