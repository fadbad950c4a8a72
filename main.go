package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"blockwatch/internal/config"
	"blockwatch/internal/middlewares"
	"blockwatch/internal/server"
	"blockwatch/internal/version"
)

func main() {
	var (
		configPath    string
		hashToken     string
		generateToken bool
		showVersion   bool
	)

	flag.StringVar(&configPath, "config", envOr("BLOCKWATCH_CONFIG", "config.yaml"), "path to the configuration file")
	flag.StringVar(&configPath, "c", envOr("BLOCKWATCH_CONFIG", "config.yaml"), "path to the configuration file (shorthand)")
	flag.StringVar(&hashToken, "hash-token", "", "print the api.token_digest for the given token and exit")
	flag.BoolVar(&generateToken, "generate-token", false, "generate a new api token with its digest and exit")
	flag.BoolVar(&showVersion, "version", false, "print the version and exit")
	flag.Parse()

	switch {
	case showVersion:
		fmt.Println(version.String())
		return
	case hashToken != "":
		digest, err := middlewares.HashAPIToken(hashToken)
		if err != nil {
			log.Fatalf("failed to hash token: %v", err)
		}
		fmt.Println(digest)
		return
	case generateToken:
		token, digest, err := middlewares.GenerateAPIToken()
		if err != nil {
			log.Fatalf("failed to generate token: %v", err)
		}
		fmt.Printf("token:        %s\ntoken_digest: %s\n", token, digest)
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
