package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/stockverify_backend/config"
)

// seed-token writes a session token for an operator into Redis so the sync
// admin API can be exercised without the main auth service. With -revoke it
// deletes the token instead.
func main() {
	username := flag.String("username", "", "Operator username the token resolves to")
	token := flag.String("token", "", "Token value; generated when empty")
	ttl := flag.Duration("ttl", 24*time.Hour, "Session lifetime")
	revoke := flag.Bool("revoke", false, "Delete the token instead of creating it")
	flag.Parse()

	config.ConnectRedisWithRetry()

	if *revoke {
		if *token == "" {
			fmt.Fprintln(os.Stderr, "-token is required with -revoke")
			os.Exit(1)
		}
		if err := config.RemoveRedisKey("Token:" + *token); err != nil {
			fmt.Fprintf(os.Stderr, "revoke token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("token revoked")
		return
	}

	if *username == "" {
		fmt.Fprintln(os.Stderr, "-username is required")
		os.Exit(1)
	}
	if *token == "" {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
			os.Exit(1)
		}
		*token = hex.EncodeToString(buf)
	}

	if err := config.SetRedisValue("Token:"+*token, *username, *ttl); err != nil {
		fmt.Fprintf(os.Stderr, "store token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("token: %s (expires in %s)\n", *token, *ttl)
}
