// Command cdrtoken signs a token pair for the ops API with the service's JWT_* settings.
//
// Usage:
//
//	JWT_SECRET=... cdrtoken -sub=alice -role=operator
//
// Output is one JSON object with access_token, refresh_token and expires_at.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"cdr-service/internal/auth"
	"cdr-service/internal/config"
	"cdr-service/internal/rbac"
)

func main() {
	sub := flag.String("sub", "", "Operator the token is issued to (required)")
	role := flag.String("role", rbac.RoleViewer, "Role: operator|viewer")
	flag.Parse()

	if *sub == "" {
		fmt.Fprintln(os.Stderr, "error: -sub is required")
		os.Exit(2)
	}
	if !rbac.IsKnownRole(*role) {
		fmt.Fprintf(os.Stderr, "error: unknown role %q (want %s or %s)\n", *role, rbac.RoleOperator, rbac.RoleViewer)
		os.Exit(2)
	}

	cfg, err := config.LoadAuth()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	m, err := auth.NewManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	pair, err := m.IssuePair(time.Now(), *sub, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: issue token: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pair); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
