package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/stemsi/exstem-delivery/internal/config"
	"github.com/stemsi/exstem-delivery/internal/logger"
	"github.com/stemsi/exstem-delivery/internal/model"
	"github.com/stemsi/exstem-delivery/internal/service"
)

func main() {
	var (
		role        string
		subject     string
		permissions string
	)
	flag.StringVar(&role, "role", string(service.TokenTypeStudent), "Token type: student or admin")
	flag.StringVar(&subject, "sub", "", "Subject: the student id or admin id")
	flag.StringVar(&permissions, "perms", "", "Comma-separated admin permissions (default: all)")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if subject == "" {
		fmt.Fprintln(os.Stderr, "Error: -sub is required")
		flag.Usage()
		os.Exit(2)
	}

	var (
		tokenType service.TokenType
		perms     []string
	)
	switch service.TokenType(role) {
	case service.TokenTypeStudent:
		tokenType = service.TokenTypeStudent
	case service.TokenTypeAdmin:
		tokenType = service.TokenTypeAdmin
		perms = adminPermissions(permissions)
	default:
		log.Fatal().Str("role", role).Msg("Unknown role")
	}

	token, err := service.NewAuthService(cfg).GenerateToken(tokenType, subject, perms)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	// Only the token goes to stdout so it can be captured by scripts.
	fmt.Println(token)
}

func adminPermissions(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		all := make([]string, 0, len(model.AllPermissions))
		for _, p := range model.AllPermissions {
			all = append(all, string(p))
		}
		return all
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
