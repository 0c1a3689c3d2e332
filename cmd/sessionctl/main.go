// Command sessionctl manages a LearnSphere platform session from the command
// line: log in, inspect the current identity, refresh, and log out. It is the
// reference consumer of the session subsystem.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/learnsphere/platform-client/internal/api"
	"github.com/learnsphere/platform-client/internal/core/ports"
	"github.com/learnsphere/platform-client/internal/core/service"
	"github.com/learnsphere/platform-client/internal/guard"
	"github.com/learnsphere/platform-client/internal/infrastructure/cache/file"
	redcache "github.com/learnsphere/platform-client/internal/infrastructure/cache/redis"
	"github.com/learnsphere/platform-client/internal/infrastructure/config"
	"github.com/learnsphere/platform-client/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	client, err := api.New(api.Config{
		BaseURL: cfg.PlatformURL,
		Timeout: cfg.RequestTimeout,
		JarPath: filepath.Join(cfg.Cache.Dir, "cookies.json"),
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("building api client")
	}

	ctx := context.Background()

	var cache ports.CredentialCache
	switch cfg.Cache.Backend {
	case "redis":
		rdb, err := redcache.Connect(ctx, redcache.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			log.Fatal().Err(err).Msg("connecting to redis")
		}
		defer rdb.Close()
		cache = redcache.NewCache(rdb, cfg.Cache.Profile)
	default:
		cache = file.New(cfg.Cache.Dir)
	}

	sessions := service.NewSessionManager(client, cache, client.Jar(), log)
	client.AttachSession(sessions)
	sessions.Bootstrap(ctx)

	switch os.Args[1] {
	case "login":
		cmdLogin(ctx, sessions, os.Args[2:])
	case "logout":
		sessions.Logout(ctx)
		fmt.Println("logged out")
	case "whoami":
		cmdWhoami(ctx, sessions)
	case "refresh":
		if !sessions.RefreshToken(ctx) {
			fmt.Fprintln(os.Stderr, "refresh failed")
			os.Exit(1)
		}
		printJSON(sessions.Snapshot().User)
	case "status":
		cmdStatus(sessions)
	default:
		usage()
		os.Exit(2)
	}
}

func cmdLogin(ctx context.Context, sessions *service.SessionManager, args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	remember := fs.Bool("remember", false, "request a long-lived session")
	_ = fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "login requires -email and -password")
		os.Exit(2)
	}

	res := sessions.Login(ctx, *email, *password, *remember)
	if !res.Success {
		fmt.Fprintln(os.Stderr, res.Message)
		os.Exit(1)
	}
	printJSON(res.User)
}

func cmdWhoami(ctx context.Context, sessions *service.SessionManager) {
	user := sessions.GetCurrentUser(ctx)
	if user == nil {
		fmt.Fprintln(os.Stderr, "not logged in")
		os.Exit(1)
	}
	printJSON(user)
}

// cmdStatus reports the session snapshot plus what the dashboard guard would
// decide for it, which makes guard behavior inspectable from the shell.
func cmdStatus(sessions *service.SessionManager) {
	s := sessions.Snapshot()
	d := guard.Protected(s, guard.Requirement{}, guard.DashboardPath)
	printJSON(map[string]any{
		"state":           s.State().String(),
		"user":            s.User,
		"dashboardAccess": d.Action == guard.ActionAllow,
	})
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: sessionctl <command> [flags]

commands:
  login    -email <addr> -password <pw> [-remember]
  logout
  whoami
  refresh
  status`)
}
