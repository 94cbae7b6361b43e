package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/config"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/logging"
	"github.com/matheus3301/chatline/internal/session"
	"github.com/matheus3301/chatline/internal/store"
	"go.uber.org/zap"
)

// env is what every command needs: the resolved profile and its clients.
type env struct {
	name    string
	profile config.Profile
	me      domain.User
	client  *api.Client
	logger  *zap.Logger
	json    bool
}

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	name, profile, err := session.LoadProfile(*profileFlag)
	if err != nil {
		fatal(err)
	}
	if err := session.EnsureDir(name); err != nil {
		fatal(err)
	}
	logger, err := logging.New(session.CLILogPath(name), name, "warn")
	if err != nil {
		fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	client, err := api.New(profile.BaseURL, profile.Token, api.WithLogger(logger))
	if err != nil {
		fatal(err)
	}
	e := &env{
		name:    name,
		profile: profile,
		me:      domain.User{ID: profile.UserID, Username: profile.Username},
		client:  client,
		logger:  logger,
		json:    *jsonFlag,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "chats":
		err = cmdChats(ctx, e, rest)
	case "messages":
		err = cmdMessages(ctx, e, rest)
	case "recent":
		err = cmdRecent(ctx, e, rest)
	case "profiles":
		err = cmdProfiles(ctx, e, rest)
	case "open":
		err = cmdOpen(ctx, e, rest)
	case "send":
		err = cmdSend(ctx, e, rest)
	case "search":
		err = cmdSearch(e, rest)
	case "theme":
		err = cmdTheme(e, rest)
	case "refresh":
		err = cmdRefresh(ctx, e)
	case "status":
		err = cmdStatus(e)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fatal(err)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chatline [-profile <name>] [-json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  chats [-pages n] [-offline]           List chats")
	fmt.Fprintln(os.Stderr, "  messages [-pages n] [-offline] <chat>  Show a chat's history")
	fmt.Fprintln(os.Stderr, "  recent <chat>                          Load a chat and catch up with new messages")
	fmt.Fprintln(os.Stderr, "  profiles [-name q] [-pages n]          Browse the profile directory")
	fmt.Fprintln(os.Stderr, "  open <profile-id>                      Open the direct chat with a profile")
	fmt.Fprintln(os.Stderr, "  send [-image f] [-now] <chat> <text>   Queue a message")
	fmt.Fprintln(os.Stderr, "  search [-chat id] <query>              Search cached messages")
	fmt.Fprintln(os.Stderr, "  theme [light|dark|auto]                Show or set the color scheme")
	fmt.Fprintln(os.Stderr, "  refresh                                Reload chats and profiles into the cache")
	fmt.Fprintln(os.Stderr, "  status                                 Show whether chatlined is running and when it last synced")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func openStore(name string) (*store.DB, error) {
	db, err := store.Open(session.DBPath(name))
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
