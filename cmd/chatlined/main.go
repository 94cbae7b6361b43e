package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/chatline/internal/daemon"
	"github.com/matheus3301/chatline/internal/session"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	watchFlag := flag.String("watch", "", "chat id to keep caught up")
	flag.Parse()

	name, profile, err := session.LoadProfile(*profileFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			ProfileName: name,
			Profile:     profile,
			WatchChat:   *watchFlag,
		}),
	)

	app.Run()
}
