package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/matheus3301/chatline/internal/chats"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/lock"
	"github.com/matheus3301/chatline/internal/outbox"
	"github.com/matheus3301/chatline/internal/profiles"
	"github.com/matheus3301/chatline/internal/session"
	"github.com/matheus3301/chatline/internal/store"
	intsync "github.com/matheus3301/chatline/internal/sync"
	"golang.org/x/sync/errgroup"
)

const (
	themeKey     = "theme"
	defaultTheme = "auto"
)

var themes = []string{"light", "dark", "auto"}

type chatRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	LastMessage string `json:"last_message,omitempty"`
	Dead        bool   `json:"dead,omitempty"`
}

func cmdChats(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("chats", flag.ExitOnError)
	pages := fs.Int("pages", 1, "number of pages to load")
	offline := fs.Bool("offline", false, "read from the local cache")
	_ = fs.Parse(args)

	if *offline {
		return chatsOffline(e)
	}

	cache := chats.NewCache(e.client, nil, e.logger)
	if err := loadPages(ctx, *pages, cache.Load, func() bool { return cache.Snapshot().HasMore }); err != nil {
		return failure(err, cache.Snapshot().LastError)
	}

	var rows []chatRow
	for _, c := range cache.Snapshot().Items {
		row := chatRow{ID: c.ID, Title: chats.GenerateTitle(c, e.me), Dead: chats.IsDead(c, e.me)}
		if last, ok := c.LastMessage(); ok {
			row.LastMessage = last.Body
		}
		rows = append(rows, row)
	}
	printChats(e, rows)
	return nil
}

func chatsOffline(e *env) error {
	db, err := openStore(e.name)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	cached, err := db.ListChats(e.profile.PageSize, 0)
	if err != nil {
		return err
	}
	var rows []chatRow
	for _, c := range cached {
		chat, err := c.Domain()
		if err != nil {
			return err
		}
		rows = append(rows, chatRow{
			ID:          c.ID,
			Title:       chats.GenerateTitle(chat, e.me),
			LastMessage: c.LastMessagePreview,
			Dead:        chats.IsDead(chat, e.me),
		})
	}
	printChats(e, rows)
	return nil
}

func printChats(e *env, rows []chatRow) {
	if e.json {
		outputJSON(rows)
		return
	}
	for _, r := range rows {
		title := r.Title
		if r.Dead {
			title += " (inactive)"
		}
		fmt.Printf("%-24s  %-30s  %s\n", r.ID, clean(title), clean(r.LastMessage))
	}
}

// failure prefers the user-facing message a store recorded over err.
func failure(err error, msg string) error {
	if msg == "" {
		return err
	}
	return errors.New(msg)
}

// loadPages calls load until n pages are in or there is nothing more.
func loadPages(ctx context.Context, n int, load func(context.Context) error, hasMore func() bool) error {
	for i := 0; i < n; i++ {
		if err := load(ctx); err != nil {
			return err
		}
		if !hasMore() {
			return nil
		}
	}
	return nil
}

func cmdMessages(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("messages", flag.ExitOnError)
	pages := fs.Int("pages", 1, "number of pages to load")
	offline := fs.Bool("offline", false, "read from the local cache")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: chatline messages [-pages n] [-offline] <chat>")
	}
	if *offline {
		return messagesOffline(e, fs.Arg(0), *pages)
	}

	rec := chats.NewReconciler(fs.Arg(0), e.me, e.client, nil, nil, e.logger)
	if err := loadPages(ctx, *pages, rec.LoadOlder, func() bool { return rec.Older().HasMore }); err != nil {
		return failure(err, rec.Older().LastError)
	}
	printMessages(e, nil, rec.Messages())
	return nil
}

func messagesOffline(e *env, chatID string, pages int) error {
	db, err := openStore(e.name)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	newestFirst, err := cachedHistory(db, chatID, pages, e.profile.PageSize)
	if err != nil {
		return err
	}
	printMessages(e, nil, newestFirst)
	return nil
}

// cachedHistory pages back through the cached messages of chatID, newest
// first. Each page starts before the oldest message so far.
func cachedHistory(db *store.DB, chatID string, pages, pageSize int) ([]domain.Message, error) {
	var newestFirst []domain.Message
	var before int64
	for range pages {
		rows, err := db.ListMessages(chatID, before, pageSize)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			newestFirst = append(newestFirst, r.Domain())
		}
		if len(rows) < pageSize {
			break
		}
		before = rows[len(rows)-1].CreatedAt
	}
	return newestFirst, nil
}

func cmdRecent(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: chatline recent <chat>")
	}
	cache := chats.NewCache(e.client, nil, e.logger)
	chat, err := cache.Fetch(ctx, args[0])
	if err != nil {
		return err
	}
	cache.Activate(chat)
	defer cache.Deactivate()

	rec := chats.NewReconciler(chat.ID, e.me, e.client, cache, nil, e.logger)
	if err := rec.LoadOlder(ctx); err != nil {
		return failure(err, rec.Older().LastError)
	}
	if err := rec.LoadRecent(ctx); err != nil {
		return failure(err, rec.RecentError())
	}
	active, _ := cache.Activated()
	if !e.json {
		fmt.Printf("# %s\n", clean(chats.GenerateTitle(active, e.me)))
	}
	printMessages(e, &active, rec.Messages())
	return nil
}

type messageRow struct {
	ID       string    `json:"id"`
	From     string    `json:"from"`
	Body     string    `json:"body"`
	Image    string    `json:"image,omitempty"`
	At       time.Time `json:"created_at"`
	Received bool      `json:"received,omitempty"`
	Seen     bool      `json:"seen,omitempty"`
}

// printMessages prints newest-first msgs oldest first. Receipts are shown
// for my messages when chat is known.
func printMessages(e *env, chat *domain.Chat, newestFirst []domain.Message) {
	rows := make([]messageRow, 0, len(newestFirst))
	for _, m := range slices.Backward(newestFirst) {
		row := messageRow{ID: m.ID, From: m.ProfileName, Body: m.Body, At: m.CreatedAt}
		if m.Image != nil {
			row.Image = *m.Image
		}
		if chat != nil && m.ProfileName == e.me.Username {
			row.Received = chats.HasBeenReceived(m, *chat, e.me)
			row.Seen = chats.HasBeenSeen(m, *chat, e.me)
		}
		rows = append(rows, row)
	}
	if e.json {
		outputJSON(rows)
		return
	}
	for _, r := range rows {
		mark := ""
		switch {
		case r.Seen:
			mark = " ✓✓"
		case r.Received:
			mark = " ✓"
		}
		body := r.Body
		if r.Image != "" {
			body = strings.TrimSpace(body + " [image " + r.Image + "]")
		}
		fmt.Printf("%s  %-16s %s%s\n", r.At.Local().Format("2006-01-02 15:04"), r.From, clean(body), mark)
	}
}

func cmdProfiles(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("profiles", flag.ExitOnError)
	name := fs.String("name", "", "filter by name")
	pages := fs.Int("pages", 1, "number of pages to load")
	_ = fs.Parse(args)

	dir := profiles.NewDirectory(e.client, nil, nil, e.logger)
	if err := dir.SetFilter(ctx, *name); err != nil {
		return failure(err, dir.Snapshot().LastError)
	}
	if err := loadPages(ctx, *pages-1, dir.Load, func() bool { return dir.Snapshot().HasMore }); err != nil {
		return failure(err, dir.Snapshot().LastError)
	}

	items := dir.Snapshot().Items
	if e.json {
		outputJSON(items)
		return nil
	}
	for _, p := range items {
		fmt.Printf("%-24s  %-20s  %s\n", p.ID, clean(p.Name), clean(p.Bio))
	}
	return nil
}

func cmdOpen(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: chatline open <profile-id>")
	}
	cache := chats.NewCache(e.client, nil, e.logger)
	dir := profiles.NewDirectory(e.client, cache, nil, e.logger)
	chat, err := dir.OpenChat(ctx, args[0])
	if err != nil {
		return err
	}
	if e.json {
		outputJSON(chatRow{ID: chat.ID, Title: chats.GenerateTitle(chat, e.me)})
		return nil
	}
	fmt.Printf("%s  %s\n", chat.ID, clean(cache.Title(chat.ID, e.me)))
	return nil
}

func cmdSend(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	image := fs.String("image", "", "image file to attach")
	now := fs.Bool("now", false, "post immediately instead of leaving it to chatlined")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		return errors.New("usage: chatline send [-image f] [-now] <chat> <text>")
	}
	chatID, text := fs.Arg(0), strings.Join(fs.Args()[1:], " ")

	db, err := openStore(e.name)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	id, err := outbox.Queue(db, chatID, text, *image)
	if err != nil {
		return err
	}
	if !*now {
		fmt.Printf("queued %s\n", id)
		return nil
	}

	sender := outbox.NewSender(db, e.client, nil, nil, e.logger, e.profile.ImageMaxDimension)
	sender.Drain(ctx)
	entry, err := db.GetOutbox(id)
	if err != nil {
		return err
	}
	if entry == nil || entry.ServerMsgID == "" {
		return fmt.Errorf("message %s not sent", id)
	}
	fmt.Printf("sent %s\n", entry.ServerMsgID)
	return nil
}

func cmdSearch(e *env, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	chatID := fs.String("chat", "", "restrict to one chat")
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		return errors.New("usage: chatline search [-chat id] <query>")
	}

	db, err := openStore(e.name)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	results, err := db.SearchMessages(strings.Join(fs.Args(), " "), *chatID, e.profile.PageSize)
	if err != nil {
		return err
	}
	if e.json {
		outputJSON(results)
		return nil
	}
	for _, r := range results {
		m := r.Message.Domain()
		fmt.Printf("%s  %-16s %-16s %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), m.ChatID, m.ProfileName, clean(r.Snippet))
	}
	return nil
}

func cmdTheme(e *env, args []string) error {
	db, err := openStore(e.name)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if len(args) == 0 {
		theme, ok, err := db.GetSetting(themeKey)
		if err != nil {
			return err
		}
		if !ok {
			theme = defaultTheme
		}
		fmt.Println(theme)
		return nil
	}
	if !slices.Contains(themes, args[0]) {
		return fmt.Errorf("unknown theme %q (want one of %s)", args[0], strings.Join(themes, ", "))
	}
	return db.SetSetting(themeKey, args[0])
}

// cmdRefresh loads the first page of chats and profiles concurrently and
// persists the chats.
func cmdRefresh(ctx context.Context, e *env) error {
	db, err := openStore(e.name)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	cache := chats.NewCache(e.client, nil, e.logger)
	dir := profiles.NewDirectory(e.client, nil, nil, e.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := cache.Load(gctx); err != nil {
			return failure(err, cache.Snapshot().LastError)
		}
		return nil
	})
	g.Go(func() error {
		if err := dir.Load(gctx); err != nil {
			return failure(err, dir.Snapshot().LastError)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	items := cache.Snapshot().Items
	if err := intsync.NewEngine(db, nil, e.logger).IngestChats(items); err != nil {
		return err
	}
	fmt.Printf("%d chats, %d profiles\n", len(items), len(dir.Snapshot().Items))
	return nil
}

func cmdStatus(e *env) error {
	pid, err := lock.Holder(session.Dir(e.name))
	if err != nil {
		return err
	}
	db, err := openStore(e.name)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	lastSync, synced := intsync.NewEngine(db, nil, e.logger).LastSync()

	if e.json {
		out := map[string]any{"profile": e.name, "daemon_pid": pid, "running": pid != 0}
		if synced {
			out["last_sync"] = lastSync
		}
		outputJSON(out)
		return nil
	}
	fmt.Printf("Profile:   %s\n", e.name)
	if pid == 0 {
		fmt.Println("Daemon:    not running")
	} else {
		fmt.Printf("Daemon:    running (PID %d)\n", pid)
	}
	if synced {
		fmt.Printf("Last sync: %s\n", lastSync.Local().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Last sync: never")
	}
	return nil
}
