// Command autoparc-client drives a marketplace session from the terminal:
// sign in, follow the inbox live, send messages and sign out.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"autoparc/internal/client/cache"
	"autoparc/internal/client/persist"
	"autoparc/internal/client/platform"
	"autoparc/internal/client/session"
	"autoparc/internal/infra/obs"
)

const usage = `usage: autoparc-client <command>

  login              sign in with AUTOPARC_EMAIL / AUTOPARC_PASSWORD
  inbox              print chats and follow them until interrupted
  send CHAT TEXT     send a message
  fav LISTING        toggle a favorite
  logout             sign out and forget the saved session`

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger(getenv("APP_ENV", "dev"))
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err, "kind", platform.KindOf(err).String())
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cmd string, args []string) error {
	api, err := platform.New(getenv("AUTOPARC_API", "http://localhost:8080"), nil)
	if err != nil {
		return err
	}
	store, err := persist.Open(ctx, getenv("AUTOPARC_STATE", "autoparc-client.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	subscribe := func(ctx context.Context, filters ...string) (session.Stream, error) {
		stream, err := api.Subscribe(ctx, logger, filters...)
		if err != nil {
			return nil, err
		}
		return stream, nil
	}
	sess := session.New(api, subscribe, store, cache.New(), logger, session.Config{})

	if cmd == "login" {
		user, err := sess.SignIn(ctx, os.Getenv("AUTOPARC_EMAIL"), os.Getenv("AUTOPARC_PASSWORD"))
		if err != nil {
			return err
		}
		fmt.Printf("signed in as %s (%s)\n", user.Name, user.Email)
		return nil
	}

	user, ok, err := sess.Restore(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return session.ErrNotSignedIn
	}
	logger.Debug("session restored", "user_id", user.ID)

	switch cmd {
	case "inbox":
		return follow(ctx, sess)
	case "send":
		if len(args) < 2 {
			return errors.New(usage)
		}
		msg, err := sess.Send(ctx, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("sent %s at %s\n", msg.ID, time.UnixMilli(msg.Timestamp).Format(time.Kitchen))
		return nil
	case "fav":
		if len(args) != 1 {
			return errors.New(usage)
		}
		on, err := sess.ToggleFavorite(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("favorite %s: %t\n", args[0], on)
		return nil
	case "logout":
		return sess.SignOut(context.WithoutCancel(ctx))
	}
	return errors.New(usage)
}

// follow prints the inbox every time its unread total or ordering moves.
func follow(ctx context.Context, sess *session.Session) error {
	last := ""
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		snap := sess.Inbox()
		var b strings.Builder
		fmt.Fprintf(&b, "unread %d, notifications %d\n", snap.Total, sess.UnreadNotifications())
		for _, c := range snap.Chats {
			marker := " "
			if sess.PeerTyping(c.ID) {
				marker = "~"
			}
			fmt.Fprintf(&b, "%s %-36s %3d  %s\n", marker, c.ID, c.UnreadCount, c.LastMessage)
		}
		if out := b.String(); out != last {
			fmt.Print(out)
			last = out
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
