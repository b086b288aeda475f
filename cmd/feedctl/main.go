// Command feedctl is a terminal client for the social feed API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	clientconfig "go-social-feed/internal/client/config"
	"go-social-feed/internal/client/credstore"
	"go-social-feed/internal/client/feed"
	"go-social-feed/internal/client/session"
	"go-social-feed/internal/logger"
)

const usage = `usage: feedctl <command> [flags]

commands:
  signup     create an account
  login      sign in
  logout     sign out and forget stored tokens
  whoami     show the signed-in user
  feed       list posts (-user, -page, -limit, -all)
  post       publish a post
  show       show one post
  like       toggle a like on a post
  comment    comment on a post
  comments   list comments on a post
  push-token register a device push token`

type cli struct {
	out     io.Writer
	session *session.Manager
	feed    *feed.Client
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	slog.SetDefault(logger.New(os.Stderr, levelFromEnv(), os.Getenv("LOG_FORMAT")))

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	cfg := clientconfig.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := credstore.OpenSQLite(ctx, cfg.CredentialsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	manager := session.New(cfg.APIURL, store,
		session.WithTimeout(cfg.HTTPTimeout),
		session.WithOnLogout(func() {
			color.New(color.FgYellow).Fprintln(os.Stderr, "session expired, please log in again")
		}),
	)
	if err := manager.Restore(ctx); err != nil {
		return err
	}

	c := &cli{out: os.Stdout, session: manager, feed: feed.NewClient(manager)}

	switch command {
	case "signup":
		return c.signup(ctx, args)
	case "login":
		return c.login(ctx, args)
	case "logout":
		return c.logout(ctx)
	case "whoami":
		return c.whoami()
	case "feed":
		return c.listFeed(ctx, args)
	case "post":
		return c.createPost(ctx, args)
	case "show":
		return c.showPost(ctx, args)
	case "like":
		return c.like(ctx, args)
	case "comment":
		return c.comment(ctx, args)
	case "comments":
		return c.listComments(ctx, args)
	case "push-token":
		return c.pushToken(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprintln(os.Stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}
}

func describe(err error) string {
	var apiErr *session.APIError
	switch {
	case errors.Is(err, session.ErrUnauthorized):
		return "not logged in"
	case errors.As(err, &apiErr):
		return apiErr.Message
	default:
		return err.Error()
	}
}

func levelFromEnv() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return slog.LevelWarn
	}
	return level
}
