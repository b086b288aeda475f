package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"go-social-feed/internal/client/feed"
	"go-social-feed/internal/model"
)

var (
	dim    = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	accent = color.New(color.FgCyan).SprintFunc()
	heart  = color.New(color.FgRed).Sprint("♥")
)

var stdin = bufio.NewReader(os.Stdin)

func (c *cli) signup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	username := fs.String("username", "", "username")
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		*username = prompt("Username: ")
	}
	if *email == "" {
		*email = prompt("Email: ")
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	user, err := c.session.Signup(ctx, model.SignupRequest{Username: *username, Email: *email, Password: password})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "welcome, %s\n", bold(user.Username))
	return nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		*email = prompt("Email: ")
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	user, err := c.session.Login(ctx, model.LoginRequest{Email: *email, Password: password})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "logged in as %s\n", bold(user.Username))
	return nil
}

func (c *cli) logout(ctx context.Context) error {
	if err := c.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "logged out")
	return nil
}

func (c *cli) whoami() error {
	s := c.session.Session()
	if !s.IsAuthenticated || s.User == nil {
		fmt.Fprintln(c.out, "not logged in")
		return nil
	}
	fmt.Fprintf(c.out, "%s %s\n", bold(s.User.Username), dim(s.User.Email))
	return nil
}

func (c *cli) listFeed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	username := fs.String("user", "", "only posts by this username")
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", 10, "posts per page (max 50)")
	all := fs.Bool("all", false, "follow pagination to the end")
	if err := fs.Parse(args); err != nil {
		return err
	}

	timeline := feed.NewTimeline(c.feed, *username)
	if err := timeline.Load(ctx, model.PageQuery{Page: *page, Limit: *limit}); err != nil {
		return err
	}
	for more := *all; more; {
		var err error
		if more, err = timeline.LoadMore(ctx); err != nil {
			return err
		}
	}

	for _, p := range timeline.Posts() {
		c.printPost(p)
	}
	if meta := timeline.Pagination(); meta != nil {
		fmt.Fprintln(c.out, dim(fmt.Sprintf("page %d of %d, %d posts", meta.Page, meta.TotalPages, meta.Total)))
	}
	return nil
}

func (c *cli) createPost(ctx context.Context, args []string) error {
	content := strings.Join(args, " ")
	if content == "" {
		return errors.New("usage: feedctl post <content>")
	}

	p, err := c.feed.CreatePost(ctx, content)
	if err != nil {
		return err
	}
	c.printPost(p)
	return nil
}

func (c *cli) showPost(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: feedctl show <post-id>")
	}

	p, err := c.feed.Post(ctx, args[0])
	if err != nil {
		return err
	}
	c.printPost(p)
	return nil
}

func (c *cli) like(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: feedctl like <post-id>")
	}

	result, err := c.feed.ToggleLike(ctx, args[0])
	if err != nil {
		return err
	}

	verb := "unliked"
	if result.Liked {
		verb = "liked"
	}
	fmt.Fprintf(c.out, "%s %s (%d)\n", heart, verb, result.LikesCount)
	return nil
}

func (c *cli) comment(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: feedctl comment <post-id> <content>")
	}

	cm, err := c.feed.AddComment(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	c.printComment(cm)
	return nil
}

func (c *cli) listComments(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("comments", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", 10, "comments per page (max 50)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: feedctl comments [-page N] [-limit N] <post-id>")
	}

	comments, meta, err := c.feed.Comments(ctx, fs.Arg(0), model.PageQuery{Page: *page, Limit: *limit})
	if err != nil {
		return err
	}
	for _, cm := range comments {
		c.printComment(cm)
	}
	if meta != nil {
		fmt.Fprintln(c.out, dim(fmt.Sprintf("page %d of %d, %d comments", meta.Page, meta.TotalPages, meta.Total)))
	}
	return nil
}

func (c *cli) pushToken(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: feedctl push-token <token>")
	}
	if err := c.feed.UpdatePushToken(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "push token updated")
	return nil
}

func (c *cli) printPost(p model.Post) {
	likes := fmt.Sprintf("%d likes", p.LikesCount)
	if p.IsLiked {
		likes = heart + " " + likes
	}
	fmt.Fprintf(c.out, "%s %s %s\n  %s\n  %s, %d comments\n\n",
		accent("@"+p.User.Username), dim(p.CreatedAt.Local().Format(time.DateTime)), dim(p.ID),
		p.Content, likes, p.CommentsCount)
}

func (c *cli) printComment(cm model.Comment) {
	fmt.Fprintf(c.out, "%s %s\n  %s\n", accent("@"+cm.User.Username), dim(cm.CreatedAt.Local().Format(time.DateTime)), cm.Content)
}

func prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := stdin.ReadString('\n')
	return strings.TrimSpace(line)
}

// readPassword reads without echo on a terminal and falls back to a plain
// line when stdin is piped.
func readPassword(label string) (string, error) {
	if v := os.Getenv("FEED_PASSWORD"); v != "" {
		return v, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(""), nil
	}

	fmt.Fprint(os.Stderr, label)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}
