package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mangalib/internal/apiclient"
	"mangalib/internal/apierr"
	"mangalib/internal/catalog"
	"mangalib/internal/credstore"
	"mangalib/internal/monitor"
	"mangalib/internal/services"
	"mangalib/pkg/logger"
	"mangalib/pkg/models"
	"mangalib/pkg/utils"
)

type app struct {
	cfg   *utils.Config
	mon   *monitor.Monitor
	store credstore.Store
	api   *apiclient.Client
	log   zerolog.Logger
}

func main() {
	global := flag.NewFlagSet("mangalib", flag.ExitOnError)
	configPath := global.String("config", "", "config file (yaml)")
	env := global.String("env", "", "API profile: development, production or mock")
	showMonitor := global.Bool("monitor", false, "print call statistics after the command")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := utils.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *env != "" {
		cfg.Env = utils.Environment(strings.ToLower(*env))
	}
	logger.Init(cfg.LogLevel, true)

	a := newApp(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := args[0]
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}
	rest := []string{}
	if len(args) > 2 {
		rest = args[2:]
	}

	switch cmd {
	case "auth":
		a.handleAuth(ctx, sub, rest)
	case "catalog":
		a.handleCatalog(ctx, sub, rest)
	case "books":
		a.handleBooks(ctx, sub, rest)
	case "feed":
		handleFeed(ctx, sub, rest)
	default:
		printUsage()
		os.Exit(1)
	}

	if *showMonitor {
		printJSON(map[string]any{"stats": a.mon.Stats(), "health": a.mon.Health(cfg.Monitor.HealthWindow)})
	}
}

func newApp(cfg *utils.Config) *app {
	lg := logger.Component("cli")
	mon := monitor.New(cfg.Monitor.Capacity)

	path := cfg.Credentials
	if path == "" {
		path = credstore.DefaultPath()
	}
	store := credstore.New(lg, credstore.NewFileBackend(path), credstore.NewMemoryBackend())

	api := apiclient.New(cfg.Profile(),
		apiclient.WithStore(store),
		apiclient.WithMonitor(mon),
		apiclient.WithDebug(cfg.Debug),
		apiclient.WithLogger(lg),
		apiclient.WithNotifier(apiclient.NotifierFunc(func(context.Context, *apierr.Details) {
			fmt.Fprintln(os.Stderr, "session expired, please log in again")
		})),
	)
	return &app{cfg: cfg, mon: mon, store: store, api: api, log: lg}
}

func (a *app) handleAuth(ctx context.Context, sub string, args []string) {
	auth := services.NewAuthService(a.api, a.store, a.log)
	switch sub {
	case "login":
		fs := flag.NewFlagSet("auth login", flag.ExitOnError)
		username := fs.String("username", "", "username or email")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		resp, err := auth.Login(ctx, models.LoginRequest{Username: *username, Password: *password})
		if err != nil {
			fatal("login failed", err)
		}
		fmt.Printf("logged in as %s (%s)\n", resp.Data.Username, resp.Data.Role)
	case "register":
		fs := flag.NewFlagSet("auth register", flag.ExitOnError)
		req := models.RegisterRequest{}
		fs.StringVar(&req.Username, "username", "", "username")
		fs.StringVar(&req.Email, "email", "", "email address")
		fs.StringVar(&req.Password, "password", "", "password")
		fs.StringVar(&req.FullName, "name", "", "full name")
		_ = fs.Parse(args)

		if _, err := auth.Register(ctx, req); err != nil {
			fatal("register failed", err)
		}
		fmt.Println("registered, now run: mangalib auth login")
	case "logout":
		auth.Logout(ctx)
		fmt.Println("logged out")
	case "whoami":
		if !auth.IsLoggedIn(ctx) {
			fmt.Println("not logged in")
			os.Exit(1)
		}
		p, err := auth.RefreshProfile(ctx)
		if err != nil {
			if cached := auth.StoredProfile(ctx); cached != nil {
				fmt.Fprintln(os.Stderr, apierr.FormatErrorMessage(err)+", showing cached profile")
				printJSON(cached)
				return
			}
			fatal("whoami failed", err)
		}
		printJSON(p)
	default:
		log.Fatal("usage: mangalib auth <login|register|logout|whoami>")
	}
}

func (a *app) handleCatalog(ctx context.Context, sub string, args []string) {
	agg := catalog.NewFromConfig(a.cfg, a.mon, a.log)
	switch sub {
	case "search":
		fs := flag.NewFlagSet("catalog search", flag.ExitOnError)
		query := fs.String("q", "", "title query")
		limit := fs.Int("limit", 20, "results per provider")
		status := fs.String("status", "", "comma-separated status filter")
		_ = fs.Parse(args)

		p := catalog.SearchParams{Query: *query, Limit: *limit, Page: 1}
		if *status != "" {
			p.Status = strings.Split(*status, ",")
		}
		res := agg.Search(ctx, p)
		for name, msg := range res.ErrorMessages() {
			fmt.Fprintf(os.Stderr, "%s: %s\n", name, msg)
		}
		for _, d := range res.Documents {
			fmt.Printf("%-9s %-40s %-12s %s\n", d.Source, d.ID, d.CategoryID, d.Title)
		}
	case "show":
		fs := flag.NewFlagSet("catalog show", flag.ExitOnError)
		provider := fs.String("provider", catalog.SourceMangaDex, "provider name")
		id := fs.String("id", "", "document id (MangaDex uuid or NetTrom slug)")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("document id is required")
		}

		doc, err := agg.GetByID(ctx, *provider, *id)
		if err != nil {
			fatal("show failed", err)
		}
		printJSON(doc)
	case "categories":
		cats, errs := agg.Categories(ctx)
		for name, err := range errs {
			fmt.Fprintf(os.Stderr, "%s: %s\n", name, apierr.FormatErrorMessage(err))
		}
		printJSON(cats)
	default:
		log.Fatal("usage: mangalib catalog <search|show|categories>")
	}
}

func (a *app) handleBooks(ctx context.Context, sub string, args []string) {
	books := services.NewBookService(a.api, a.log)
	switch sub {
	case "list":
		fs := flag.NewFlagSet("books list", flag.ExitOnError)
		page := fs.Int("page", 0, "page number, from 0")
		size := fs.Int("size", services.DefaultPageSize, "page size")
		sort := fs.String("sort", services.DefaultSort, "field,direction")
		_ = fs.Parse(args)

		res, err := books.List(ctx, *page, *size, *sort)
		if err != nil {
			fatal("list failed", err)
		}
		printJSON(res)
	case "search":
		fs := flag.NewFlagSet("books search", flag.ExitOnError)
		keyword := fs.String("q", "", "keyword")
		page := fs.Int("page", 0, "page number, from 0")
		size := fs.Int("size", services.DefaultPageSize, "page size")
		_ = fs.Parse(args)

		res, err := books.Search(ctx, *keyword, *page, *size)
		if err != nil {
			fatal("search failed", err)
		}
		printJSON(res)
	default:
		log.Fatal("usage: mangalib books <list|search>")
	}
}

// handleFeed follows the gateway's live call feed.
func handleFeed(ctx context.Context, sub string, args []string) {
	switch sub {
	case "tcp":
		fs := flag.NewFlagSet("feed tcp", flag.ExitOnError)
		addr := fs.String("addr", "localhost:7070", "feed address")
		_ = fs.Parse(args)
		if err := followTCP(ctx, *addr); err != nil {
			log.Fatalf("feed: %v", err)
		}
	case "ws":
		fs := flag.NewFlagSet("feed ws", flag.ExitOnError)
		gateway := fs.String("gateway", "http://localhost:8080", "gateway base URL")
		_ = fs.Parse(args)
		if err := followWS(ctx, *gateway); err != nil {
			log.Fatalf("feed: %v", err)
		}
	default:
		log.Fatal("usage: mangalib feed <tcp|ws>")
	}
}

func followTCP(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		fmt.Println(sc.Text())
	}
	if ctx.Err() != nil {
		return nil
	}
	return sc.Err()
}

func followWS(ctx context.Context, gateway string) error {
	u, err := url.Parse(gateway)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fmt.Println(string(msg))
	}
}

// fatal prints the user-facing message, with field errors when the
// server listed any.
func fatal(what string, err error) {
	log.Fatalf("%s: %s", what, apierr.FormatDetailedErrorMessage(err))
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("print: %v", err)
	}
}

func printUsage() {
	fmt.Println(`mangalib [-config file] [-env profile] [-monitor] <command> <sub> [flags]

  auth login -username u -password p
  auth register -username u -email e -password p -name n
  auth logout
  auth whoami
  catalog search -q title [-limit n] [-status ongoing,completed]
  catalog show -provider mangadex|nettrom -id id
  catalog categories
  books list [-page n] [-size n] [-sort createdAt,desc]
  books search -q keyword
  feed tcp [-addr host:port]
  feed ws [-gateway url]`)
}
