package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const defaultBaseURL = "http://localhost:8080"

type session struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID string `json:"id"`
	} `json:"user"`
}

func main() {
	global := flag.NewFlagSet("anime", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	sessionPath := global.String("session", defaultSessionPath(), "session file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	c := &cli{
		http:        &http.Client{Timeout: 20 * time.Second},
		baseURL:     strings.TrimRight(*baseURL, "/"),
		sessionPath: *sessionPath,
		out:         os.Stdout,
	}
	if !c.dispatch(context.Background(), global.Args()) {
		printUsage(os.Stderr)
		os.Exit(1)
	}
}

// dispatch runs one command and reports whether it was recognised.
func (c *cli) dispatch(ctx context.Context, args []string) bool {
	if len(args) == 0 {
		return false
	}
	cmd := args[0]
	sub := ""
	rest := []string{}
	if len(args) > 1 {
		sub = args[1]
		rest = args[2:]
	}

	switch cmd {
	case "auth":
		c.handleAuth(ctx, sub, rest)
	case "anime":
		c.handleAnime(ctx, sub, rest)
	case "history":
		c.handleHistory(ctx, sub, rest)
	case "favorites":
		c.handleFavorites(ctx, sub, rest)
	case "feed":
		c.handleFeed(sub, rest)
	default:
		return false
	}
	return true
}

type cli struct {
	http        *http.Client
	baseURL     string
	sessionPath string
	out         io.Writer
}

func (c *cli) handleAuth(ctx context.Context, sub string, args []string) {
	switch sub {
	case "login":
		fs := flag.NewFlagSet("auth login", flag.ExitOnError)
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *email == "" || *password == "" {
			log.Fatal("email and password are required")
		}
		c.authenticate(ctx, "/api/auth/login", map[string]string{"email": *email, "password": *password})
		fmt.Fprintln(c.out, "✅ logged in")
	case "register":
		fs := flag.NewFlagSet("auth register", flag.ExitOnError)
		username := fs.String("username", "", "username")
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *username == "" || *email == "" || *password == "" {
			log.Fatal("username, email, and password are required")
		}
		c.authenticate(ctx, "/api/auth/register", map[string]string{"username": *username, "email": *email, "password": *password})
		fmt.Fprintln(c.out, "✅ registered and logged in")
	case "logout":
		if s, err := readSession(c.sessionPath); err == nil && s.Token != "" {
			if err := c.doJSON(ctx, http.MethodPost, "/api/auth/logout", s.Token, nil, nil); err != nil {
				log.Printf("server logout failed: %v", err)
			}
		}
		if err := clearSession(c.sessionPath); err != nil {
			log.Fatalf("logout failed: %v", err)
		}
		fmt.Fprintln(c.out, "✅ logged out")
	default:
		log.Fatal("usage: anime auth <login|register|logout>")
	}
}

func (c *cli) authenticate(ctx context.Context, path string, payload any) {
	var resp authResponse
	if err := c.doJSON(ctx, http.MethodPost, path, "", payload, &resp); err != nil {
		log.Fatalf("%s failed: %v", path, err)
	}
	if err := saveSession(c.sessionPath, session{Token: resp.Token, UserID: resp.User.ID}); err != nil {
		log.Fatalf("save session: %v", err)
	}
}

func (c *cli) handleAnime(ctx context.Context, sub string, args []string) {
	q := url.Values{}
	var path string

	switch sub {
	case "list":
		fs := flag.NewFlagSet("anime list", flag.ExitOnError)
		limit := fs.Int("limit", 20, "titles per page")
		sort := fs.String("sort", "", "updated_at|created_at")
		order := fs.String("order", "", "asc|desc")
		types := fs.String("types", "", "comma-separated material types")
		year := fs.String("year", "", "release year")
		next := fs.String("next", "", "continuation token")
		_ = fs.Parse(args)

		path = "/api/anime/list"
		q.Set("limit", strconv.Itoa(*limit))
		setIf(q, "sort", *sort)
		setIf(q, "order", *order)
		setIf(q, "types", *types)
		setIf(q, "year", *year)
		setIf(q, "next", *next)
	case "search":
		fs := flag.NewFlagSet("anime search", flag.ExitOnError)
		query := fs.String("q", "", "title to search for")
		limit := fs.Int("limit", 20, "titles per page")
		_ = fs.Parse(args)

		if strings.TrimSpace(*query) == "" {
			log.Fatal("q is required")
		}
		path = "/api/anime/search"
		q.Set("title", *query)
		q.Set("limit", strconv.Itoa(*limit))
	case "recent":
		fs := flag.NewFlagSet("anime recent", flag.ExitOnError)
		limit := fs.Int("limit", 12, "titles")
		_ = fs.Parse(args)

		path = "/api/anime/recent"
		q.Set("limit", strconv.Itoa(*limit))
	case "show":
		if len(args) == 0 {
			log.Fatal("usage: anime anime show <material-id>")
		}
		path = "/api/anime/" + url.PathEscape(args[0])
	case "genres":
		path = "/api/anime/genres"
	default:
		log.Fatal("usage: anime anime <list|search|recent|show|genres>")
	}

	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out any
	if err := c.doJSON(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		log.Fatalf("anime %s failed: %v", sub, err)
	}
	c.printJSON(out)
}

func (c *cli) handleHistory(ctx context.Context, sub string, args []string) {
	s := mustSession(c.sessionPath)

	switch sub {
	case "add":
		fs := flag.NewFlagSet("history add", flag.ExitOnError)
		animeID := fs.String("anime-id", "", "catalog material id")
		title := fs.String("title", "", "title")
		image := fs.String("image", "", "poster url")
		progress := fs.Int("progress", 0, "seconds watched")
		season := fs.Int("season", -1, "season number")
		episode := fs.Int("episode", -1, "episode number")
		_ = fs.Parse(args)

		if *animeID == "" {
			log.Fatal("anime-id is required")
		}
		payload := map[string]any{
			"user_id":     s.UserID,
			"anime_id":    *animeID,
			"anime_title": *title,
			"anime_image": *image,
			"progress":    *progress,
		}
		if *season >= 0 {
			payload["season"] = *season
		}
		if *episode >= 0 {
			payload["episode"] = *episode
		}
		var out any
		if err := c.doJSON(ctx, http.MethodPost, "/api/history", s.Token, payload, &out); err != nil {
			log.Fatalf("history add failed: %v", err)
		}
		c.printJSON(out)
	case "list":
		fs := flag.NewFlagSet("history list", flag.ExitOnError)
		limit := fs.Int("limit", 50, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		path := fmt.Sprintf("/api/history/%s?limit=%d&offset=%d", url.PathEscape(s.UserID), *limit, *offset)
		var out any
		if err := c.doJSON(ctx, http.MethodGet, path, s.Token, nil, &out); err != nil {
			log.Fatalf("history list failed: %v", err)
		}
		c.printJSON(out)
	case "rm":
		if len(args) == 0 {
			log.Fatal("usage: anime history rm <anime-id>")
		}
		path := "/api/history/" + url.PathEscape(s.UserID) + "/" + url.PathEscape(args[0])
		if err := c.doJSON(ctx, http.MethodDelete, path, s.Token, nil, nil); err != nil {
			log.Fatalf("history rm failed: %v", err)
		}
		fmt.Fprintln(c.out, "✅ removed from history")
	default:
		log.Fatal("usage: anime history <add|list|rm>")
	}
}

func (c *cli) handleFavorites(ctx context.Context, sub string, args []string) {
	s := mustSession(c.sessionPath)

	switch sub {
	case "add":
		fs := flag.NewFlagSet("favorites add", flag.ExitOnError)
		animeID := fs.String("anime-id", "", "catalog material id")
		title := fs.String("title", "", "title")
		image := fs.String("image", "", "poster url")
		_ = fs.Parse(args)

		if *animeID == "" {
			log.Fatal("anime-id is required")
		}
		payload := map[string]string{
			"user_id":     s.UserID,
			"anime_id":    *animeID,
			"anime_title": *title,
			"anime_image": *image,
		}
		if err := c.doJSON(ctx, http.MethodPost, "/api/favorites", s.Token, payload, nil); err != nil {
			log.Fatalf("favorites add failed: %v", err)
		}
		fmt.Fprintln(c.out, "✅ added to favorites")
	case "list":
		var out any
		if err := c.doJSON(ctx, http.MethodGet, "/api/favorites/"+url.PathEscape(s.UserID), s.Token, nil, &out); err != nil {
			log.Fatalf("favorites list failed: %v", err)
		}
		c.printJSON(out)
	case "check":
		if len(args) == 0 {
			log.Fatal("usage: anime favorites check <anime-id>")
		}
		var out any
		path := "/api/favorites/" + url.PathEscape(s.UserID) + "/" + url.PathEscape(args[0])
		if err := c.doJSON(ctx, http.MethodGet, path, s.Token, nil, &out); err != nil {
			log.Fatalf("favorites check failed: %v", err)
		}
		c.printJSON(out)
	case "rm":
		if len(args) == 0 {
			log.Fatal("usage: anime favorites rm <anime-id>")
		}
		path := "/api/favorites/" + url.PathEscape(s.UserID) + "/" + url.PathEscape(args[0])
		if err := c.doJSON(ctx, http.MethodDelete, path, s.Token, nil, nil); err != nil {
			log.Fatalf("favorites rm failed: %v", err)
		}
		fmt.Fprintln(c.out, "✅ removed from favorites")
	default:
		log.Fatal("usage: anime favorites <add|list|check|rm>")
	}
}

func (c *cli) handleFeed(sub string, args []string) {
	if sub != "listen" {
		log.Fatal("usage: anime feed listen")
	}
	fs := flag.NewFlagSet("feed listen", flag.ExitOnError)
	endpoint := fs.String("url", "", "websocket url (defaults to <api>/ws)")
	_ = fs.Parse(args)

	s := mustSession(c.sessionPath)
	wsURL := *endpoint
	if wsURL == "" {
		var err error
		wsURL, err = websocketURL(c.baseURL, "/ws", s.UserID)
		if err != nil {
			log.Fatalf("websocket url: %v", err)
		}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.Token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		log.Fatalf("dial %s: %v", wsURL, err)
	}
	defer conn.Close()

	fmt.Fprintln(c.out, "listening for activity, ctrl+c to stop")
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Fatalf("feed closed: %v", err)
		}
		fmt.Fprintln(c.out, string(msg))
	}
}

func (c *cli) doJSON(ctx context.Context, method, path, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func (c *cli) printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Fprintln(c.out, string(b))
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.animewave-session.json"
	}
	return filepath.Join(home, ".animewave", "session.json")
}

func saveSession(path string, s session) error {
	if s.Token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readSession(path string) (session, error) {
	var s session
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, err
	}
	s.Token = strings.TrimSpace(s.Token)
	return s, nil
}

func mustSession(path string) session {
	s, err := readSession(path)
	if err != nil {
		log.Fatalf("session not found, please login: %v", err)
	}
	if s.Token == "" || s.UserID == "" {
		log.Fatal("session empty, please login")
	}
	return s
}

func clearSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func websocketURL(baseURL, path, userID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{
		Scheme:   scheme,
		Host:     u.Host,
		Path:     path,
		RawQuery: url.Values{"user_id": {userID}}.Encode(),
	}).String(), nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "anime [-api url] <command> [subcommand] [flags]")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  auth login|register|logout")
	fmt.Fprintln(w, "  anime list|search|recent|show|genres")
	fmt.Fprintln(w, "  history add|list|rm")
	fmt.Fprintln(w, "  favorites add|list|check|rm")
	fmt.Fprintln(w, "  feed listen")
}
