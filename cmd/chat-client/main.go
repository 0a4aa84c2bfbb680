package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"lawlink-chat/internal/config"
	"lawlink-chat/internal/domain"
	"lawlink-chat/internal/history"
	"lawlink-chat/internal/identity"
	"lawlink-chat/internal/mediatoken"
	"lawlink-chat/internal/session"
	"lawlink-chat/internal/transport"
	"lawlink-chat/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := logger.Init(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	provider := identity.NewProvider(cfg.Client.UserID, cfg.Client.DisplayName, cfg.Auth.Secret, cfg.Auth.TokenTTL)
	authToken, err := provider.AuthToken(ctx)
	if err != nil {
		logger.Fatal("failed to mint auth token", zap.Error(err))
	}

	adapter, err := transport.Dial(ctx, transport.Options{
		URL:       cfg.Client.WSURL,
		AuthToken: authToken,
		Log:       logger.Log,
	})
	if err != nil {
		logger.Fatal("failed to connect transport", zap.Error(err))
	}
	defer adapter.Close()

	sess, err := session.Mount(ctx, cfg.Client.RoomID, session.Options{
		Transport: adapter,
		History:   history.NewLoader(cfg.Client.APIURL, authToken),
		Identity:  provider,
		Tokens:    mediatoken.NewClient(cfg.Client.APIURL),
		Log:       logger.Log,
		OnChange:  render,
	})
	if err != nil {
		logger.Fatal("failed to mount room session", zap.Error(err))
	}
	defer sess.Unmount()

	fmt.Printf("joined room %s as %s (type a message, or /call video, /hangup, /quit)\n",
		cfg.Client.RoomID, cfg.Client.DisplayName)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit":
			return
		case line == "/hangup":
			sess.LeaveCall()
		case line == "/read":
			sess.MarkRead()
		case strings.HasPrefix(line, "/call"):
			kind := domain.CallVideo
			if strings.HasSuffix(line, "audio") {
				kind = domain.CallAudio
			}
			if err := sess.JoinCall(kind); err != nil {
				fmt.Printf("! %v\n", err)
			}
		case strings.HasPrefix(line, "/typing"):
			if err := sess.SetTyping(!strings.HasSuffix(line, "off")); err != nil {
				fmt.Printf("! %v\n", err)
			}
		case line != "":
			if err := sess.SendMessage(line); err != nil {
				fmt.Printf("! %v\n", err)
			}
		}
	}
}

// render prints the latest snapshot line by line
func render(snap session.Snapshot) {
	fmt.Print("\033[H\033[2J") // clear screen
	status := "online"
	if !snap.Connected {
		status = "offline"
	}
	fmt.Printf("room %s [%s] call:%s unread:%d\n", snap.RoomID, status, snap.Call.State, snap.Unread)
	fmt.Println(strings.Repeat("-", 60))

	for _, entry := range snap.Timeline {
		marker := " "
		switch entry.State {
		case domain.EntryProvisional:
			marker = "…"
		case domain.EntryExpired:
			marker = "✗"
		}
		who := entry.SenderID
		if entry.IsSelf {
			who = "me"
		}
		body := entry.Body
		if entry.Kind != domain.KindText {
			body = fmt.Sprintf("[%s] %s", entry.Kind, entry.FileName)
		}
		fmt.Printf("%s %s: %s\n", marker, who, body)
	}

	for _, p := range snap.Presence {
		fmt.Printf("%s is typing...\n", p.DisplayName)
	}
}
