// Command chat-console is a terminal client for the admin support chat. It logs in,
// lists the active rooms and keeps the selected room in sync by polling.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"ms-storefront/internal/chat/poller"
	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

var (
	roomColor   = color.New(color.FgCyan, color.Bold)
	staffColor  = color.New(color.FgGreen, color.Bold)
	memberColor = color.New(color.FgYellow, color.Bold)
	errColor    = color.New(color.FgRed)
)

func printRooms(rooms []models.ChatRoom) {
	roomColor.Println("Active rooms:")
	for i, room := range rooms {
		fmt.Printf("  [%d] %s (%s, %d participants)\n", i+1, room.Name, room.Type, len(room.Participants))
	}
	fmt.Println("Commands: /room <n>, /rooms, /leave, /quit. Anything else is sent to the selected room.")
}

func render(messages []models.ChatMessage, seen map[string]bool) {
	for _, msg := range messages {
		if seen[msg.ID] {
			continue
		}
		seen[msg.ID] = true

		who := memberColor
		if msg.IsStaff {
			who = staffColor
		}
		fmt.Printf("%s %s %s\n",
			msg.CreatedAt.Local().Format("15:04:05"),
			who.Sprintf("%s:", msg.SenderUsername),
			msg.Message)
	}
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	baseURL := flag.String("url", "http://localhost"+cfg.Server.Port, "storefront API base URL")
	username := flag.String("user", cfg.Auth.DefaultUsername, "admin username")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "admin password")
	interval := flag.Duration("interval", cfg.Chat.PollInterval, "poll interval")
	flag.Parse()

	log := logger.New(logger.Options{MinLevel: logger.WARN})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := poller.NewHTTPClient(*baseURL)
	if err != nil {
		errColor.Println(err)
		os.Exit(1)
	}

	user, err := client.Login(ctx, *username, *password)
	if err != nil {
		errColor.Printf("Login failed: %v\n", err)
		os.Exit(1)
	}
	color.Green("Logged in as %s (%s)", user.Username, user.Role)

	rooms, err := client.ListRooms(ctx)
	if err != nil {
		errColor.Printf("Failed to fetch chat rooms: %v\n", err)
		os.Exit(1)
	}
	printRooms(rooms)

	updates := make(chan []models.ChatMessage, 1)
	p := poller.New(client, log, poller.Options{
		Interval: *interval,
		Sender:   models.ChatMessageRequest{SenderUsername: user.Username},
		OnUpdate: func(_ string, messages []models.ChatMessage) {
			select {
			case updates <- messages:
			default:
				// a newer full list will follow
			}
		},
		OnError: func(roomID string, err error) {
			errColor.Printf("Refresh of %s failed: %v\n", roomID, err)
		},
	})
	defer p.Close()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	seen := map[string]bool{}
	for {
		select {
		case <-ctx.Done():
			return
		case messages := <-updates:
			render(messages, seen)
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
			case line == "/quit":
				return
			case line == "/leave":
				p.Deselect()
				color.Yellow("Left room")
			case line == "/rooms":
				if rooms, err = client.ListRooms(ctx); err != nil {
					errColor.Printf("Failed to fetch chat rooms: %v\n", err)
					continue
				}
				printRooms(rooms)
			case strings.HasPrefix(line, "/room "):
				n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/room ")))
				if err != nil || n < 1 || n > len(rooms) {
					errColor.Println("Unknown room number")
					continue
				}
				seen = map[string]bool{}
				p.Select(rooms[n-1].ID)
				roomColor.Printf("── %s ──\n", rooms[n-1].Name)
			default:
				if _, err := p.Send(ctx, line); err != nil {
					errColor.Printf("Send failed: %v\n", err)
				}
			}
		}
	}
}
