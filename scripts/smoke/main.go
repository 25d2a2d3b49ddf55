package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/vovakirdan/wirechat-client/internal/channel"
	"github.com/vovakirdan/wirechat-client/internal/channel/ws"
	"github.com/vovakirdan/wirechat-client/internal/chat"
	applog "github.com/vovakirdan/wirechat-client/internal/log"
)

func main() {
	if err := run(); err != nil {
		log.Printf("smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/chatHub", "relay endpoint")
	user := flag.String("user", "tester", "author name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger := applog.NewWithWriter(*level, os.Stderr)
	desc, err := channel.NewDescriptor(*addr, channel.WithDialTimeout(*timeout))
	if err != nil {
		return err
	}

	store := chat.NewStore()
	echo := make(chan chat.Message, 1)
	store.Subscribe(func(m chat.Message) {
		if m.Author == *user && m.Body == *text {
			select {
			case echo <- m:
			default:
			}
		}
	})

	manager := chat.NewManager(ws.NewFactory(desc, logger), store, logger, chat.WithEndpoint(desc.Endpoint()))
	defer manager.Stop()

	if err := manager.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("connected to %s\n", desc.Endpoint())

	if err := manager.Send(ctx, *user, *text); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	select {
	case m := <-echo:
		fmt.Printf("echo: %s %s: %q\n", m.ReceivedAt.Format("15:04:05"), m.Author, m.Body)
		return nil
	case <-ctx.Done():
		return errors.New("no echo before timeout")
	}
}
