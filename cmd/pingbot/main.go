// Command pingbot is a minimal smoke-test consumer of the library: it
// replies "pong" to any message whose content is exactly "++ping".
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/smalld-go/smalld"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	client, err := smalld.NewBuilder().Build()
	if err != nil {
		slog.Error("failed to build client", "error", err)
		os.Exit(1)
	}

	client.OnEvent("MESSAGE_CREATE", onMessageCreate)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Run(ctx); err != nil {
		slog.Error("run exited", "error", err)
		os.Exit(1)
	}
}

func onMessageCreate(c any, data json.RawMessage) {
	var msg struct {
		Content   string `json:"content"`
		ChannelID string `json:"channel_id"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("failed to decode MESSAGE_CREATE", "error", err)
		return
	}
	if msg.Content != "++ping" {
		return
	}

	client := c.(*smalld.Client)
	_, err := client.Resource("/channels/"+msg.ChannelID+"/messages").
		Post(context.Background(), map[string]string{"content": "pong"})
	if err != nil {
		slog.Warn("failed to send pong", "error", err)
	}
}
