// Package console implements a local REPL channel for trying the bot
// without a messaging platform. Every line typed becomes a text message
// from a fixed local user; responses are printed to stdout. Audio and
// images are written to files in the working directory.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"

	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/channels"
)

// localUserID keys the console session. One console, one user.
const localUserID int64 = 1

// Console implements channels.Channel, MediaChannel and PresenceChannel
// backed by a readline loop.
type Console struct {
	logger   *slog.Logger
	incoming chan *channels.IncomingMessage

	rl        *readline.Instance
	connected atomic.Bool
	lastMsgAt atomic.Int64
	sendSeq   atomic.Int64
}

// New creates a console channel.
func New(logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		logger:   logger.With("component", "console"),
		incoming: make(chan *channels.IncomingMessage, 16),
	}
}

// Name returns "console".
func (c *Console) Name() string { return "console" }

// Connect starts the readline loop.
func (c *Console) Connect(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		InterruptPrompt: "^C",
	})
	if err != nil {
		return fmt.Errorf("console: initializing readline: %w", err)
	}
	c.rl = rl
	c.connected.Store(true)

	go c.readLoop(ctx)
	return nil
}

func (c *Console) readLoop(ctx context.Context) {
	defer close(c.incoming)

	for {
		line, err := c.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			// io.EOF on ^D ends the session.
			c.connected.Store(false)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		c.lastMsgAt.Store(time.Now().Unix())
		msg := &channels.IncomingMessage{
			ID:        fmt.Sprintf("console-%d", time.Now().UnixNano()),
			Channel:   c.Name(),
			UserID:    localUserID,
			FromName:  "local",
			ChatID:    "console",
			Type:      channels.MessageText,
			Content:   line,
			Timestamp: time.Now(),
		}

		select {
		case c.incoming <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// Disconnect closes the readline instance.
func (c *Console) Disconnect() error {
	if !c.connected.Swap(false) {
		return nil
	}
	if c.rl != nil {
		c.rl.Close()
	}
	return nil
}

// Send prints the message to stdout.
func (c *Console) Send(ctx context.Context, to string, msg *channels.OutgoingMessage) (string, error) {
	fmt.Printf("bot> %s\n", msg.Content)
	return fmt.Sprintf("out-%d", c.sendSeq.Add(1)), nil
}

// Edit is best-effort on a terminal: the replacement is printed as a new line.
func (c *Console) Edit(ctx context.Context, to, messageID, text string) error {
	fmt.Printf("bot> %s\n", text)
	return nil
}

// Delete is a no-op on a terminal.
func (c *Console) Delete(ctx context.Context, to, messageID string) error {
	return nil
}

// SendMedia writes the media bytes to a file and prints its path.
func (c *Console) SendMedia(ctx context.Context, to string, media *channels.MediaMessage) (string, error) {
	name := media.Filename
	if name == "" {
		switch media.Type {
		case channels.MessageVoice:
			name = fmt.Sprintf("voice-%d.ogg", time.Now().Unix())
		case channels.MessageImage:
			name = fmt.Sprintf("image-%d.png", time.Now().Unix())
		default:
			return "", channels.ErrMediaNotSupported
		}
	}
	if err := os.WriteFile(name, media.Data, 0o644); err != nil {
		return "", fmt.Errorf("console: writing media file: %w", err)
	}
	if media.Caption != "" {
		fmt.Printf("bot> %s\n", media.Caption)
	}
	fmt.Printf("bot> [saved %s, %d bytes]\n", name, len(media.Data))
	return name, nil
}

// DownloadMedia reads a local file path carried in the media handle.
func (c *Console) DownloadMedia(ctx context.Context, msg *channels.IncomingMessage) ([]byte, string, error) {
	if msg.Media == nil || msg.Media.FileID == "" {
		return nil, "", fmt.Errorf("console: message has no media")
	}
	f, err := os.Open(msg.Media.FileID)
	if err != nil {
		return nil, "", fmt.Errorf("console: opening media file: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("console: reading media file: %w", err)
	}
	return data, msg.Media.MimeType, nil
}

// SendTyping is a no-op on a terminal.
func (c *Console) SendTyping(ctx context.Context, to string, action channels.MessageType) error {
	return nil
}

// IsConnected reports whether the read loop is active.
func (c *Console) IsConnected() bool { return c.connected.Load() }

// MaxTextLen returns a generous limit; terminals do not chunk.
func (c *Console) MaxTextLen() int { return 1 << 16 }

// Health returns the channel health status.
func (c *Console) Health() channels.HealthStatus {
	return channels.HealthStatus{
		Connected:     c.connected.Load(),
		LastMessageAt: time.Unix(c.lastMsgAt.Load(), 0),
	}
}

// Receive returns the incoming message stream.
func (c *Console) Receive() <-chan *channels.IncomingMessage {
	return c.incoming
}
