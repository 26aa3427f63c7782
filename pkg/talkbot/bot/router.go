// router.go dispatches one inbound message to the right capability chain.
//
// Dispatch rules:
//   - commands mutate the session store and answer immediately
//   - text while awaiting an image prompt goes to image generation
//   - plain text goes to completion, then optionally to synthesis
//   - voice goes to transcription first, then down the text path
//   - photos go to text extraction only
//
// Chained stages run strictly in order; the first failure answers the user
// and aborts the rest of the chain. All handling for one user is serialized
// by the session event lock, taken here for the whole dispatch.
package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/capability"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/channels"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/imagegen"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/llm"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/session"
	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/tts"
)

const (
	thinkingText    = "Думаю..."
	generatingText  = "Генерирую изображение..."
	voiceStatusText = "Аудио получено, обрабатываю..."
	recognizedLabel = "Распознанный текст: "
)

func (b *Bot) handleMessage(ctx context.Context, msg *channels.IncomingMessage) {
	logger := b.logger.With(
		"request_id", uuid.NewString()[:8],
		"channel", msg.Channel,
		"user_id", msg.UserID,
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling message", "panic", r)
		}
	}()

	ch, ok := b.deps.Channels.Channel(msg.Channel)
	if !ok {
		logger.Error("message from unregistered channel")
		return
	}

	sess := b.sessions.GetOrCreate(msg.UserID)
	sess.Acquire()
	defer sess.Release()

	switch msg.Type {
	case channels.MessageText:
		text := strings.TrimSpace(msg.Content)
		if text == "" {
			return
		}
		if IsCommand(text) {
			b.deliverText(ctx, logger, ch, msg.ChatID, b.HandleCommand(msg.UserID, text))
			return
		}
		if sess.Snapshot().Mode == session.ModeAwaitingImagePrompt {
			b.handleImagePrompt(ctx, logger, ch, msg.ChatID, msg.UserID, text)
			return
		}
		b.handleChat(ctx, logger, ch, msg.ChatID, sess, text)

	case channels.MessageVoice:
		b.handleVoice(ctx, logger, ch, msg, sess)

	case channels.MessageImage:
		b.handlePhoto(ctx, logger, ch, msg)
	}
}

// handleChat runs the completion stage and delivers the reply, synthesized
// to audio when the session has voice mode on.
func (b *Bot) handleChat(ctx context.Context, logger *slog.Logger, ch channels.Channel, chatID string, sess *session.UserSession, text string) {
	if pc, ok := ch.(channels.PresenceChannel); ok {
		_ = pc.SendTyping(ctx, chatID, channels.MessageText)
	}
	placeholderID, err := ch.Send(ctx, chatID, &channels.OutgoingMessage{Content: thinkingText})
	if err != nil {
		logger.Warn("placeholder send failed", "error", err)
	}

	snap := sess.Snapshot()
	profile, ok := b.sessions.Model(snap.ModelID)
	if !ok {
		b.replaceOrSend(ctx, logger, ch, chatID, placeholderID,
			capability.UserMessage(capability.NewUnknownSelector("completion", snap.ModelID)))
		return
	}

	prompt := b.sessions.BuildPrompt(sess, text)
	reply, err := b.deps.Completer.Complete(ctx, llm.Request{
		Model:       profile.Model,
		Messages:    prompt,
		MaxTokens:   profile.MaxTokens,
		Temperature: profile.Temperature,
	})
	if err != nil {
		// History stays untouched so a retry sends the same prompt.
		logger.Warn("completion failed", "error", err, "kind", capability.KindOf(err).String())
		b.replaceOrSend(ctx, logger, ch, chatID, placeholderID, capability.UserMessage(err))
		return
	}

	b.sessions.AppendTurn(sess.UserID, session.RoleUser, text)
	b.sessions.AppendTurn(sess.UserID, session.RoleAssistant, reply)

	var audio []byte
	var audioMIME string
	if snap.VoiceMode {
		audio, audioMIME = b.synthesize(ctx, logger, ch, chatID, snap.VoiceID, reply)
	}

	units := NewAssembler(ch.MaxTextLen()).Assemble(reply, audio, audioMIME)
	b.deliverUnits(ctx, logger, ch, chatID, placeholderID, units)
}

// synthesize is the soft-fail synthesis stage: any problem logs and returns
// no audio, and the reply goes out as text.
func (b *Bot) synthesize(ctx context.Context, logger *slog.Logger, ch channels.Channel, chatID, voiceID, text string) ([]byte, string) {
	if b.deps.Synthesizer == nil {
		return nil, ""
	}
	voice, ok := b.sessions.Voice(voiceID)
	if !ok {
		logger.Warn("session voice not in registry", "voice", voiceID)
		return nil, ""
	}

	if pc, ok := ch.(channels.PresenceChannel); ok {
		_ = pc.SendTyping(ctx, chatID, channels.MessageVoice)
	}

	audio, mime, err := b.deps.Synthesizer.Synthesize(ctx, text, tts.VoiceParams{
		Voice:   voice.Voice,
		Emotion: voice.Emotion,
	})
	if err != nil {
		logger.Warn("synthesis failed, falling back to text", "error", err)
		return nil, ""
	}
	return audio, mime
}

// handleVoice transcribes the audio, then feeds the transcript down the
// normal chat path. A status message goes out first and is edited to show
// the recognized text, so the user sees what the bot heard before the
// reply arrives. A transcription failure answers the user and stops.
func (b *Bot) handleVoice(ctx context.Context, logger *slog.Logger, ch channels.Channel, msg *channels.IncomingMessage, sess *session.UserSession) {
	if b.deps.Transcriber == nil {
		b.deliverText(ctx, logger, ch, msg.ChatID, "Распознавание речи сейчас недоступно.")
		return
	}
	mc, ok := ch.(channels.MediaChannel)
	if !ok {
		b.deliverText(ctx, logger, ch, msg.ChatID, "Этот канал не поддерживает голосовые сообщения.")
		return
	}

	statusID, err := ch.Send(ctx, msg.ChatID, &channels.OutgoingMessage{Content: voiceStatusText})
	if err != nil {
		logger.Warn("status send failed", "error", err)
	}

	audio, _, err := mc.DownloadMedia(ctx, msg)
	if err != nil {
		logger.Warn("voice download failed", "error", err)
		b.replaceOrSend(ctx, logger, ch, msg.ChatID, statusID, "Не удалось загрузить голосовое сообщение.")
		return
	}

	if pc, ok := ch.(channels.PresenceChannel); ok {
		_ = pc.SendTyping(ctx, msg.ChatID, channels.MessageText)
	}

	transcript, err := b.deps.Transcriber.Transcribe(ctx, audio, "voice.ogg")
	if err != nil {
		logger.Warn("transcription failed", "error", err, "kind", capability.KindOf(err).String())
		b.replaceOrSend(ctx, logger, ch, msg.ChatID, statusID, capability.UserMessage(err))
		return
	}

	b.replaceOrSend(ctx, logger, ch, msg.ChatID, statusID, recognizedLabel+transcript)

	b.handleChat(ctx, logger, ch, msg.ChatID, sess, transcript)
}

// handleImagePrompt runs image generation for a pending /image request.
// The mode resets whatever the outcome: a failed generation must not leave
// the user stuck re-triggering it with every message.
func (b *Bot) handleImagePrompt(ctx context.Context, logger *slog.Logger, ch channels.Channel, chatID string, userID int64, prompt string) {
	defer b.sessions.SetMode(userID, session.ModeIdle)

	if b.deps.ImageGenerator == nil {
		b.deliverText(ctx, logger, ch, chatID, "Генерация изображений сейчас недоступна.")
		return
	}

	if pc, ok := ch.(channels.PresenceChannel); ok {
		_ = pc.SendTyping(ctx, chatID, channels.MessageImage)
	}
	placeholderID, err := ch.Send(ctx, chatID, &channels.OutgoingMessage{Content: generatingText})
	if err != nil {
		logger.Warn("placeholder send failed", "error", err)
	}

	image, err := b.deps.ImageGenerator.Generate(ctx, imagegen.Request{Prompt: prompt})
	if err != nil {
		logger.Warn("image generation failed", "error", err, "kind", capability.KindOf(err).String())
		b.replaceOrSend(ctx, logger, ch, chatID, placeholderID, capability.UserMessage(err))
		return
	}

	b.discardPlaceholder(ctx, logger, ch, chatID, placeholderID)

	mc, ok := ch.(channels.MediaChannel)
	if !ok {
		b.deliverText(ctx, logger, ch, chatID, "Изображение готово, но этот канал не поддерживает отправку файлов.")
		return
	}
	caption := prompt
	if runes := []rune(caption); len(runes) > 200 {
		caption = string(runes[:200]) + "..."
	}
	if _, err := mc.SendMedia(ctx, chatID, &channels.MediaMessage{
		Type:     channels.MessageImage,
		Data:     image,
		MimeType: "image/png",
		Filename: "image.png",
		Caption:  caption,
	}); err != nil {
		logger.Error("image delivery failed", "error", err)
		b.deliverText(ctx, logger, ch, chatID, "Не удалось отправить изображение.")
	}
}

// handlePhoto runs text extraction on an incoming photo. The result goes
// straight back to the user; history and completion are not involved.
func (b *Bot) handlePhoto(ctx context.Context, logger *slog.Logger, ch channels.Channel, msg *channels.IncomingMessage) {
	if b.deps.TextExtractor == nil {
		b.deliverText(ctx, logger, ch, msg.ChatID, "Распознавание текста на фото сейчас недоступно.")
		return
	}
	mc, ok := ch.(channels.MediaChannel)
	if !ok {
		b.deliverText(ctx, logger, ch, msg.ChatID, "Этот канал не поддерживает фотографии.")
		return
	}

	image, _, err := mc.DownloadMedia(ctx, msg)
	if err != nil {
		logger.Warn("photo download failed", "error", err)
		b.deliverText(ctx, logger, ch, msg.ChatID, "Не удалось загрузить фотографию.")
		return
	}

	if pc, ok := ch.(channels.PresenceChannel); ok {
		_ = pc.SendTyping(ctx, msg.ChatID, channels.MessageText)
	}

	text, err := b.deps.TextExtractor.Extract(ctx, image, "photo.jpg")
	if err != nil {
		logger.Warn("text extraction failed", "error", err, "kind", capability.KindOf(err).String())
		b.deliverText(ctx, logger, ch, msg.ChatID, capability.UserMessage(err))
		return
	}
	if text == "" {
		b.deliverText(ctx, logger, ch, msg.ChatID, "На изображении не найдено текста.")
		return
	}
	b.deliverText(ctx, logger, ch, msg.ChatID, "Распознанный текст:\n\n"+text)
}

// deliverUnits sends the assembled units. A single text unit reuses the
// placeholder by editing it in place; anything larger discards the
// placeholder and goes out as fresh messages.
func (b *Bot) deliverUnits(ctx context.Context, logger *slog.Logger, ch channels.Channel, chatID, placeholderID string, units []Unit) {
	if len(units) == 1 && units[0].Audio == nil {
		b.replaceOrSend(ctx, logger, ch, chatID, placeholderID, units[0].Text)
		return
	}

	b.discardPlaceholder(ctx, logger, ch, chatID, placeholderID)

	for _, u := range units {
		if u.Audio != nil {
			mc, ok := ch.(channels.MediaChannel)
			if !ok {
				logger.Warn("channel cannot carry audio, skipping voice unit")
				continue
			}
			if _, err := mc.SendMedia(ctx, chatID, &channels.MediaMessage{
				Type:     channels.MessageVoice,
				Data:     u.Audio,
				MimeType: u.AudioMIME,
				Filename: "voice.ogg",
			}); err != nil {
				logger.Error("voice delivery failed", "error", err)
			}
			continue
		}
		if _, err := ch.Send(ctx, chatID, &channels.OutgoingMessage{Content: u.Text}); err != nil {
			logger.Error("text delivery failed", "error", err)
		}
	}
}

// deliverText chunks and sends a plain text reply with no placeholder.
func (b *Bot) deliverText(ctx context.Context, logger *slog.Logger, ch channels.Channel, chatID, text string) {
	for _, u := range NewAssembler(ch.MaxTextLen()).Assemble(text, nil, "") {
		if _, err := ch.Send(ctx, chatID, &channels.OutgoingMessage{Content: u.Text}); err != nil {
			logger.Error("text delivery failed", "error", err)
		}
	}
}

// replaceOrSend edits the placeholder in place when possible, otherwise
// sends the text as a new message.
func (b *Bot) replaceOrSend(ctx context.Context, logger *slog.Logger, ch channels.Channel, chatID, placeholderID, text string) {
	if ec, ok := ch.(channels.EditableChannel); ok && placeholderID != "" {
		err := ec.Edit(ctx, chatID, placeholderID, text)
		if err == nil {
			return
		}
		logger.Warn("placeholder edit failed", "error", err)
	}
	if _, err := ch.Send(ctx, chatID, &channels.OutgoingMessage{Content: text}); err != nil {
		logger.Error("text delivery failed", "error", err)
	}
}

// discardPlaceholder removes the placeholder message when the channel
// supports deletion.
func (b *Bot) discardPlaceholder(ctx context.Context, logger *slog.Logger, ch channels.Channel, chatID, placeholderID string) {
	if placeholderID == "" {
		return
	}
	if ec, ok := ch.(channels.EditableChannel); ok {
		if err := ec.Delete(ctx, chatID, placeholderID); err != nil {
			logger.Warn("placeholder delete failed", "error", err)
		}
	}
}
