// commands.go implements the slash commands. Commands mutate the session
// store directly and answer immediately; they never reach the completion
// backend or the conversation history.
package bot

import (
	"fmt"
	"strings"

	"github.com/hleserg/neuroapi-talk-bot/pkg/talkbot/session"
)

const helpText = `Я голосовой ассистент на базе NeuroAPI.

Просто напиши сообщение или отправь голосовое, и я отвечу.
Отправь фото с текстом, и я распознаю его.

Команды:
/models — список доступных моделей
/model <id> — выбрать модель
/voices — список голосов
/voice <id> — выбрать голос
/voice_on — отвечать голосом
/voice_off — отвечать только текстом
/voice_status — текущий режим ответа
/image — сгенерировать изображение
/cancel — отменить генерацию изображения
/current — текущие настройки
/clear — очистить историю диалога
/status — состояние сервисов`

// IsCommand reports whether a text message is a slash command.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// HandleCommand executes one command for the user and returns the reply
// text. Any command other than /image drops a pending image prompt, so a
// user cannot get stuck in that mode by switching activities.
func (b *Bot) HandleCommand(userID int64, text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	cmd := fields[0]
	// Telegram appends the bot username in group chats.
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	if cmd != "/image" {
		b.sessions.SetMode(userID, session.ModeIdle)
	}

	switch cmd {
	case "/start":
		return "Привет! " + helpText
	case "/help":
		return helpText
	case "/models":
		return b.listModels()
	case "/model":
		return b.selectModel(userID, arg)
	case "/voices":
		return b.listVoices()
	case "/voice":
		return b.selectVoice(userID, arg)
	case "/voice_on":
		b.sessions.SetVoiceMode(userID, true)
		return "Теперь я буду отвечать голосом."
	case "/voice_off":
		b.sessions.SetVoiceMode(userID, false)
		return "Теперь я буду отвечать только текстом."
	case "/voice_status":
		return b.voiceStatus(userID)
	case "/current":
		return b.currentSettings(userID)
	case "/clear":
		b.sessions.ClearHistory(userID)
		return "История диалога очищена."
	case "/status":
		return b.serviceStatus(userID)
	case "/image":
		b.sessions.SetMode(userID, session.ModeAwaitingImagePrompt)
		return "Опиши изображение, которое нужно сгенерировать. /cancel — отменить."
	case "/cancel":
		return "Хорошо, генерация отменена."
	default:
		return "Неизвестная команда. /help — список команд."
	}
}

func (b *Bot) listModels() string {
	var sb strings.Builder
	sb.WriteString("Доступные модели:\n")
	for _, m := range b.sessions.Models() {
		fmt.Fprintf(&sb, "\n%s — %s\n  %s\n  выбрать: /model %s\n", m.ID, m.Name, m.Description, m.ID)
	}
	return sb.String()
}

func (b *Bot) selectModel(userID int64, id string) string {
	if id == "" {
		return "Укажи модель: /model <id>. Список — /models."
	}
	if !b.sessions.SetModel(userID, id) {
		return fmt.Sprintf("Модель %q не найдена. Список — /models.", id)
	}
	m, _ := b.sessions.Model(id)
	return fmt.Sprintf("Модель переключена на %s.", m.Name)
}

func (b *Bot) listVoices() string {
	var sb strings.Builder
	sb.WriteString("Доступные голоса:\n")
	for _, v := range b.sessions.Voices() {
		fmt.Fprintf(&sb, "\n%s — %s\n  %s\n  выбрать: /voice %s\n", v.ID, v.Name, v.Description, v.ID)
	}
	return sb.String()
}

func (b *Bot) selectVoice(userID int64, id string) string {
	if id == "" {
		return "Укажи голос: /voice <id>. Список — /voices."
	}
	if !b.sessions.SetVoice(userID, id) {
		return fmt.Sprintf("Голос %q не найден. Список — /voices.", id)
	}
	v, _ := b.sessions.Voice(id)
	return fmt.Sprintf("Голос переключен на %s.", v.Name)
}

func (b *Bot) voiceStatus(userID int64) string {
	snap := b.sessions.GetOrCreate(userID).Snapshot()
	if snap.VoiceMode {
		return "Голосовой режим включен. /voice_off — отключить."
	}
	return "Голосовой режим выключен. /voice_on — включить."
}

func (b *Bot) currentSettings(userID int64) string {
	snap := b.sessions.GetOrCreate(userID).Snapshot()

	modelName := snap.ModelID
	if m, ok := b.sessions.Model(snap.ModelID); ok {
		modelName = m.Name
	}
	voiceName := snap.VoiceID
	if v, ok := b.sessions.Voice(snap.VoiceID); ok {
		voiceName = v.Name
	}

	mode := "текст"
	if snap.VoiceMode {
		mode = "голос"
	}
	return fmt.Sprintf("Модель: %s\nГолос: %s\nРежим ответа: %s\nСообщений в истории: %d",
		modelName, voiceName, mode, len(snap.History))
}

func (b *Bot) serviceStatus(userID int64) string {
	var sb strings.Builder
	sb.WriteString(b.currentSettings(userID))

	if b.deps.Monitor != nil {
		statuses := b.deps.Monitor.Statuses()
		if len(statuses) > 0 {
			sb.WriteString("\n\nСервисы:")
			for _, st := range statuses {
				mark := "✅"
				if !st.Healthy {
					mark = "❌"
				}
				fmt.Fprintf(&sb, "\n%s %s", mark, st.Name)
				if !st.Healthy && st.Detail != "" {
					fmt.Fprintf(&sb, " (%s)", st.Detail)
				}
			}
		}
	}
	return sb.String()
}
