package gateway

import (
	"log"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramGateway turns chat messages into kitchen goals. Plain text becomes
// a goal, /cancel aborts the running task. Progress notifications go back to
// whichever chat spoke last.
type TelegramGateway struct {
	Bot  *tgbotapi.BotAPI
	Sink GoalSink

	mu         sync.Mutex
	activeChat int64
}

func NewTelegramGateway(token string, sink GoalSink) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{
		Bot:  bot,
		Sink: sink,
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)

		tg.mu.Lock()
		tg.activeChat = update.Message.Chat.ID
		tg.mu.Unlock()

		text := strings.TrimSpace(update.Message.Text)
		switch {
		case text == "/cancel":
			tg.Sink.Cancel()
			tg.reply(update.Message.Chat.ID, "Cancelling the current task...")
		case text == "/start":
			tg.reply(update.Message.Chat.ID, "Tell me what you want done in the kitchen.")
		case text == "":
			// ignore stickers, photos etc.
		default:
			if err := tg.Sink.Submit(text); err != nil {
				log.Printf("Error submitting goal: %v", err)
				tg.reply(update.Message.Chat.ID, "I'm backed up right now, try again in a moment.")
				continue
			}
			tg.reply(update.Message.Chat.ID, "On it: "+text)
		}
	}
	return nil
}

func (tg *TelegramGateway) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := tg.Bot.Send(msg); err != nil {
		log.Printf("Error sending telegram reply: %v", err)
	}
}

// Notify pushes a progress line to the most recent chat. A no-op until
// someone has spoken.
func (tg *TelegramGateway) Notify(text string) error {
	tg.mu.Lock()
	id := tg.activeChat
	tg.mu.Unlock()
	if id == 0 {
		return nil
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = "Markdown"
	_, err := tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
