// Package telegram handles the integration with the Telegram Bot API:
// it receives updates, routes commands into the matchmaking engine and
// hands conversation payloads to the relay dispatcher.
package telegram

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"anonchat/backend/internal/engine"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/relay"
	"anonchat/backend/internal/storage"
)

// User-visible notification texts.
const (
	msgWelcome = "Hi! Send /search to find a conversation partner.\n" +
		"/stop ends the current conversation at any time."
	msgSearching      = "⏳ Looking for a partner, hang on..."
	msgMatched        = "✅ Partner found! Say hello."
	msgStopped        = "🚪 You left the conversation. /search to find a new partner."
	msgPartnerLeft    = "🚫 Your partner left the conversation. /search to find a new one."
	msgNoActiveChat   = "You have no active conversation. Send /search to start one."
	msgNoPartner      = "⚠️ You have no partner right now. Send /search first."
	msgDeliveryFailed = "⚠️ Your partner is unreachable, the conversation was closed."
	msgUnsupported    = "This message type can't be forwarded."
	msgUnavailable    = "The service is temporarily unavailable, please try again."
)

// BotService is responsible for the Telegram update loop.
type BotService struct {
	BotAPI *tgbotapi.BotAPI
	Engine *engine.Engine
	Relay  *relay.Dispatcher

	// Users is set when the state backend keeps a users table.
	Users storage.UserDirectory

	httpClient *http.Client
}

// NewBotService authorizes the bot. users may be nil.
func NewBotService(token string, eng *engine.Engine, dispatcher *relay.Dispatcher, users storage.UserDirectory) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("✅ Authorized on account %s", bot.Self.UserName)

	return &BotService{
		BotAPI:     bot,
		Engine:     eng,
		Relay:      dispatcher,
		Users:      users,
		httpClient: http.DefaultClient,
	}, nil
}

// Run is the main loop for receiving Telegram updates.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.BotAPI.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			s.handleMessage(ctx, update.Message)
		}
	}
}

// getOrCreateClient returns the registered transport client for a chat,
// registering a fresh one on first contact.
func (s *BotService) getOrCreateClient(chatID int64) *Client {
	userID := strconv.FormatInt(chatID, 10)
	if existing, ok := s.Relay.Client(userID); ok {
		if client, ok := existing.(*Client); ok {
			return client
		}
	}
	client := newClient(chatID, s.BotAPI)
	s.Relay.Register(client)
	return client
}

func (s *BotService) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	client := s.getOrCreateClient(msg.Chat.ID)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			s.handleStart(ctx, client, msg)
		case "search":
			s.handleSearch(ctx, client)
		case "stop":
			s.handleStop(ctx, client)
		default:
			client.Notify("Unknown command. Use /search or /stop.")
		}
		return
	}

	s.handleRelay(ctx, client, msg)
}

func (s *BotService) handleStart(ctx context.Context, client *Client, msg *tgbotapi.Message) {
	if s.Users != nil {
		displayName := ""
		if msg.From != nil {
			displayName = msg.From.UserName
		}
		if err := s.Users.EnsureUser(ctx, client.UserID(), displayName); err != nil {
			log.Printf("ERROR: failed to register user %s: %v", client.UserID(), err)
		}
	}
	if err := s.Engine.Register(ctx, client.UserID()); err != nil {
		log.Printf("ERROR: presence registration for %s: %v", client.UserID(), err)
	}
	client.Notify(msgWelcome)
	log.Printf("User %s used /start", client.UserID())
}

func (s *BotService) handleSearch(ctx context.Context, client *Client) {
	outcome, err := s.Engine.RequestSearch(ctx, client.UserID())
	if err != nil {
		if errors.Is(err, engine.ErrEngineUnavailable) {
			client.Notify(msgUnavailable)
		}
		log.Printf("ERROR: requestSearch for %s: %v", client.UserID(), err)
		return
	}

	if outcome.ReleasedPartnerID != "" {
		s.notifyUser(outcome.ReleasedPartnerID, msgPartnerLeft)
	}

	if outcome.Queued {
		client.Notify(msgSearching)
		return
	}

	client.Notify(msgMatched)
	s.notifyUser(outcome.PartnerID, msgMatched)
}

func (s *BotService) handleStop(ctx context.Context, client *Client) {
	partner, ok, err := s.Engine.Teardown(ctx, client.UserID(), engine.CauseStop)
	if err != nil {
		if errors.Is(err, engine.ErrEngineUnavailable) {
			client.Notify(msgUnavailable)
		}
		log.Printf("ERROR: teardown for %s: %v", client.UserID(), err)
		return
	}
	if !ok {
		// Not an error: the user may also just be leaving the queue.
		if err := s.Engine.Cancel(ctx, client.UserID()); err != nil {
			log.Printf("ERROR: cancel for %s: %v", client.UserID(), err)
		}
		client.Notify(msgNoActiveChat)
		return
	}
	client.Notify(msgStopped)
	s.notifyUser(partner, msgPartnerLeft)
}

func (s *BotService) handleRelay(ctx context.Context, client *Client, msg *tgbotapi.Message) {
	content, ok := extractContent(msg)
	if !ok {
		client.Notify(msgUnsupported)
		return
	}

	relayMsg := models.RelayMessage{
		SenderID:     client.UserID(),
		Kind:         content.Kind,
		Content:      content.FileID,
		Caption:      content.Text,
		Sequence:     msg.MessageID,
		OriginalName: content.OriginalName,
	}
	if content.Kind == models.KindText {
		relayMsg.Content = content.Text
		relayMsg.Caption = ""
	}

	// Media payloads are downloaded so the relay can persist a copy
	// before forwarding.
	if _, persisted := models.MediaFolder(content.Kind); persisted {
		body, name := s.fetchFile(content.FileID)
		if body != nil {
			defer body.Close()
			relayMsg.Data = body
			if relayMsg.OriginalName == "" {
				relayMsg.OriginalName = name
			}
		}
	}
	if relayMsg.OriginalName == "" {
		relayMsg.OriginalName = string(content.Kind)
	}

	delivery, err := s.Relay.Relay(ctx, relayMsg)
	if err != nil {
		if errors.Is(err, engine.ErrEngineUnavailable) {
			client.Notify(msgUnavailable)
		}
		log.Printf("ERROR: relay from %s: %v", client.UserID(), err)
		return
	}

	switch delivery.Result {
	case relay.NoPartner:
		client.Notify(msgNoPartner)
	case relay.DeliveryFailed:
		client.Notify(msgDeliveryFailed)
	case relay.Delivered:
		if delivery.SavedPath != "" {
			log.Printf("Media saved: %s", delivery.SavedPath)
		}
	}
	if delivery.PersistErr != nil {
		log.Printf("ERROR: media persistence for %s: %v", client.UserID(), delivery.PersistErr)
	}
}

// fetchFile streams a Telegram file for persistence. Failures are
// non-fatal: the message is still forwarded, just not archived.
func (s *BotService) fetchFile(fileID string) (body io.ReadCloser, name string) {
	url, err := s.BotAPI.GetFileDirectURL(fileID)
	if err != nil {
		log.Printf("WARN: failed to resolve file %s: %v", fileID, err)
		return nil, ""
	}
	resp, err := s.httpClient.Get(url)
	if err != nil {
		log.Printf("WARN: failed to download file %s: %v", fileID, err)
		return nil, ""
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		log.Printf("WARN: file download for %s returned %s", fileID, resp.Status)
		return nil, ""
	}
	return resp.Body, path.Base(url)
}

// notifyUser reaches a user through whatever transport they are
// registered on, falling back to a direct Telegram send for numeric ids.
func (s *BotService) notifyUser(userID, text string) {
	if s.Relay.NotifyUser(userID, text) {
		return
	}
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return
	}
	if _, err := s.BotAPI.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("WARN: notification to %s failed: %v", userID, err)
	}
}
