package telegram

import (
	"context"
	"strconv"
	"sync"

	"github.com/calbot/calbot/pkg/chat"
	"github.com/calbot/calbot/pkg/user"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// maxPendingPerChat bounds the backlog of one chat; further messages are dropped.
const maxPendingPerChat = 64

// Handler produces the reply to one incoming message.
type Handler interface {
	Handle(ctx context.Context, in chat.Incoming) string
}

// Sender delivers outgoing messages; *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Dispatcher fans updates out to one worker per chat, so messages of a chat are
// answered in arrival order while different chats are served concurrently. A worker
// exits as soon as its chat has nothing pending.
type Dispatcher struct {
	handler Handler
	sender  Sender

	mu      sync.Mutex
	pending map[int64][]*tgbotapi.Message
	wg      sync.WaitGroup
}

func NewDispatcher(handler Handler, sender Sender) *Dispatcher {
	return &Dispatcher{
		handler: handler,
		sender:  sender,
		pending: make(map[int64][]*tgbotapi.Message),
	}
}

// Run consumes updates until the channel is closed or ctx is done, then waits for
// queued messages to be answered.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	defer d.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			d.dispatch(ctx, update)
		}
	}
}

// dispatch never blocks on a busy chat.
func (d *Dispatcher) dispatch(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		log.Tracef("Ignoring update %d", update.UpdateID)
		return
	}
	chatID := msg.Chat.ID
	log.Debugf("Update %d from chat %d", update.UpdateID, chatID)

	d.mu.Lock()
	defer d.mu.Unlock()

	queue, active := d.pending[chatID]
	if len(queue) >= maxPendingPerChat {
		log.Warnf("Dropping update %d, chat %d has %d messages pending", update.UpdateID, chatID, len(queue))
		return
	}
	d.pending[chatID] = append(queue, msg)
	if !active {
		d.wg.Add(1)
		go d.work(context.WithoutCancel(ctx), chatID)
	}
}

// next pops the oldest pending message of chatID, or retires the chat when none is left.
func (d *Dispatcher) next(chatID int64) (*tgbotapi.Message, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	queue := d.pending[chatID]
	if len(queue) == 0 {
		delete(d.pending, chatID)
		return nil, false
	}
	msg := queue[0]
	queue[0] = nil
	d.pending[chatID] = queue[1:]
	return msg, true
}

func (d *Dispatcher) work(ctx context.Context, chatID int64) {
	defer d.wg.Done()
	for {
		msg, ok := d.next(chatID)
		if !ok {
			return
		}
		reply := d.handler.Handle(ctx, chat.Incoming{
			Sender: profileOf(msg.From),
			Text:   msg.Text,
		})
		if reply == "" {
			continue
		}
		if _, err := d.sender.Send(tgbotapi.NewMessage(chatID, reply)); err != nil {
			log.Errorf("Failed to send reply to chat %d: %v", chatID, err)
		}
	}
}

func profileOf(from *tgbotapi.User) user.Profile {
	return user.Profile{
		ExternalId: strconv.FormatInt(from.ID, 10),
		Username:   from.UserName,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
	}
}
