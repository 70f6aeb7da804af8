package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"zodbot/internal/horoscope"
	"zodbot/internal/openrouter"
	"zodbot/internal/storage"
	"zodbot/internal/zodiac"
	logx "zodbot/pkg/logx"
)

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/help", b.handleHelp)
	b.bot.Handle("/signs", b.handleSigns)
	b.bot.Handle("/set_sign", b.handleSetSign)
	b.bot.Handle("/set_time", b.handleSetTime)
	b.bot.Handle("/subscribe", b.handleSubscribe)
	b.bot.Handle("/unsubscribe", b.handleUnsubscribe)
	b.bot.Handle("/me", b.handleMe)
	b.bot.Handle("/today", b.handleToday)
	b.bot.Handle("/models", b.handleModels)
	b.bot.Handle("/set_model", b.handleSetModel)
	b.bot.Handle("/characters", b.handleCharacters)
	b.bot.Handle("/set_character", b.handleSetCharacter)
	b.bot.Handle("/ask", b.handleAsk)
	b.bot.Handle("/note_add", b.handleNoteAdd)
	b.bot.Handle("/note_list", b.handleNoteList)
	b.bot.Handle("/note_del", b.handleNoteDel)

	// Bare text doubles as sign selection so the reply keyboard works.
	b.bot.Handle(tele.OnText, b.handleText)
}

// fail logs the storage/transport error and sends a generic apology; user
// mistakes get their own specific replies and never reach here.
func (b *Bot) fail(c tele.Context, op string, err error) error {
	b.log.Error(op+" failed", logx.Int64("user_id", c.Sender().ID), logx.Err(err))
	return c.Send("Something went wrong on my side, please try again.")
}

func (b *Bot) handleStart(c tele.Context) error {
	ctx, cancel := b.opCtx()
	defer cancel()
	if err := b.store.EnsureUser(ctx, c.Sender().ID); err != nil {
		return b.fail(c, "start", err)
	}
	return c.Send(welcomeText, signKeyboard())
}

func (b *Bot) handleHelp(c tele.Context) error {
	return c.Send(helpText)
}

func (b *Bot) handleSigns(c tele.Context) error {
	return c.Send(signsText(), signKeyboard())
}

func (b *Bot) setSign(c tele.Context, raw string) error {
	sign, ok := zodiac.Normalize(raw)
	if !ok {
		return c.Send("I don't know that sign. /signs lists all twelve.")
	}
	ctx, cancel := b.opCtx()
	defer cancel()
	if err := b.store.EnsureUser(ctx, c.Sender().ID); err != nil {
		return b.fail(c, "set_sign", err)
	}
	if err := b.store.SetSign(ctx, c.Sender().ID, sign); err != nil {
		return b.fail(c, "set_sign", err)
	}
	return c.Send(fmt.Sprintf("%s %s it is. Your horoscope arrives daily; /today for a preview.",
		zodiac.Emoji(sign), zodiac.Title(sign)))
}

func (b *Bot) handleSetSign(c tele.Context) error {
	payload := strings.TrimSpace(c.Message().Payload)
	if payload == "" {
		return c.Send("Usage: /set_sign <sign>, e.g. /set_sign leo")
	}
	return b.setSign(c, payload)
}

// handleText resolves reply-keyboard presses ("♈ Aries") and bare sign
// names; anything else gets a gentle pointer to /help.
func (b *Bot) handleText(c tele.Context) error {
	text := c.Text()
	if _, ok := zodiac.Normalize(text); ok {
		return b.setSign(c, text)
	}
	// Keyboard buttons carry an emoji prefix; try the trailing word.
	if fields := strings.Fields(text); len(fields) > 1 {
		if _, ok := zodiac.Normalize(fields[len(fields)-1]); ok {
			return b.setSign(c, fields[len(fields)-1])
		}
	}
	return c.Send("Not sure what you mean. /help lists what I can do.")
}

func (b *Bot) handleSetTime(c tele.Context) error {
	payload := strings.TrimSpace(c.Message().Payload)
	hour, err := strconv.Atoi(payload)
	if err != nil || hour < 0 || hour > 23 {
		return c.Send("Usage: /set_time <0-23>, e.g. /set_time 8")
	}
	ctx, cancel := b.opCtx()
	defer cancel()
	if err := b.store.EnsureUser(ctx, c.Sender().ID); err != nil {
		return b.fail(c, "set_time", err)
	}
	if err := b.store.SetNotifyHour(ctx, c.Sender().ID, hour); err != nil {
		return b.fail(c, "set_time", err)
	}
	return c.Send(fmt.Sprintf("Done, expect your horoscope around %02d:00.", hour))
}

func (b *Bot) setSubscribed(c tele.Context, on bool, reply string) error {
	ctx, cancel := b.opCtx()
	defer cancel()
	if err := b.store.EnsureUser(ctx, c.Sender().ID); err != nil {
		return b.fail(c, "subscribe", err)
	}
	if err := b.store.SetSubscribed(ctx, c.Sender().ID, on); err != nil {
		return b.fail(c, "subscribe", err)
	}
	return c.Send(reply)
}

func (b *Bot) handleSubscribe(c tele.Context) error {
	return b.setSubscribed(c, true, "Daily delivery is on. Make sure your sign is set (/me).")
}

func (b *Bot) handleUnsubscribe(c tele.Context) error {
	return b.setSubscribed(c, false, "Daily delivery is off. /subscribe brings it back any time.")
}

func (b *Bot) handleMe(c tele.Context) error {
	ctx, cancel := b.opCtx()
	defer cancel()
	if err := b.store.EnsureUser(ctx, c.Sender().ID); err != nil {
		return b.fail(c, "me", err)
	}
	u, err := b.store.GetUser(ctx, c.Sender().ID)
	if err != nil {
		return b.fail(c, "me", err)
	}

	sign := "not set"
	if u.Sign != "" {
		sign = zodiac.Emoji(u.Sign) + " " + zodiac.Title(u.Sign)
	}
	state := "off"
	if u.Subscribed {
		state = "on"
	}
	persona := ""
	if ch, err := b.store.UserCharacter(ctx, c.Sender().ID); err == nil {
		persona = ch.Name
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Sign: %s\nDelivery: %s at %02d:00\n", sign, state, u.NotifyHour)
	if persona != "" {
		fmt.Fprintf(&sb, "Persona: %s\n", persona)
	}
	if u.LastSentDate != "" {
		fmt.Fprintf(&sb, "Last delivered: %s\n", u.LastSentDate)
	}
	return c.Send(sb.String())
}

func (b *Bot) handleToday(c tele.Context) error {
	ctx, cancel := b.opCtx()
	defer cancel()
	if err := b.store.EnsureUser(ctx, c.Sender().ID); err != nil {
		return b.fail(c, "today", err)
	}
	u, err := b.store.GetUser(ctx, c.Sender().ID)
	if err != nil {
		return b.fail(c, "today", err)
	}
	if u.Sign == "" {
		return c.Send("Pick a sign first: /set_sign <sign> or the keyboard.", signKeyboard())
	}
	return c.Send(horoscope.Generate(u.Sign, time.Now()))
}

func (b *Bot) handleModels(c tele.Context) error {
	ctx, cancel := b.opCtx()
	defer cancel()
	models, err := b.store.ListModels(ctx)
	if err != nil {
		return b.fail(c, "models", err)
	}
	var sb strings.Builder
	sb.WriteString("Reply backends (/set_model <id> to switch):\n")
	for _, m := range models {
		marker := "  "
		if m.Active {
			marker = "* "
		}
		fmt.Fprintf(&sb, "%s%d. %s\n", marker, m.ID, m.Label)
	}
	return c.Send(sb.String())
}

func (b *Bot) handleSetModel(c tele.Context) error {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Message().Payload), 10, 64)
	if err != nil {
		return c.Send("Usage: /set_model <id>; /models shows the ids.")
	}
	ctx, cancel := b.opCtx()
	defer cancel()
	m, err := b.store.SetActiveModel(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Send("No backend with that id; /models shows what's available.")
	}
	if err != nil {
		return b.fail(c, "set_model", err)
	}
	b.log.Info("active model switched",
		logx.Int64("user_id", c.Sender().ID), logx.String("model", m.Key))
	return c.Send("Switched to " + m.Label + ".")
}

func (b *Bot) handleCharacters(c tele.Context) error {
	ctx, cancel := b.opCtx()
	defer cancel()
	chars, err := b.store.ListCharacters(ctx)
	if err != nil {
		return b.fail(c, "characters", err)
	}
	var sb strings.Builder
	sb.WriteString("Personas (/set_character <id> to pick):\n")
	for _, ch := range chars {
		fmt.Fprintf(&sb, "%d. %s\n", ch.ID, ch.Name)
	}
	return c.Send(sb.String())
}

func (b *Bot) handleSetCharacter(c tele.Context) error {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Message().Payload), 10, 64)
	if err != nil {
		return c.Send("Usage: /set_character <id>; /characters shows the ids.")
	}
	ctx, cancel := b.opCtx()
	defer cancel()
	if err := b.store.EnsureUser(ctx, c.Sender().ID); err != nil {
		return b.fail(c, "set_character", err)
	}
	ch, err := b.store.SetUserCharacter(ctx, c.Sender().ID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Send("No persona with that id; /characters shows what's available.")
	}
	if err != nil {
		return b.fail(c, "set_character", err)
	}
	return c.Send(ch.Name + " will answer your questions from now on.")
}

func (b *Bot) handleAsk(c tele.Context) error {
	question := strings.TrimSpace(c.Message().Payload)
	if question == "" {
		return c.Send("Usage: /ask <question>")
	}
	if b.ai == nil || !b.ai.Configured() {
		return c.Send("Free-form questions are disabled on this instance.")
	}

	ctx, cancel := b.opCtx()
	persona, perr := b.store.UserCharacter(ctx, c.Sender().ID)
	model, merr := b.store.ActiveModel(ctx)
	var sign string
	if u, err := b.store.GetUser(ctx, c.Sender().ID); err == nil {
		sign = u.Sign
	}
	cancel()
	if perr != nil {
		return b.fail(c, "ask", perr)
	}
	if merr != nil {
		return b.fail(c, "ask", merr)
	}

	system := persona.Prompt
	if sign != "" {
		system += " The person asking is a " + zodiac.Title(sign) + "."
	}

	if err := c.Notify(tele.Typing); err != nil {
		b.log.Debug("typing notify failed", logx.Err(err))
	}

	// Completion calls get their own generous bound; opCtx is too tight.
	b.mu.Lock()
	base := b.baseCtx
	b.mu.Unlock()
	if base == nil {
		base = context.Background()
	}
	askCtx, cancelAsk := context.WithTimeout(base, 90*time.Second)
	defer cancelAsk()

	answer, elapsed, err := b.ai.Chat(askCtx, model.Key, []openrouter.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: question},
	})
	if err != nil {
		var oe *openrouter.Error
		if errors.As(err, &oe) {
			b.log.Warn("completion failed",
				logx.Int64("user_id", c.Sender().ID),
				logx.Int("status", oe.Status), logx.Err(err))
			return c.Send("The stars are silent: " + oe.Cause)
		}
		return b.fail(c, "ask", err)
	}
	b.log.Info("completion served",
		logx.Int64("user_id", c.Sender().ID),
		logx.String("model", model.Key), logx.Duration("elapsed", elapsed))
	return c.Send(answer)
}

func (b *Bot) handleNoteAdd(c tele.Context) error {
	text := strings.TrimSpace(c.Message().Payload)
	if text == "" {
		return c.Send("Usage: /note_add <text>")
	}
	ctx, cancel := b.opCtx()
	defer cancel()
	if err := b.store.EnsureUser(ctx, c.Sender().ID); err != nil {
		return b.fail(c, "note_add", err)
	}
	id, err := b.store.AddNote(ctx, c.Sender().ID, text)
	if err != nil {
		return b.fail(c, "note_add", err)
	}
	return c.Send(fmt.Sprintf("Saved as note %d.", id))
}

func (b *Bot) handleNoteList(c tele.Context) error {
	ctx, cancel := b.opCtx()
	defer cancel()
	notes, err := b.store.ListNotes(ctx, c.Sender().ID, 10)
	if err != nil {
		return b.fail(c, "note_list", err)
	}
	if len(notes) == 0 {
		return c.Send("No notes yet. /note_add <text> saves one.")
	}
	var sb strings.Builder
	sb.WriteString("Your latest notes:\n")
	for _, n := range notes {
		fmt.Fprintf(&sb, "%d. %s\n", n.ID, n.Text)
	}
	return c.Send(sb.String())
}

func (b *Bot) handleNoteDel(c tele.Context) error {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Message().Payload), 10, 64)
	if err != nil {
		return c.Send("Usage: /note_del <id>; /note_list shows the ids.")
	}
	ctx, cancel := b.opCtx()
	defer cancel()
	ok, err := b.store.DeleteNote(ctx, c.Sender().ID, id)
	if err != nil {
		return b.fail(c, "note_del", err)
	}
	if !ok {
		return c.Send("No note with that id.")
	}
	return c.Send("Deleted.")
}
