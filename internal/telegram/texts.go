package telegram

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"zodbot/internal/zodiac"
)

// menuCommands is the client-side command menu registered at startup.
var menuCommands = []tele.Command{
	{Text: "start", Description: "register and show the sign keyboard"},
	{Text: "help", Description: "list available commands"},
	{Text: "signs", Description: "show the twelve signs"},
	{Text: "set_sign", Description: "pick your zodiac sign"},
	{Text: "set_time", Description: "pick your delivery hour (0-23)"},
	{Text: "subscribe", Description: "turn daily delivery on"},
	{Text: "unsubscribe", Description: "turn daily delivery off"},
	{Text: "me", Description: "show your current settings"},
	{Text: "today", Description: "today's horoscope right now"},
	{Text: "models", Description: "list reply backends"},
	{Text: "set_model", Description: "switch the reply backend"},
	{Text: "characters", Description: "list reply personas"},
	{Text: "set_character", Description: "pick your persona"},
	{Text: "ask", Description: "ask the stars a free-form question"},
	{Text: "note_add", Description: "save a note"},
	{Text: "note_list", Description: "show your latest notes"},
	{Text: "note_del", Description: "delete a note by id"},
}

const welcomeText = `Hi! I deliver a short daily horoscope.

Pick your sign with the keyboard below (or /set_sign <sign>),
then /set_time <hour> if 09:00 does not suit you.
/help shows everything I can do.`

const helpText = `Commands:
/signs - the twelve signs
/set_sign <sign> - pick your sign
/set_time <0-23> - delivery hour
/subscribe, /unsubscribe - daily delivery on/off
/me - your current settings
/today - today's horoscope right now

/ask <question> - ask the stars (persona-flavoured reply)
/models, /set_model <id> - reply backend
/characters, /set_character <id> - reply persona

/note_add <text> - save a note
/note_list - latest notes
/note_del <id> - delete a note`

// signKeyboard is the persistent reply keyboard: twelve signs, three per row.
func signKeyboard() *tele.ReplyMarkup {
	mk := &tele.ReplyMarkup{ResizeKeyboard: true}
	var rows []tele.Row
	for i := 0; i < len(zodiac.Signs); i += 3 {
		var btns []tele.Btn
		for _, s := range zodiac.Signs[i : i+3] {
			btns = append(btns, mk.Text(zodiac.Emoji(s)+" "+zodiac.Title(s)))
		}
		rows = append(rows, mk.Row(btns...))
	}
	mk.Reply(rows...)
	return mk
}

func signsText() string {
	var b strings.Builder
	b.WriteString("The twelve signs:\n")
	for _, s := range zodiac.Signs {
		fmt.Fprintf(&b, "%s %s\n", zodiac.Emoji(s), zodiac.Title(s))
	}
	b.WriteString("\nSet yours with /set_sign <sign> or the keyboard.")
	return b.String()
}
