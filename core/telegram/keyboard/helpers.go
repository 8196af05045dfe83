// Package keyboard builds inline keyboards.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes one inline button. Exactly one of Data, Unique or URL
// drives it: URL opens a link, Unique routes through a registered callback
// with Data as payload, and Data alone is sent back verbatim.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

func (b InlineBtn) inline() tele.InlineButton {
	switch {
	case b.URL != "":
		return tele.InlineButton{Text: b.Text, URL: b.URL}
	case b.Unique != "":
		// telebot encodes Unique and Data as "\f<unique>|<data>" on send.
		return tele.InlineButton{Text: b.Text, Unique: b.Unique, Data: b.Data}
	default:
		return tele.InlineButton{Text: b.Text, Data: b.Data}
	}
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn. Empty
// rows are skipped.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = btn.inline()
		}
		inline = append(inline, r)
	}
	return &tele.ReplyMarkup{InlineKeyboard: inline}
}

// InlineButtons places each button on its own row.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	return InlineButtonsNPerRow(buttons, 1)
}

// InlineButtonsNPerRow splits buttons into rows of at most n.
func InlineButtonsNPerRow(buttons []InlineBtn, n int) *tele.ReplyMarkup {
	if n < 1 {
		n = 1
	}
	var rows [][]InlineBtn
	for i := 0; i < len(buttons); i += n {
		rows = append(rows, buttons[i:min(i+n, len(buttons))])
	}
	return InlineButtonsRows(rows...)
}
