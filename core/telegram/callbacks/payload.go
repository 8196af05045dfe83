package callbacks

import (
	"strconv"

	tele "gopkg.in/telebot.v4"
)

// PayloadInt parses the callback payload as int.
func PayloadInt(c tele.Context) (int, error) {
	return strconv.Atoi(CallbackPayload(c))
}

// PayloadIntOr parses the callback payload as int, returning def on any error.
func PayloadIntOr(c tele.Context, def int) int {
	n, err := PayloadInt(c)
	if err != nil {
		return def
	}
	return n
}
