package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions decides who counts as an admin and what others see.
type AdminOptions struct {
	IsAdmin  func(userID int64) bool
	OnReject tele.HandlerFunc
}

func (o AdminOptions) allowed(c tele.Context) bool {
	if o.IsAdmin == nil {
		return false
	}
	user := c.Sender()
	return user != nil && o.IsAdmin(user.ID)
}

// AdminOnlyMiddleware lets only admins reach next. Without an IsAdmin
// predicate nobody does.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !opts.allowed(c) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
