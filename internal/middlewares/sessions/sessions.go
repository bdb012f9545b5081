package sessions

import (
	"encoding/gob"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

const (
	injectSessionKey = "session"
	sessionDataKey   = "data"
)

// SessionData identifies the requesting subject. Anonymous visitors are keyed
// by their session id so rate limits and CSRF tokens still bind to something
// stable for the session's lifetime.
type SessionData struct {
	id        string    // session id
	IP        string    // client ip address
	UserID    string    // authenticated user id, empty for anonymous
	Tier      string    // subscription tier name, empty for anonymous
	LastSeen  time.Time // last request time
	LoginTime time.Time // last login time
}

func init() {
	gob.Register(SessionData{})
}

func (s SessionData) ID() string {
	return s.id
}

func (s *SessionData) IsLoggedIn() bool {
	return s.UserID != ""
}

// Subject returns the stable identity used by the policy pipeline.
func (s *SessionData) Subject() string {
	if s.UserID != "" {
		return "user:" + s.UserID
	}
	return "anon:" + s.id
}

func Get(ctx *fiber.Ctx) SessionData {
	sess := ctx.Locals(injectSessionKey).(*session.Session)
	data, _ := sess.Get(sessionDataKey).(SessionData)
	data.id = sess.ID()
	return data
}

func Set(ctx *fiber.Ctx, data SessionData) {
	sess := ctx.Locals(injectSessionKey).(*session.Session)
	sess.Set(sessionDataKey, data)
}

func Destroy(ctx *fiber.Ctx) error {
	sess := ctx.Locals(injectSessionKey).(*session.Session)
	return sess.Destroy()
}

func SessionMiddleware(store *session.Store) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		sess, err := store.Get(ctx)
		if err != nil {
			return err
		}

		ctx.Locals(injectSessionKey, sess)
		if err := ctx.Next(); err != nil {
			return err
		}

		data, ok := sess.Get(sessionDataKey).(SessionData)
		if !ok {
			data = SessionData{IP: ctx.IP()}
		}
		data.LastSeen = time.Now()
		sess.Set(sessionDataKey, data)
		return sess.Save()
	}
}
