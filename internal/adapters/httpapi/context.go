package httpapi

import (
	"context"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
)

type sessionKey struct{}

type authState struct {
	session domain.Session
	token   string
}

func WithSession(ctx context.Context, sess domain.Session, token string) context.Context {
	return context.WithValue(ctx, sessionKey{}, authState{session: sess, token: token})
}

func SessionFromContext(ctx context.Context) (domain.Session, bool) {
	v, ok := ctx.Value(sessionKey{}).(authState)
	return v.session, ok && v.session.User.ID != ""
}

// UserFromContext returns the authenticated user.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	sess, ok := SessionFromContext(ctx)
	return sess.User, ok
}

func tokenFromContext(ctx context.Context) string {
	v, _ := ctx.Value(sessionKey{}).(authState)
	return v.token
}
