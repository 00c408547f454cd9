package sessiontoken

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	clockport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/clock"
)

var ErrUnauthorized = errors.New("unauthorized")

const issuer = "delivery-tracker-api"

type claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Signer mints and verifies HS256 session tokens. A token only proves which session it
// names; the session store decides whether that session is still live.
type Signer struct {
	secret []byte
	clock  clockport.Clock
}

func NewSigner(secret []byte, clock clockport.Clock) *Signer {
	return &Signer{secret: secret, clock: clock}
}

// Sign returns a token carrying sid and sub for the session.
func (s *Signer) Sign(sess domain.Session) (string, error) {
	c := claims{
		SessionID: string(sess.ID),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   string(sess.User.ID),
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

// Verify checks signature, issuer and expiry and returns the session id and user id.
func (s *Signer) Verify(token string) (domain.SessionID, domain.UserID, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return "", "", ErrUnauthorized
	}
	if c.SessionID == "" || c.Subject == "" {
		return "", "", ErrUnauthorized
	}
	return domain.SessionID(c.SessionID), domain.UserID(c.Subject), nil
}
