package user

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

const tokenAudience = "Ratiba"

var (
	nowFunc = time.Now // mockable

	errInvalidToken = errors.New("invalid token")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Email string `json:"email,omitempty"`
}

// Valid checks the standard time claims and the audience.
func (c Claims) Valid() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return err
	}
	if !c.VerifyAudience(tokenAudience, true) {
		return errInvalidToken
	}
	return nil
}

// Principal returns the identity carried by the claims.
func (c Claims) Principal() Principal {
	return Principal{UserID: c.Subject, Email: c.Email}
}

// TokenIssuer signs and parses HS256 session tokens.
type TokenIssuer struct {
	appName    string
	signingKey []byte
	expiration time.Duration
}

func NewTokenIssuer(conf *core.Config) *TokenIssuer {
	return &TokenIssuer{
		appName:    conf.AppName,
		signingKey: []byte(conf.SecretKey),
		expiration: conf.Server.JWTExpirationDelta,
	}
}

// SigningKey is the HMAC key, shared with the HTTP JWT middleware.
func (ti *TokenIssuer) SigningKey() []byte { return ti.signingKey }

// Issue generates a signed Session for usr.
func (ti *TokenIssuer) Issue(usr User) (Session, error) {
	now := nowFunc()
	exp := now.Add(ti.expiration)
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    ti.appName,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: exp.Unix(),
			IssuedAt:  now.Unix(),
		},
		Email: usr.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(ti.signingKey)
	if err != nil {
		return Session{}, errors.Wrap(err, "signing token")
	}
	return Session{Token: ss, ExpiresAt: exp.UTC(), Principal: claims.Principal()}, nil
}

// Parse validates a signed token and returns its claims.
func (ti *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errInvalidToken
		}
		return ti.signingKey, nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}
