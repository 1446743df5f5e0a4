// Package idtoken validates the identity token that backs a session.
//
// Validation decodes the token's claims and checks expiry with a safety
// margin. It does NOT verify the token's cryptographic signature against the
// issuer's published keys: the token is trusted because it was obtained over
// a freshly established TLS session to the provider's token endpoint. A
// restored token from local storage is trusted on the same basis.
package idtoken

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"
)

// ExpiryMargin is the safety margin applied to the expiry check: a token
// expiring within this window is treated as already invalid, forcing
// re-authentication before an in-flight request can straddle the true
// expiry.
const ExpiryMargin = 10 * time.Minute

// Claims holds the profile claims extracted from a valid identity token.
type Claims struct {
	Email     string    `mapstructure:"email"`
	Name      string    `mapstructure:"name"`
	Picture   string    `mapstructure:"picture"`
	ExpiresAt time.Time `mapstructure:"-"`
}

// Verify decodes the token and checks its expiry. It returns nil for a
// blank, malformed, or expired (or nearly expired) token. The caller cannot
// distinguish these cases; every rejection means re-authentication.
func Verify(token string) *Claims {
	if strings.TrimSpace(token) == "" {
		log.Debug().Msg("blank identity token")
		return nil
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		log.Debug().Err(err).Msg("unable to decode identity token")
		return nil
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		log.Debug().Msg("identity token missing or invalid exp claim")
		return nil
	}
	if time.Now().Add(ExpiryMargin).After(exp.Time) {
		log.Debug().Time("expires_at", exp.Time).Msg("identity token expired or near expiry")
		return nil
	}

	var claims Claims
	if err := decodeClaims(map[string]any(mapClaims), &claims); err != nil {
		log.Debug().Err(err).Msg("unable to map identity token claims")
		return nil
	}
	claims.ExpiresAt = exp.Time

	return &claims
}

func decodeClaims(in map[string]any, out *Claims) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(in)
}
