package chain

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	cerrors "github.com/flashbots/contender/internal/errors"
)

// loadJWTSecret reads a hex-encoded 32-byte Engine API secret from path, in
// go-ethereum's JWT_SECRET_PATH format.
func loadJWTSecret(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.NewSignerError("read jwt secret", err)
	}
	secret, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x"))
	if err != nil {
		return nil, cerrors.NewSignerError("decode jwt secret", err)
	}
	if len(secret) != 32 {
		return nil, cerrors.NewSignerError("jwt secret", fmt.Errorf("must be 32 bytes, got %d", len(secret)))
	}
	return secret, nil
}

// mintToken builds a short-lived HS256 bearer token per the Engine API's
// JWT authentication scheme (an "iat" claim within a few seconds of now is
// the only requirement most clients enforce).
func mintToken(secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", cerrors.NewSignerError("mint jwt", err)
	}
	return signed, nil
}

// jwtTransport attaches a freshly minted bearer token to every request,
// since Engine API JWTs are only valid for a short window around "iat".
type jwtTransport struct {
	secret []byte
	base   http.RoundTripper
}

func (t *jwtTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := mintToken(t.secret)
	if err != nil {
		return nil, err
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(req)
}
