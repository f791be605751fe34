package peercallback

import (
	"fmt"
	"net/http"
	"time"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

// Signer issues short-lived bearer tokens that identify the dispatcher to a
// callback peer on connect.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner builds a Signer using secret to sign tokens, valid for ttl.
func NewSigner(secret []byte, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Signer{secret: secret, ttl: ttl}
}

// Sign produces a compact JWT identifying this dispatcher to id's peer.
func (s *Signer) Sign(id httpmodel.CallbackID) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": string(id),
		"iss": "mockdispatch",
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

var dialer = websocket.Dialer{HandshakeTimeout: 10 * time.Second}

// DialPeer connects to url, presenting a Signer-issued token as a bearer
// credential, and wraps the resulting connection in a Peer.
func DialPeer(url string, id httpmodel.CallbackID, signer *Signer) (*Peer, error) {
	header := http.Header{}
	if signer != nil {
		token, err := signer.Sign(id)
		if err != nil {
			return nil, fmt.Errorf("failed to sign handshake token for %q: %w", id, err)
		}
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := dialer.Dial(url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial peer callback %q at %s: %w", id, url, err)
	}
	return NewPeer(conn), nil
}
