package peercallback

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignerProducesVerifiableToken(t *testing.T) {
	secret := []byte("test-secret")
	signer := NewSigner(secret, time.Minute)

	token, err := signer.Sign("billing-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("expected token to parse and validate, err=%v", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("expected MapClaims")
	}
	if claims["sub"] != "billing-service" {
		t.Fatalf("unexpected sub claim: %v", claims["sub"])
	}
}

func TestSignerRejectsWrongSecret(t *testing.T) {
	signer := NewSigner([]byte("correct"), time.Minute)
	token, err := signer.Sign("x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return []byte("wrong"), nil
	})
	if err == nil {
		t.Fatal("expected signature verification to fail with the wrong secret")
	}
}
