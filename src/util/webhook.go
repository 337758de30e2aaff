package util

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/plaid/plaid-go/v41/plaid"
)

// Webhook verification per the aggregator's scheme: the request carries a
// detached ES256 JWT whose claims pin a SHA-256 of the body, signed with
// a key fetched by kid from the verification-key endpoint.

const webhookMaxAge = 5 * time.Minute

// WebhookVerifier validates incoming webhook requests. Verification keys
// are cached by kid; keys rotate rarely.
type WebhookVerifier struct {
	client *plaid.APIClient

	mu   sync.Mutex
	keys map[string]*plaid.JWKPublicKey
}

func NewWebhookVerifier(client *plaid.APIClient) *WebhookVerifier {
	return &WebhookVerifier{
		client: client,
		keys:   make(map[string]*plaid.JWKPublicKey),
	}
}

// Verify checks the signature header against the raw body.
func (v *WebhookVerifier) Verify(ctx context.Context, body []byte, verificationHeader string) error {
	if verificationHeader == "" {
		return errors.New("missing Plaid-Verification header")
	}

	parser := jwt.NewParser(jwt.WithLeeway(30 * time.Second))

	unverified, _, err := parser.ParseUnverified(verificationHeader, jwt.MapClaims{})
	if err != nil {
		return fmt.Errorf("parse unverified token: %w", err)
	}
	if unverified.Method.Alg() != jwt.SigningMethodES256.Alg() {
		return fmt.Errorf("unexpected alg %q (want ES256)", unverified.Method.Alg())
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return errors.New("missing kid in JWT header")
	}

	jwk, err := v.getJWK(ctx, kid)
	if err != nil {
		return fmt.Errorf("get JWK: %w", err)
	}
	pubKey, err := jwkToECDSAPublicKey(jwk)
	if err != nil {
		return fmt.Errorf("jwk->ecdsa: %w", err)
	}

	claims := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(verificationHeader, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodES256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return pubKey, nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("invalid token: %w", err)
	}

	iatVal, ok := claims["iat"]
	if !ok {
		return errors.New("missing iat")
	}
	var iat time.Time
	switch val := iatVal.(type) {
	case float64:
		iat = time.Unix(int64(val), 0)
	case int64:
		iat = time.Unix(val, 0)
	default:
		return errors.New("invalid iat type")
	}
	if time.Since(iat) > webhookMaxAge {
		return errors.New("token too old (>5m)")
	}

	wantHash, ok := claims["request_body_sha256"].(string)
	if !ok || wantHash == "" {
		return errors.New("missing request_body_sha256")
	}
	sum := sha256.Sum256(body)
	gotHex := strings.ToLower(hex.EncodeToString(sum[:]))
	if subtle.ConstantTimeCompare([]byte(gotHex), []byte(strings.ToLower(wantHash))) != 1 {
		return errors.New("body hash mismatch")
	}

	return nil
}

func (v *WebhookVerifier) getJWK(ctx context.Context, kid string) (*plaid.JWKPublicKey, error) {
	v.mu.Lock()
	key, ok := v.keys[kid]
	v.mu.Unlock()
	if ok {
		return key, nil
	}

	req := *plaid.NewWebhookVerificationKeyGetRequest(kid)
	resp, _, err := v.client.PlaidApi.WebhookVerificationKeyGet(ctx).
		WebhookVerificationKeyGetRequest(req).
		Execute()
	if err != nil {
		return nil, err
	}
	fetched := resp.GetKey()
	if fetched.Kid == kid {
		v.mu.Lock()
		v.keys[kid] = &fetched
		v.mu.Unlock()
	}
	return &fetched, nil
}

func jwkToECDSAPublicKey(jwk *plaid.JWKPublicKey) (*ecdsa.PublicKey, error) {
	if jwk == nil || jwk.X == "" || jwk.Y == "" ||
		jwk.Kty != "EC" ||
		jwk.Crv != "P-256" {
		return nil, errors.New("invalid/unsupported JWK")
	}
	xBytes, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("decode x: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("decode y: %w", err)
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
