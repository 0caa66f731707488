// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidSession is returned for tokens that fail verification or carry no occupant id.
var ErrInvalidSession = errors.New("invalid session token")

// privateKey and publicKey sign and verify session tokens.
var (
	mu         sync.RWMutex
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenExpiry is the lifetime of a new token; 0 issues tokens without exp.
	tokenExpiry time.Duration
)

// Init generates a fresh ed25519 key pair at runtime. Tokens issued by a
// previous process stop verifying, so multi-instance deployments use InitFromPath.
func Init(expiry time.Duration) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	setKeys(priv, pub, expiry)
	return nil
}

// InitFromPath reads raw ed25519 private/public keys from file.
func InitFromPath(privatePath, publicPath string, expiry time.Duration) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize {
		return fmt.Errorf("private key: want %d bytes, got %d", ed25519.PrivateKeySize, len(privateKeyData))
	}
	if len(publicKeyData) != ed25519.PublicKeySize {
		return fmt.Errorf("public key: want %d bytes, got %d", ed25519.PublicKeySize, len(publicKeyData))
	}
	setKeys(ed25519.PrivateKey(privateKeyData), ed25519.PublicKey(publicKeyData), expiry)
	return nil
}

func setKeys(priv ed25519.PrivateKey, pub ed25519.PublicKey, expiry time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	privateKey, publicKey, tokenExpiry = priv, pub, expiry
}

// CreateSessionToken signs a JWT with "sub" = occupantID and exp = now + expiry when
// an expiry is configured.
func CreateSessionToken(occupantID uuid.UUID) (string, error) {
	mu.RLock()
	key, expiry := privateKey, tokenExpiry
	mu.RUnlock()
	if key == nil {
		return "", errors.New("auth not initialised")
	}

	claims := jwt.MapClaims{
		"sub": occupantID.String(),
		"iat": time.Now().Unix(),
	}
	if expiry > 0 {
		claims["exp"] = time.Now().Add(expiry).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(key)
}

// ParseSessionToken verifies a token and returns the occupant id in its "sub" claim.
func ParseSessionToken(tokenString string) (uuid.UUID, error) {
	mu.RLock()
	key := publicKey
	mu.RUnlock()

	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !t.Valid {
		return uuid.Nil, ErrInvalidSession
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidSession
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: missing sub", ErrInvalidSession)
	}
	occupantID, err := uuid.Parse(sub)
	if err != nil || occupantID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: bad sub %q", ErrInvalidSession, sub)
	}
	return occupantID, nil
}
