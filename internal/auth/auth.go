// Package auth signs and verifies auth-state requests with RSA-PSS.
package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Header names carried on signed requests.
const (
	HeaderKeyID     = "X-Qchat-Access-Key"
	HeaderTimestamp = "X-Qchat-Access-Timestamp"
	HeaderSignature = "X-Qchat-Access-Signature"
)

// Verification errors
var (
	ErrBadSignature = errors.New("signature does not match")
	ErrStale        = errors.New("request timestamp outside allowed skew")
)

// DefaultMaxSkew is how far a signed request's timestamp may drift from the
// verifier's clock.
const DefaultMaxSkew = 5 * time.Minute

// Credentials holds the key ID and private key for signing requests.
type Credentials struct {
	KeyID      string
	PrivateKey *rsa.PrivateKey

	now func() time.Time
}

// LoadCredentials loads credentials from key ID and private key file path.
func LoadCredentials(keyID, privateKeyPath string) (*Credentials, error) {
	if keyID == "" {
		return nil, fmt.Errorf("key ID is required")
	}
	if privateKeyPath == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	privateKey, err := LoadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}

	return &Credentials{
		KeyID:      keyID,
		PrivateKey: privateKey,
	}, nil
}

// LoadPrivateKey loads an RSA private key from a PEM file.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}

	// PKCS#8 first, then PKCS#1
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA private key")
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return rsaKey, nil
}

// LoadPublicKey loads an RSA public key (PKIX or PKCS#1) from a PEM file.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA public key")
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return rsaKey, nil
}

func readPEM(path string) (*pem.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	return block, nil
}

// SignRequest returns the headers that authenticate method and path.
func (c *Credentials) SignRequest(method, path string) (map[string]string, error) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	timestampMs := now().UnixMilli()

	signature, err := c.sign(signingString(timestampMs, method, path))
	if err != nil {
		return nil, err
	}

	return map[string]string{
		HeaderKeyID:     c.KeyID,
		HeaderTimestamp: strconv.FormatInt(timestampMs, 10),
		HeaderSignature: signature,
	}, nil
}

// Verify checks a signature produced by SignRequest against pub.
func Verify(pub *rsa.PublicKey, method, path, timestamp, signature string) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	hashed := sha256.Sum256([]byte(signingString(ts, method, path)))
	if err := rsa.VerifyPSS(pub, crypto.SHA256, hashed[:], sig, pssOptions); err != nil {
		return ErrBadSignature
	}
	return nil
}

// RequireSignature returns middleware that rejects requests not signed by the
// holder of pub, or signed more than maxSkew away from now, with 401.
func RequireSignature(pub *rsa.PublicKey, maxSkew time.Duration) func(http.Handler) http.Handler {
	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := verifyRequest(pub, r, maxSkew, time.Now()); err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func verifyRequest(pub *rsa.PublicKey, r *http.Request, maxSkew time.Duration, now time.Time) error {
	timestamp := r.Header.Get(HeaderTimestamp)
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	skew := now.Sub(time.UnixMilli(ts))
	if skew > maxSkew || skew < -maxSkew {
		return ErrStale
	}
	return Verify(pub, r.Method, r.URL.Path, timestamp, r.Header.Get(HeaderSignature))
}

var pssOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}

// signingString is timestamp_ms + method + path.
func signingString(timestampMs int64, method, path string) string {
	return strconv.FormatInt(timestampMs, 10) + method + path
}

func (c *Credentials) sign(message string) (string, error) {
	hashed := sha256.Sum256([]byte(message))

	signature, err := rsa.SignPSS(rand.Reader, c.PrivateKey, crypto.SHA256, hashed[:], pssOptions)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}

	return base64.StdEncoding.EncodeToString(signature), nil
}
