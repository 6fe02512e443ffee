package disk

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signer computes and verifies stateless signatures for private file
// access. The signature is an HMAC-SHA256 keyed digest binding the disk
// name, the file path and the expiry instant; the token embeds the expiry
// so verification needs no server-side signature store.
type Signer struct {
	secret     []byte
	defaultTTL time.Duration
}

// DefaultSignedURLTTL applies when no expiry is configured or requested.
const DefaultSignedURLTTL = time.Hour

func NewSigner(secret string, defaultTTL time.Duration) *Signer {
	if defaultTTL <= 0 {
		defaultTTL = DefaultSignedURLTTL
	}
	return &Signer{secret: []byte(secret), defaultTTL: defaultTTL}
}

// DefaultTTL returns the expiry window used when callers pass none.
func (s *Signer) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Sign returns the hex digest binding diskName, path and expiresAt.
// Fields are length-prefixed so no pair of inputs shares an encoding.
func (s *Signer) Sign(diskName, path string, expiresAt time.Time) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%d:%s:%d:%s:%d", len(diskName), diskName, len(path), path, expiresAt.Unix())
	return hex.EncodeToString(mac.Sum(nil))
}

// Token returns the signature query value "<digest>.<unix expiry>".
// A non-positive expiresIn selects the default TTL.
func (s *Signer) Token(diskName, path string, expiresIn time.Duration) string {
	if expiresIn <= 0 {
		expiresIn = s.defaultTTL
	}
	expiresAt := time.Now().Add(expiresIn)
	return s.Sign(diskName, path, expiresAt) + "." + strconv.FormatInt(expiresAt.Unix(), 10)
}

// Verify recomputes the expected digest from the token's embedded expiry
// and compares it bit-for-bit. Tampering with the path or the expiry, or
// an elapsed expiry, yields ErrInvalidSignature.
func (s *Signer) Verify(diskName, path, token string, now time.Time) error {
	digest, expiryPart, ok := strings.Cut(token, ".")
	if !ok || digest == "" {
		return fmt.Errorf("%w: malformed token", ErrInvalidSignature)
	}
	expiry, err := strconv.ParseInt(expiryPart, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed expiry", ErrInvalidSignature)
	}
	if now.Unix() > expiry {
		return fmt.Errorf("%w: expired at %d", ErrInvalidSignature, expiry)
	}
	expected := s.Sign(diskName, path, time.Unix(expiry, 0))
	if !hmac.Equal([]byte(expected), []byte(digest)) {
		return fmt.Errorf("%w: digest mismatch", ErrInvalidSignature)
	}
	return nil
}
