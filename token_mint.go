package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// oneTimeTokenBytes is the entropy of confirmation and reset tokens.
const oneTimeTokenBytes = 20

// DefaultResetTokenTTL is how long a freshly minted reset token stays
// valid unless configured otherwise.
const DefaultResetTokenTTL = 10 * time.Minute

// OneTimeToken is a minted single-use secret. Cleartext leaves the process
// exactly once (inside an email); only Hash is persisted.
type OneTimeToken struct {
	Cleartext string
	Hash      string
}

// MintOneTimeToken generates a URL-safe random token and its storage hash.
// These are high-entropy machine secrets, so a deterministic digest is
// used instead of a slow password hash.
func MintOneTimeToken() (OneTimeToken, error) {
	b := make([]byte, oneTimeTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return OneTimeToken{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read token entropy")
	}

	cleartext := base64.RawURLEncoding.EncodeToString(b)

	return OneTimeToken{
		Cleartext: cleartext,
		Hash:      HashOneTimeToken(cleartext),
	}, nil
}

// MintResetToken mints a reset token with its expiry. A non-positive ttl
// falls back to DefaultResetTokenTTL.
func MintResetToken(ttl time.Duration) (OneTimeToken, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}

	token, err := MintOneTimeToken()
	if err != nil {
		return OneTimeToken{}, time.Time{}, err
	}

	return token, time.Now().Add(ttl), nil
}

// HashOneTimeToken returns the hex sha256 digest stored in place of the
// token cleartext.
func HashOneTimeToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NormalizeConfirmationToken strips everything after the first "." before
// hashing. Confirmation links historically arrive with a decoration suffix
// appended after a dot; the bare token before the dot is the secret.
// Compatibility behavior, keep in sync with the email link format.
func NormalizeConfirmationToken(raw string) string {
	if i := strings.Index(raw, "."); i >= 0 {
		return raw[:i]
	}
	return raw
}
