package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Payment-Signature"

// DefaultReplayWindow bounds how old a signed webhook may be.
const DefaultReplayWindow = 5 * time.Minute

var (
	ErrMissingSignature     = errors.New("missing signature")
	ErrMalformedSignature   = errors.New("malformed signature header")
	ErrReplayWindowExceeded = errors.New("timestamp outside replay window")
	ErrInvalidSignature     = errors.New("invalid signature")
)

// Sign computes the hex HMAC-SHA256 of "<timestamp>.<payload>".
func Sign(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureValue formats a header value for payload signed at ts.
func SignatureValue(secret string, ts time.Time, payload []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), Sign(secret, ts.Unix(), payload))
}

// Verify checks a "t=<unix>,v1=<hex>" header. Several v1 entries are allowed
// so the provider can roll its secret.
func Verify(secret, header string, payload []byte, now time.Time, window time.Duration) error {
	if header == "" {
		return ErrMissingSignature
	}

	var ts int64
	var sigs []string
	for part := range strings.SplitSeq(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return ErrMalformedSignature
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrMalformedSignature
			}
			ts = n
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return ErrMalformedSignature
	}

	if d := now.Unix() - ts; d > int64(window.Seconds()) || d < -int64(window.Seconds()) {
		return ErrReplayWindowExceeded
	}

	expected := []byte(Sign(secret, ts, payload))
	for _, sig := range sigs {
		if hmac.Equal(expected, []byte(sig)) {
			return nil
		}
	}
	return ErrInvalidSignature
}
