package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"checkout-bridge/internal/domain"
)

const secretPrefix = "whsec_"

// WebhookVerifier authenticates payment-platform webhooks signed with the
// Standard Webhooks scheme: base64(HMAC-SHA256(key, "{id}.{timestamp}.{body}")).
type WebhookVerifier struct {
	key             []byte
	keyErr          error
	configured      bool
	allowUnverified bool
	tolerance       time.Duration
	now             func() time.Time
	log             *zerolog.Logger
}

type VerifierOptions struct {
	Secret          string
	AllowUnverified bool          // accept everything when no secret is set
	Tolerance       time.Duration // 0 disables the timestamp window
}

func NewWebhookVerifier(opts VerifierOptions, logger *zerolog.Logger) *WebhookVerifier {
	l := logger.With().Str("component", "WebhookVerifier").Logger()
	v := &WebhookVerifier{
		allowUnverified: opts.AllowUnverified,
		tolerance:       opts.Tolerance,
		now:             time.Now,
		log:             &l,
	}
	secret := strings.TrimSpace(opts.Secret)
	if secret == "" {
		return v
	}
	v.configured = true
	v.key, v.keyErr = decodeSecret(secret)
	if v.keyErr != nil {
		l.Error().Err(v.keyErr).Msg("webhook secret is not valid base64; every webhook will be rejected")
	}
	return v
}

func decodeSecret(secret string) ([]byte, error) {
	secret = strings.TrimPrefix(secret, secretPrefix)
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("decode webhook secret: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("decode webhook secret: empty key")
	}
	return key, nil
}

// Configured reports whether a signing secret is set.
func (v *WebhookVerifier) Configured() bool { return v.configured }

// Verify returns nil when at least one signature candidate matches.
func (v *WebhookVerifier) Verify(sigHeader, timestamp, id string, body []byte) error {
	if !v.configured {
		if v.allowUnverified {
			v.log.Warn().Str("webhook_id", id).Msg("webhook secret not configured; accepting unverified webhook")
			return nil
		}
		return domain.ErrWebhookSecretMissing
	}
	if v.keyErr != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, v.keyErr)
	}

	sigHeader, timestamp, id = strings.TrimSpace(sigHeader), strings.TrimSpace(timestamp), strings.TrimSpace(id)
	if sigHeader == "" || timestamp == "" || id == "" {
		return fmt.Errorf("%w: missing signature headers", domain.ErrInvalidSignature)
	}
	if err := v.checkTimestamp(timestamp); err != nil {
		return err
	}

	candidates := signatureCandidates(sigHeader)
	if len(candidates) == 0 {
		return fmt.Errorf("%w: no signatures in header", domain.ErrInvalidSignature)
	}

	expected := []byte(sign(v.key, id, timestamp, body))
	for _, c := range candidates {
		if hmac.Equal([]byte(c), expected) {
			return nil
		}
	}
	return domain.ErrInvalidSignature
}

func (v *WebhookVerifier) checkTimestamp(ts string) error {
	if v.tolerance <= 0 {
		return nil
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", domain.ErrInvalidSignature)
	}
	d := v.now().Sub(time.Unix(sec, 0))
	if d < 0 {
		d = -d
	}
	if d > v.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", domain.ErrInvalidSignature)
	}
	return nil
}

// signatureCandidates accepts "v1,sig v1,sig2", "v1=sig" and comma-joined lists.
func signatureCandidates(header string) []string {
	var out []string
	for _, tok := range strings.Fields(header) {
		switch {
		case strings.HasPrefix(tok, "v1,"):
			if s := strings.TrimPrefix(tok, "v1,"); s != "" && !strings.Contains(s, ",") {
				out = append(out, s)
				continue
			}
		case strings.HasPrefix(tok, "v1=") && !strings.Contains(tok, ","):
			if s := strings.TrimPrefix(tok, "v1="); s != "" {
				out = append(out, s)
			}
			continue
		}
		for _, part := range strings.Split(tok, ",") {
			part = strings.TrimSpace(part)
			switch {
			case part == "" || part == "v1":
			case strings.HasPrefix(part, "v1="):
				if s := strings.TrimPrefix(part, "v1="); s != "" {
					out = append(out, s)
				}
			default:
				out = append(out, part)
			}
		}
	}
	return out
}

func sign(key []byte, id, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id))
	mac.Write([]byte{'.'})
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignWebhook produces a "v1,<sig>" header value for secret. Used by local
// tooling and tests to generate deliverable webhooks.
func SignWebhook(secret, id, timestamp string, body []byte) (string, error) {
	key, err := decodeSecret(strings.TrimSpace(secret))
	if err != nil {
		return "", err
	}
	return "v1," + sign(key, id, timestamp, body), nil
}
