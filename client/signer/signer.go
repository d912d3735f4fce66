// Package signer canonicalizes request parameters and signs them with
// HMAC-SHA256 so the remote service can verify the caller holds the
// secret key.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws/credentials"
)

const (
	// KeyTimestamp and KeySignature are the query keys added by Sign.
	KeyTimestamp = "Timestamp"
	KeySignature = "Signature"
	// KeyAccessKeyID is set by Sign to the key id of the credentials
	// that produced the signature.
	KeyAccessKeyID = "AWSAccessKeyId"

	// TimestampFormat is ISO-8601 in UTC with millisecond precision.
	TimestampFormat = "2006-01-02T15:04:05.000Z"

	defaultPath = "/onca/xml"
)

// ErrMissingField is returned by New when a credential field is empty.
var ErrMissingField = errors.New("missing signer field")

// Params is the set of query parameters for a single request.
type Params map[string]string

// Clone returns a shallow copy of p. A nil p yields an empty, non-nil map.
func (p Params) Clone() Params {
	out := make(Params, len(p)+2)
	maps.Copy(out, p)
	return out
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock overrides the time source used for Timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCredentials signs with creds instead of a static key pair. The
// provider is consulted on every Sign, so expiring or rotating credentials
// are picked up without rebuilding the Signer. The accessKeyID and
// secretKey passed to New may then be empty.
func WithCredentials(creds *credentials.Credentials) Option {
	return func(s *Signer) {
		if creds != nil {
			s.creds = creds
		}
	}
}

// WithPath sets the request path that is part of the string to sign.
func WithPath(path string) Option {
	return func(s *Signer) {
		if path != "" {
			s.path = path
		}
	}
}

// WithMethod sets the HTTP method that is part of the string to sign.
func WithMethod(method string) Option {
	return func(s *Signer) {
		if method != "" {
			s.method = method
		}
	}
}

// Signer signs parameter sets for one endpoint and key pair.
type Signer struct {
	creds    *credentials.Credentials
	endpoint string
	method   string
	path     string
	now      func() time.Time
}

// New builds a Signer. All three of accessKeyID, secretKey
// and endpoint are required unless WithCredentials supplies the key pair.
func New(accessKeyID, secretKey, endpoint string, opts ...Option) (*Signer, error) {
	s := &Signer{
		endpoint: endpoint,
		method:   http.MethodGet,
		path:     defaultPath,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	var missing []string
	if s.creds == nil {
		if accessKeyID == "" {
			missing = append(missing, "accessKeyID")
		}
		if secretKey == "" {
			missing = append(missing, "secretKey")
		}
	}
	if endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}

	if s.creds == nil {
		s.creds = credentials.NewStaticCredentials(accessKeyID, secretKey, "")
	}

	return s, nil
}

// Endpoint returns the host the signer signs for.
func (s *Signer) Endpoint() string {
	return s.endpoint
}

// Sign returns a copy of params with Timestamp, Signature and
// AWSAccessKeyId set. An existing Timestamp is kept so callers can pin
// the signing time.
func (s *Signer) Sign(params Params) (Params, error) {
	cred, err := s.creds.Get()
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	signed := params.Clone()
	delete(signed, KeySignature)
	signed[KeyAccessKeyID] = cred.AccessKeyID

	if _, ok := signed[KeyTimestamp]; !ok {
		signed[KeyTimestamp] = s.now().UTC().Format(TimestampFormat)
	}
	signed[KeySignature] = s.digest(signed, cred.SecretAccessKey)

	return signed, nil
}

// Signature computes the base64 HMAC-SHA256 digest of the string to sign
// for params. Any Signature key in params is ignored.
func (s *Signer) Signature(params Params) (string, error) {
	cred, err := s.creds.Get()
	if err != nil {
		return "", fmt.Errorf("reading credentials: %w", err)
	}

	return s.digest(params, cred.SecretAccessKey), nil
}

func (s *Signer) digest(params Params, secret string) string {
	unsigned := params
	if _, ok := params[KeySignature]; ok {
		unsigned = params.Clone()
		delete(unsigned, KeySignature)
	}

	toSign := strings.Join([]string{s.method, s.endpoint, s.path, Canonicalize(unsigned)}, "\n")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(toSign))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Canonicalize serializes params as key=value pairs joined by '&', sorted
// by key, each side percent-encoded per RFC 3986.
//
// If the same data is not ordered, it gives a different signature.
func Canonicalize(params Params) string {
	keys := slices.Sorted(maps.Keys(params))

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(Escape(k))
		b.WriteByte('=')
		b.WriteString(Escape(params[k]))
	}

	return b.String()
}

// Escape percent-encodes everything outside the RFC 3986 unreserved set.
// Unlike url.QueryEscape a space becomes %20.
func Escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
