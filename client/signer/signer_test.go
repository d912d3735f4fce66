package signer

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/google/go-cmp/cmp"
)

var fixedTime = time.Date(2014, 8, 18, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func newTestSigner(t *testing.T, secret string) *Signer {
	t.Helper()

	s, err := New("AKIDEXAMPLE", secret, "webservices.amazon.com", WithClock(fixedClock))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	return s
}

func TestNew_MissingFields(t *testing.T) {
	testCases := []struct {
		name     string
		id       string
		secret   string
		endpoint string
		field    string
	}{
		{name: "no access key", secret: "s", endpoint: "e", field: "accessKeyID"},
		{name: "no secret", id: "i", endpoint: "e", field: "secretKey"},
		{name: "no endpoint", id: "i", secret: "s", field: "endpoint"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.id, tc.secret, tc.endpoint)
			if !errors.Is(err, ErrMissingField) {
				t.Fatalf("exp ErrMissingField, got: %v", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("exp error to name %q, got: %v", tc.field, err)
			}
		})
	}
}

func TestCanonicalize(t *testing.T) {
	testCases := []struct {
		name   string
		params Params
		exp    string
	}{
		{
			name:   "empty",
			params: Params{},
			exp:    "",
		},
		{
			name:   "sorted by key",
			params: Params{"b": "2", "a": "1", "C": "3"},
			exp:    "C=3&a=1&b=2",
		},
		{
			name:   "space is %20",
			params: Params{"Keywords": "harry potter"},
			exp:    "Keywords=harry%20potter",
		},
		{
			name:   "reserved characters encoded",
			params: Params{"q": "a+b,c:d/e?f=g&h*'()!"},
			exp:    "q=a%2Bb%2Cc%3Ad%2Fe%3Ff%3Dg%26h%2A%27%28%29%21",
		},
		{
			name:   "unreserved kept",
			params: Params{"q": "AZaz09-_.~"},
			exp:    "q=AZaz09-_.~",
		},
		{
			name:   "utf8",
			params: Params{"q": "é"},
			exp:    "q=%C3%A9",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Canonicalize(tc.params); got != tc.exp {
				t.Errorf("exp %q, got %q", tc.exp, got)
			}
		})
	}
}

func TestCanonicalize_OrderIndependent(t *testing.T) {
	a := Params{}
	b := Params{}
	keys := []string{"Operation", "ItemId", "AWSAccessKeyId", "Service", "ResponseGroup", "Version"}
	for i, k := range keys {
		a[k] = k + "-v"
		b[keys[len(keys)-1-i]] = keys[len(keys)-1-i] + "-v"
	}

	first := Canonicalize(a)
	if first != Canonicalize(b) {
		t.Fatalf("canonical form depends on insertion order")
	}
	if first != Canonicalize(a) {
		t.Fatalf("canonical form is not deterministic")
	}

	var prev string
	for i, pair := range strings.Split(first, "&") {
		k, _, _ := strings.Cut(pair, "=")
		if i > 0 && k <= prev {
			t.Errorf("key %q is not after %q", k, prev)
		}
		prev = k
	}
}

func TestSign_KnownAnswer(t *testing.T) {
	s := newTestSigner(t, "secret")

	signed, err := s.Sign(Params{
		"AWSAccessKeyId": "AKIDEXAMPLE",
		"ItemId":         "123",
		"Operation":      "ItemLookup",
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	exp := Params{
		"AWSAccessKeyId": "AKIDEXAMPLE",
		"ItemId":         "123",
		"Operation":      "ItemLookup",
		"Timestamp":      "2014-08-18T12:00:00.000Z",
		"Signature":      "/OzHauQbT6AQCILLdMbjVtAI+xzZ58v/x4bh1qA8hgk=",
	}
	if diff := cmp.Diff(exp, signed); diff != "" {
		t.Errorf("signed params mismatch (-want +got):\n%s", diff)
	}
}

func TestSign_DoesNotMutateInput(t *testing.T) {
	s := newTestSigner(t, "secret")
	in := Params{"ItemId": "1"}

	if _, err := s.Sign(in); err != nil {
		t.Fatalf("sign: %v", err)
	}

	if diff := cmp.Diff(Params{"ItemId": "1"}, in); diff != "" {
		t.Errorf("input mutated (-want +got):\n%s", diff)
	}
}

func TestSign_Deterministic(t *testing.T) {
	s := newTestSigner(t, "secret")
	params := Params{"ItemId": "123", "Operation": "ItemLookup"}

	first, err := s.Sign(params)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	second, err := s.Sign(params)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if first[KeySignature] != second[KeySignature] {
		t.Errorf("exp identical signatures, got %q and %q", first[KeySignature], second[KeySignature])
	}
}

func TestSign_SecretSensitivity(t *testing.T) {
	params := Params{"ItemId": "123", "Operation": "ItemLookup"}

	a, err := newTestSigner(t, "secret").Sign(params)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	b, err := newTestSigner(t, "secreT").Sign(params)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if a[KeySignature] == b[KeySignature] {
		t.Error("exp signature to change with the secret key")
	}
}

func TestSign_KeepsExistingTimestamp(t *testing.T) {
	s := newTestSigner(t, "secret")

	signed, err := s.Sign(Params{KeyTimestamp: "2020-01-01T00:00:00.000Z", KeySignature: "stale"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if signed[KeyTimestamp] != "2020-01-01T00:00:00.000Z" {
		t.Errorf("timestamp overwritten: %q", signed[KeyTimestamp])
	}
	if signed[KeySignature] == "stale" {
		t.Error("stale signature kept")
	}

	again, err := s.Signature(signed)
	if err != nil {
		t.Fatalf("signature: %v", err)
	}
	if again != signed[KeySignature] {
		t.Errorf("Signature ignores its own key: exp %q, got %q", signed[KeySignature], again)
	}
}

func TestSign_PathAndMethodAreSigned(t *testing.T) {
	params := Params{"ItemId": "1"}

	base := newTestSigner(t, "secret")
	other, err := New("AKIDEXAMPLE", "secret", "webservices.amazon.com",
		WithClock(fixedClock), WithPath("/other"), WithMethod("POST"))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	a, _ := base.Sign(params)
	b, _ := other.Sign(params)
	if a[KeySignature] == b[KeySignature] {
		t.Error("exp path and method to affect the signature")
	}
}

// rotatingProvider hands out a new key pair each time the previous one
// is marked expired.
type rotatingProvider struct {
	n       int
	expired bool
	err     error
}

func (p *rotatingProvider) Retrieve() (credentials.Value, error) {
	if p.err != nil {
		return credentials.Value{}, p.err
	}
	p.n++
	p.expired = false
	return credentials.Value{
		AccessKeyID:     fmt.Sprintf("AKID%d", p.n),
		SecretAccessKey: fmt.Sprintf("secret%d", p.n),
	}, nil
}

func (p *rotatingProvider) IsExpired() bool { return p.expired }

func TestSign_WithCredentials(t *testing.T) {
	prov := &rotatingProvider{}
	s, err := New("", "", "webservices.amazon.com",
		WithClock(fixedClock), WithCredentials(credentials.NewCredentials(prov)))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	params := Params{"ItemId": "123", "Operation": "ItemLookup"}

	for round := 1; round <= 2; round++ {
		signed, err := s.Sign(params)
		if err != nil {
			t.Fatalf("round %d: sign: %v", round, err)
		}

		expID := fmt.Sprintf("AKID%d", round)
		if signed[KeyAccessKeyID] != expID {
			t.Errorf("round %d: exp key id %q, got %q", round, expID, signed[KeyAccessKeyID])
		}

		static, err := New(expID, fmt.Sprintf("secret%d", round), "webservices.amazon.com", WithClock(fixedClock))
		if err != nil {
			t.Fatalf("round %d: static signer: %v", round, err)
		}
		exp, err := static.Sign(params)
		if err != nil {
			t.Fatalf("round %d: static sign: %v", round, err)
		}
		if signed[KeySignature] != exp[KeySignature] {
			t.Errorf("round %d: exp signature %q, got %q", round, exp[KeySignature], signed[KeySignature])
		}

		prov.expired = true
	}
}

func TestSign_CredentialsError(t *testing.T) {
	errExpired := errors.New("token expired")
	s, err := New("", "", "webservices.amazon.com",
		WithCredentials(credentials.NewCredentials(&rotatingProvider{err: errExpired})))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	if _, err := s.Sign(Params{"ItemId": "1"}); !errors.Is(err, errExpired) {
		t.Errorf("exp provider error, got %v", err)
	}
}

func TestNew_WithCredentialsStillNeedsEndpoint(t *testing.T) {
	_, err := New("", "", "", WithCredentials(credentials.NewStaticCredentials("a", "b", "")))
	if !errors.Is(err, ErrMissingField) || !strings.Contains(err.Error(), "endpoint") {
		t.Fatalf("exp missing endpoint, got %v", err)
	}
	if strings.Contains(err.Error(), "secretKey") {
		t.Errorf("key pair should not be required with credentials, got %v", err)
	}
}
