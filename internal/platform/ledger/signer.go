package ledger

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ProofMethod identifies the signature scheme of a proof
const ProofMethod = "ed25519-v2"

// Signer is the signing identity of one bridge side. The key pair is an
// ed25519 raw seed encoded in base64.
type Signer struct {
	issuer   string
	audience string
	ttl      time.Duration
	private  ed25519.PrivateKey
	public   string
}

// NewSigner builds a signer from a base64 seed. A 64 byte secret is
// accepted as a full private key.
func NewSigner(issuer, audience, secret string, ttl time.Duration) (*Signer, error) {
	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signer secret: %w", err)
	}

	var private ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		private = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		private = ed25519.PrivateKey(raw)
	default:
		return nil, fmt.Errorf("signer secret must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}

	return &Signer{
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		private:  private,
		public:   base64.StdEncoding.EncodeToString(private.Public().(ed25519.PublicKey)),
	}, nil
}

// Public returns the base64 public key
func (s *Signer) Public() string {
	return s.public
}

// Issuer returns the configured token issuer
func (s *Signer) Issuer() string {
	return s.issuer
}

// Token issues a bearer token for one ledger request
func (s *Signer) Token(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   s.public,
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.private)
	if err != nil {
		return "", fmt.Errorf("failed to sign ledger token: %w", err)
	}
	return token, nil
}

// Proof is a signature over an intent hash plus the custom report
type Proof struct {
	Method string          `json:"method"`
	Public string          `json:"public"`
	Digest string          `json:"digest"`
	Result string          `json:"result"`
	Custom json.RawMessage `json:"custom,omitempty"`
}

// Sign produces a proof binding custom to the intent hash
func (s *Signer) Sign(hash string, custom any) (Proof, error) {
	var customJSON []byte
	if custom != nil {
		var err error
		if customJSON, err = Canonical(custom); err != nil {
			return Proof{}, fmt.Errorf("failed to encode proof custom data: %w", err)
		}
	}

	sum := sha256.Sum256(append([]byte(hash), customJSON...))
	return Proof{
		Method: ProofMethod,
		Public: s.public,
		Digest: hex.EncodeToString(sum[:]),
		Result: base64.StdEncoding.EncodeToString(ed25519.Sign(s.private, sum[:])),
		Custom: customJSON,
	}, nil
}

// Verify checks a proof against the public key it names
func Verify(hash string, p Proof) bool {
	public, err := base64.StdEncoding.DecodeString(p.Public)
	if err != nil || len(public) != ed25519.PublicKeySize {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(p.Result)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(append([]byte(hash), p.Custom...))
	if hex.EncodeToString(sum[:]) != p.Digest {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(public), sum[:], sig)
}

// Canonical encodes v as JSON with sorted object keys and no HTML escaping,
// the form hashes and digests are computed over.
func Canonical(v any) ([]byte, error) {
	raw, ok := v.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Hash is the hex sha256 of the canonical form of data
func Hash(data json.RawMessage) (string, error) {
	canonical, err := Canonical(data)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
