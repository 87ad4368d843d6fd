package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Algorithm = "argon2id"

	minMemoryKiB   uint32 = 1024
	maxMemoryKiB   uint32 = 1 << 20
	minSaltLength  uint32 = 8
	minKeyLength   uint32 = 16
	maxTimeCost    uint32 = 64
	maxParallelism uint8  = 64
)

// PasswordConfig is the argon2id cost policy. Memory is in KiB.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultPasswordConfig: 2 iterations, 4 MiB, 2 lanes, 16-byte salt.
func DefaultPasswordConfig() PasswordConfig {
	return PasswordConfig{
		Memory:      4 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c PasswordConfig) validate() error {
	switch {
	case c.Memory < minMemoryKiB || c.Memory > maxMemoryKiB:
		return fmt.Errorf("argon2 memory must be within [%d, %d] KiB", minMemoryKiB, maxMemoryKiB)
	case c.Time < 1 || c.Time > maxTimeCost:
		return fmt.Errorf("argon2 time cost must be within [1, %d]", maxTimeCost)
	case c.Parallelism < 1 || c.Parallelism > maxParallelism:
		return fmt.Errorf("argon2 parallelism must be within [1, %d]", maxParallelism)
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("argon2 salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("argon2 key length must be >= %d", minKeyLength)
	}
	return nil
}

// Argon2Hasher hashes passwords into PHC strings:
// $argon2id$v=19$m=4096,t=2,p=2$<salt>$<hash>
type Argon2Hasher struct {
	config PasswordConfig
	rand   io.Reader
}

func NewArgon2Hasher(cfg PasswordConfig) (*Argon2Hasher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2Hasher{config: cfg, rand: rand.Reader}, nil
}

func (h *Argon2Hasher) Config() PasswordConfig { return h.config }

func (h *Argon2Hasher) Hash(plaintext string) (string, error) {
	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(plaintext), salt, h.config.Time, h.config.Memory, h.config.Parallelism, h.config.KeyLength)
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Algorithm,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches encoded. A malformed or
// unsupported hash string is a mismatch, not an error.
func (h *Argon2Hasher) Verify(encoded, plaintext string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, nil
	}
	key := argon2.IDKey([]byte(plaintext), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.hash)))
	return subtle.ConstantTimeCompare(key, parsed.hash) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// than the current policy. Unparseable hashes always need an upgrade.
func (h *Argon2Hasher) NeedsUpgrade(encoded string) bool {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return true
	}
	return parsed.memory < h.config.Memory ||
		parsed.time < h.config.Time ||
		parsed.parallelism < h.config.Parallelism ||
		uint32(len(parsed.hash)) != h.config.KeyLength
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

var errMalformedHash = errors.New("malformed argon2 hash")

func parsePHC(encoded string) (*parsedPHC, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != argon2Algorithm {
		return nil, errMalformedHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return nil, errMalformedHash
	}
	p, err := parseParams(parts[3])
	if err != nil {
		return nil, err
	}
	salt, err := decodeSegment(parts[4])
	if err != nil || uint32(len(salt)) < minSaltLength {
		return nil, errMalformedHash
	}
	hash, err := decodeSegment(parts[5])
	if err != nil || uint32(len(hash)) < minKeyLength {
		return nil, errMalformedHash
	}
	p.salt = salt
	p.hash = hash
	return p, nil
}

// decodeSegment accepts both padded and unpadded standard base64.
func decodeSegment(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func parseParams(segment string) (*parsedPHC, error) {
	var (
		p                   parsedPHC
		seenM, seenT, seenP bool
	)
	for _, pair := range strings.Split(segment, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, errMalformedHash
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, errMalformedHash
		}
		switch k {
		case "m":
			if seenM || uint32(n) < minMemoryKiB || uint32(n) > maxMemoryKiB {
				return nil, errMalformedHash
			}
			p.memory, seenM = uint32(n), true
		case "t":
			if seenT || n < 1 || uint32(n) > maxTimeCost {
				return nil, errMalformedHash
			}
			p.time, seenT = uint32(n), true
		case "p":
			if seenP || n < 1 || n > uint64(maxParallelism) {
				return nil, errMalformedHash
			}
			p.parallelism, seenP = uint8(n), true
		default:
			return nil, errMalformedHash
		}
	}
	if !seenM || !seenT || !seenP {
		return nil, errMalformedHash
	}
	return &p, nil
}
