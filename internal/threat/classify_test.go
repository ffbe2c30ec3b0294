package threat

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		value string
		want  Type
	}{
		{"1.2.3.4", TypeIP},
		{"255.255.255.255", TypeIP},
		{"999.999.999.999", TypeIP}, // shape only; Valid rejects it
		{"http://evil.example/payload", TypeURL},
		{"https://evil.example", TypeURL},
		{"d41d8cd98f00b204e9800998ecf8427e", TypeHash},                                 // md5
		{"da39a3ee5e6b4b0d3255bfef95601890afd80709", TypeHash},                         // sha1
		{"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", TypeHash}, // sha256
		{"alice@example.com", TypeEmail},
		{"malware.test", TypeDomain},
		{"sub.domain.example.org", TypeDomain},
		{"deadbeef", TypeDomain}, // short hex falls through to the catch-all
		{"not an indicator", TypeDomain},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.value))
		})
	}
}

func TestValidIPv4(t *testing.T) {
	for _, ip := range []string{"0.0.0.0", "1.2.3.4", "10.0.0.1", "255.255.255.255"} {
		assert.True(t, Valid(ip, TypeIP), ip)
	}
	for _, ip := range []string{"256.1.1.1", "1.2.3.999", "1.2.3", "1.2.3.4.5", "a.b.c.d", ""} {
		assert.False(t, Valid(ip, TypeIP), ip)
	}
}

func TestValidIPv4OctetRange(t *testing.T) {
	for _, octet := range []int{0, 1, 127, 254, 255} {
		s := fmt.Sprintf("10.20.30.%d", octet)
		assert.True(t, Valid(s, TypeIP), s)
	}
	for _, octet := range []int{256, 300, 999} {
		s := fmt.Sprintf("10.20.30.%d", octet)
		assert.False(t, Valid(s, TypeIP), s)
	}
}

func TestValidHash(t *testing.T) {
	assert.True(t, Valid(strings.Repeat("a", 32), TypeHash))
	assert.True(t, Valid(strings.Repeat("A", 40), TypeHash))
	assert.True(t, Valid(strings.Repeat("0", 64), TypeHash))

	// Only the exact md5/sha1/sha256 lengths pass.
	assert.False(t, Valid(strings.Repeat("a", 31), TypeHash))
	assert.False(t, Valid(strings.Repeat("a", 33), TypeHash))
	assert.False(t, Valid(strings.Repeat("a", 63), TypeHash))
	assert.False(t, Valid(strings.Repeat("g", 32), TypeHash))
}

func TestValidDomain(t *testing.T) {
	assert.True(t, Valid("example.com", TypeDomain))
	assert.True(t, Valid("a-b.example.co.uk", TypeDomain))

	assert.False(t, Valid("example", TypeDomain), "single label")
	assert.False(t, Valid("example..com", TypeDomain), "empty label")
	assert.False(t, Valid("-bad.example.com", TypeDomain), "label starts with hyphen")
	assert.False(t, Valid("example.c0m1", TypeDomain), "numeric tld")
	assert.False(t, Valid(strings.Repeat("a", 64)+".com", TypeDomain), "label too long")
	assert.False(t, Valid(strings.Repeat("abc.", 70)+"com", TypeDomain), "name too long")
}

func TestValidURL(t *testing.T) {
	assert.True(t, Valid("http://example.com/path", TypeURL))
	assert.True(t, Valid("https://example.com", TypeURL))

	assert.False(t, Valid("ftp://example.com", TypeURL))
	assert.False(t, Valid("https://", TypeURL), "no host")
	assert.False(t, Valid("example.com", TypeURL))
}

func TestValidEmail(t *testing.T) {
	assert.True(t, Valid("user@example.com", TypeEmail))
	assert.False(t, Valid("user@", TypeEmail))
	assert.False(t, Valid("user@nodot", TypeEmail))
	assert.False(t, Valid("has space@example.com", TypeEmail))
}

func TestValidRejectsShortValues(t *testing.T) {
	for _, typ := range []Type{TypeIP, TypeDomain, TypeHash, TypeURL, TypeEmail} {
		assert.False(t, Valid("ab", typ), string(typ))
	}
}

func TestClassificationSurvivesInvalidValues(t *testing.T) {
	// Classification stays best-effort even when strict validation fails.
	v := "300.300.300.300"
	assert.Equal(t, TypeIP, Classify(v))
	assert.False(t, Valid(v, TypeIP))
}
