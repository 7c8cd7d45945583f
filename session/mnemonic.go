// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"
)

// Pairing phrases are six words drawn from the BIP-39 English wordlist
// (2048 words), whitespace-joined. Human-speakable, and with 66 bits of
// entropy unguessable for the lifetime of a pending connection.
const phraseWordCount = 6

// Connect-time phrase bounds: six words of 3 to 8 letters plus five
// spaces. Anything outside is rejected as PeerNotFound without ever
// touching the registry.
const (
	minPhraseLength = phraseWordCount*3 + phraseWordCount - 1
	maxPhraseLength = phraseWordCount*8 + phraseWordCount - 1
)

// Seed derivation parameters: BIP-39 seed derivation, PBKDF2-HMAC-SHA512
// with the phrase as password and "mnemonic"+secret as salt. Mixing the
// server secret means a reused phrase on another server derives a
// different session identity.
const (
	seedIterations = 2048
	seedLength     = 64
	seedSaltPrefix = "mnemonic"
)

// GeneratePhrase returns a fresh six-word pairing phrase. Uniqueness
// among pending connections is the registry's job, not this function's.
func GeneratePhrase() string {
	words := bip39.GetWordList()
	picked := make([]string, phraseWordCount)
	var buf [2]byte
	for i := range picked {
		if _, err := rand.Read(buf[:]); err != nil {
			// crypto/rand never fails on supported platforms.
			panic(fmt.Sprintf("session: read random bytes: %v", err))
		}
		// len(words) is 2048, which divides 65536: no modulo bias.
		picked[i] = words[int(binary.BigEndian.Uint16(buf[:]))%len(words)]
	}
	return strings.Join(picked, " ")
}

// phraseWithinBounds reports whether a phrase's length is plausible for
// a generated pairing phrase.
func phraseWithinBounds(phrase string) bool {
	return len(phrase) >= minPhraseLength && len(phrase) <= maxPhraseLength
}

// DeriveSeed derives a session's identity from its creator's pairing
// phrase and the server-wide secret. Deterministic: the same phrase and
// secret always derive the same seed.
func DeriveSeed(phrase, secret string) []byte {
	return pbkdf2.Key([]byte(phrase), []byte(seedSaltPrefix+secret), seedIterations, seedLength, sha512.New)
}

// EncodeSeed renders a seed as its external URL-safe base64 handle.
func EncodeSeed(seed []byte) string {
	return base64.URLEncoding.EncodeToString(seed)
}

// DecodeSeed parses an external seed handle back into raw bytes.
func DecodeSeed(encoded string) ([]byte, error) {
	seed, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode session seed: %w", err)
	}
	return seed, nil
}
