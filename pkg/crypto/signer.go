package crypto

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"hash"
)

// Signer 已设键的完整性引擎
// Sign 产生截断后的 ICV，Verify 对收到的 ICV 做常数时间比较。
type Signer interface {
	SetKey(key []byte) error
	Sign(data []byte) ([]byte, error)
	Verify(data, icv []byte) bool
	// MACSize 截断后的 ICV 长度
	MACSize() int
	KeySize() int
	Destroy()
}

// hmacSigner HMAC 族完整性引擎，按 RFC 2404/4868 截断
type hmacSigner struct {
	newHash func() hash.Hash
	keySize int
	macSize int
	key     []byte
	mac     hash.Hash
}

func newHMACSHA1_96(int) (Signer, error) {
	return &hmacSigner{newHash: sha1.New, keySize: 20, macSize: 12}, nil
}

func newHMACSHA256_128(int) (Signer, error) {
	return &hmacSigner{newHash: sha256.New, keySize: 32, macSize: 16}, nil
}

func newHMACSHA384_192(int) (Signer, error) {
	return &hmacSigner{newHash: sha512.New384, keySize: 48, macSize: 24}, nil
}

func newHMACSHA512_256(int) (Signer, error) {
	return &hmacSigner{newHash: sha512.New, keySize: 64, macSize: 32}, nil
}

func (s *hmacSigner) SetKey(key []byte) error {
	if len(key) != s.keySize {
		return ErrKeyRejected
	}
	s.key = append([]byte(nil), key...)
	s.mac = hmac.New(s.newHash, s.key)
	return nil
}

func (s *hmacSigner) Sign(data []byte) ([]byte, error) {
	if s.mac == nil {
		return nil, errors.New("密钥未设置")
	}
	s.mac.Reset()
	s.mac.Write(data)
	return s.mac.Sum(nil)[:s.macSize], nil
}

func (s *hmacSigner) Verify(data, icv []byte) bool {
	if len(icv) != s.macSize {
		return false
	}
	expected, err := s.Sign(data)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, icv)
}

func (s *hmacSigner) MACSize() int { return s.macSize }
func (s *hmacSigner) KeySize() int { return s.keySize }

func (s *hmacSigner) Destroy() {
	zeroBytes(s.key)
	s.key = nil
	s.mac = nil
}
