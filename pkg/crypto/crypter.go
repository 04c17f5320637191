package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
)

// Crypter 已设键的加密引擎
// SetKey 成功后引擎独占持有密钥副本，Destroy 负责清零。
// IV 按算法自身的策略生成: CBC 随机，CTR 由序列号推导，NULL 为空。
type Crypter interface {
	SetKey(key []byte) error
	Encrypt(plaintext, iv []byte) ([]byte, error)
	Decrypt(ciphertext, iv []byte) ([]byte, error)
	IV(seqno uint32) ([]byte, error)
	IVSize() int
	// BlockSize ESP 载荷的填充对齐 (CBC 为密码块，CTR/NULL 为 4 字节)
	BlockSize() int
	// KeySize SetKey 期望的完整密钥材料长度 (CTR 含 4 字节 nonce)
	KeySize() int
	Destroy()
}

// AES-CBC (RFC 3602)
type aesCBC struct {
	keySize int
	key     []byte
	block   cipher.Block
}

func newAESCBC(keyLen int) (Crypter, error) {
	if keyLen == 0 {
		keyLen = 16
	}
	switch keyLen {
	case 16, 24, 32:
	default:
		return nil, ErrKeyRejected
	}
	return &aesCBC{keySize: keyLen}, nil
}

func (c *aesCBC) SetKey(key []byte) error {
	if len(key) != c.keySize {
		return ErrKeyRejected
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return ErrKeyRejected
	}
	c.key = append([]byte(nil), key...)
	c.block = block
	return nil
}

func (c *aesCBC) Encrypt(plaintext, iv []byte) ([]byte, error) {
	if c.block == nil {
		return nil, errors.New("密钥未设置")
	}
	if len(iv) != aes.BlockSize {
		return nil, errors.New("IV 长度错误")
	}
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, errors.New("明文未对齐块")
	}
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ciphertext, plaintext)
	return ciphertext, nil
}

func (c *aesCBC) Decrypt(ciphertext, iv []byte) ([]byte, error) {
	if c.block == nil {
		return nil, errors.New("密钥未设置")
	}
	if len(iv) != aes.BlockSize {
		return nil, errors.New("IV 长度错误")
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("密文未对齐块")
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plaintext, ciphertext)
	return plaintext, nil
}

func (c *aesCBC) IV(seqno uint32) ([]byte, error) { return RandomBytes(aes.BlockSize) }
func (c *aesCBC) IVSize() int { return aes.BlockSize }
func (c *aesCBC) BlockSize() int { return aes.BlockSize }
func (c *aesCBC) KeySize() int { return c.keySize }

func (c *aesCBC) Destroy() {
	zeroBytes(c.key)
	c.key = nil
	c.block = nil
}

// AES-CTR (RFC 3686)
// 密钥材料布局: [AES 密钥 | 4 字节 nonce]，计数器块 = nonce | IV(8) | 0x00000001
type aesCTR struct {
	keySize int // AES 密钥长度，不含 nonce
	key     []byte
	nonce   []byte
	block   cipher.Block
}

func newAESCTR(keyLen int) (Crypter, error) {
	if keyLen == 0 {
		keyLen = 20
	}
	switch keyLen {
	case 20, 28, 36: // 16/24/32 + 4 字节 nonce
	default:
		return nil, ErrKeyRejected
	}
	return &aesCTR{keySize: keyLen - 4}, nil
}

func (c *aesCTR) SetKey(key []byte) error {
	if len(key) != c.keySize+4 {
		return ErrKeyRejected
	}
	block, err := aes.NewCipher(key[:c.keySize])
	if err != nil {
		return ErrKeyRejected
	}
	c.key = append([]byte(nil), key[:c.keySize]...)
	c.nonce = append([]byte(nil), key[c.keySize:]...)
	c.block = block
	return nil
}

func (c *aesCTR) crypt(in, iv []byte) ([]byte, error) {
	if c.block == nil {
		return nil, errors.New("密钥未设置")
	}
	if len(iv) != 8 {
		return nil, errors.New("IV 长度错误")
	}
	ctr := make([]byte, aes.BlockSize)
	copy(ctr[0:4], c.nonce)
	copy(ctr[4:12], iv)
	binary.BigEndian.PutUint32(ctr[12:16], 1)

	out := make([]byte, len(in))
	cipher.NewCTR(c.block, ctr).XORKeyStream(out, in)
	return out, nil
}

func (c *aesCTR) Encrypt(plaintext, iv []byte) ([]byte, error) { return c.crypt(plaintext, iv) }

func (c *aesCTR) Decrypt(ciphertext, iv []byte) ([]byte, error) { return c.crypt(ciphertext, iv) }

// IV 由序列号推导，保证同一 SA 内不重复 (CTR 模式禁止 IV 重用)
func (c *aesCTR) IV(seqno uint32) ([]byte, error) {
	iv := make([]byte, 8)
	binary.BigEndian.PutUint64(iv, uint64(seqno))
	return iv, nil
}

func (c *aesCTR) IVSize() int { return 8 }

// BlockSize 流模式，仅需 RFC 4303 的 32 位对齐
func (c *aesCTR) BlockSize() int { return 4 }

func (c *aesCTR) KeySize() int { return c.keySize + 4 }

func (c *aesCTR) Destroy() {
	zeroBytes(c.key)
	zeroBytes(c.nonce)
	c.key = nil
	c.nonce = nil
	c.block = nil
}

// NULL 加密 (RFC 2410)，仅完整性保护的 SA 使用
type nullCrypter struct{}

func newNullCrypter(keyLen int) (Crypter, error) {
	if keyLen != 0 {
		return nil, ErrKeyRejected
	}
	return &nullCrypter{}, nil
}

func (c *nullCrypter) SetKey(key []byte) error {
	if len(key) != 0 {
		return ErrKeyRejected
	}
	return nil
}

func (c *nullCrypter) Encrypt(plaintext, iv []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	copy(out, plaintext)
	return out, nil
}

func (c *nullCrypter) Decrypt(ciphertext, iv []byte) ([]byte, error) {
	out := make([]byte, len(ciphertext))
	copy(out, ciphertext)
	return out, nil
}

func (c *nullCrypter) IV(seqno uint32) ([]byte, error) { return nil, nil }
func (c *nullCrypter) IVSize() int { return 0 }
func (c *nullCrypter) BlockSize() int { return 4 }
func (c *nullCrypter) KeySize() int { return 0 }
func (c *nullCrypter) Destroy() {}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
