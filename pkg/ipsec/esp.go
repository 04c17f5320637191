package ipsec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ESP 数据包格式 (RFC 4303)
// [ SPI (4) | Seq (4) | IV (var) | Payload ... | Padding ... | PadLen(1) | NextHeader(1) ] [ ICV (var) ]

const espHeaderLen = 8

var (
	// ErrReplayRejected 序列号为零、已收过或已滑出抗重放窗口
	ErrReplayRejected = errors.New("replayed or stale sequence number")
	// ErrIntegrityFailed ICV 校验失败
	ErrIntegrityFailed = errors.New("integrity check failed")
)

// Encapsulate 把一个 IP 包封装成 ESP 包
// 序列号耗尽时原样返回 ErrSequenceExhausted，调用方据此重建 SA。
func Encapsulate(plaintext []byte, sa *SecurityAssociation) ([]byte, error) {
	ctx := sa.Context
	seq, err := ctx.NextSeqno()
	if err != nil {
		return nil, err
	}
	crypter := ctx.Crypter()
	signer := ctx.Signer()

	header := make([]byte, espHeaderLen)
	binary.BigEndian.PutUint32(header[0:4], sa.SPI)
	binary.BigEndian.PutUint32(header[4:8], seq)

	iv, err := crypter.IV(seq)
	if err != nil {
		return nil, fmt.Errorf("生成 IV 失败: %v", err)
	}

	// 下一个头部: TUN 载荷是 IPv4 (4) 或 IPv6 (41)
	nextHeader := uint8(0)
	if len(plaintext) > 0 {
		switch plaintext[0] >> 4 {
		case 4:
			nextHeader = 4
		case 6:
			nextHeader = 41
		}
	}

	// RFC 4303: 载荷 + 填充 + PadLen + NextHeader 对齐到算法块
	blockSize := crypter.BlockSize()
	padLen := 0
	if n := (len(plaintext) + 2) % blockSize; n != 0 {
		padLen = blockSize - n
	}

	data := make([]byte, len(plaintext)+padLen+2)
	copy(data, plaintext)
	for i := 0; i < padLen; i++ {
		data[len(plaintext)+i] = byte(i + 1)
	}
	data[len(data)-2] = byte(padLen)
	data[len(data)-1] = nextHeader

	ciphertext, err := crypter.Encrypt(data, iv)
	if err != nil {
		return nil, err
	}

	packet := make([]byte, 0, espHeaderLen+len(iv)+len(ciphertext)+signer.MACSize())
	packet = append(packet, header...)
	packet = append(packet, iv...)
	packet = append(packet, ciphertext...)

	icv, err := signer.Sign(packet)
	if err != nil {
		return nil, err
	}
	return append(packet, icv...), nil
}

// Decapsulate 验证并解开一个 ESP 包
// 序列号先过窗口预检避免给重放包做解密，完整性和解密都通过后
// 才落账，中途任何失败都不影响窗口状态。
func Decapsulate(packet []byte, sa *SecurityAssociation) ([]byte, error) {
	ctx := sa.Context
	crypter := ctx.Crypter()
	signer := ctx.Signer()

	ivSize := crypter.IVSize()
	icvSize := signer.MACSize()
	if len(packet) < espHeaderLen+ivSize+icvSize {
		return nil, errors.New("ESP packet too short")
	}

	spi := binary.BigEndian.Uint32(packet[0:4])
	if spi != sa.SPI {
		return nil, fmt.Errorf("SPI 不匹配: got 0x%08x, want 0x%08x", spi, sa.SPI)
	}

	seq := binary.BigEndian.Uint32(packet[4:8])
	if !ctx.VerifySeqno(seq) {
		return nil, ErrReplayRejected
	}

	icv := packet[len(packet)-icvSize:]
	authed := packet[:len(packet)-icvSize]
	if !signer.Verify(authed, icv) {
		return nil, ErrIntegrityFailed
	}

	iv := packet[espHeaderLen : espHeaderLen+ivSize]
	plaintext, err := crypter.Decrypt(authed[espHeaderLen+ivSize:], iv)
	if err != nil {
		return nil, err
	}

	if len(plaintext) < 2 {
		return nil, errors.New("decrypted payload too short")
	}
	padLen := int(plaintext[len(plaintext)-2])
	if len(plaintext) < 2+padLen {
		return nil, errors.New("invalid padding length")
	}

	// 解密和完整性都通过，序列号此刻才落入窗口
	ctx.SetAuthenticatedSeqno(seq)

	return plaintext[:len(plaintext)-2-padLen], nil
}
