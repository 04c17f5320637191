package crypto

import (
	"errors"
	"fmt"
)

// IANA IKEv2 变换 ID (RFC 7296)，ESP SA 安装时由密钥协商方传入

// EncrAlg 加密算法变换 ID (Transform Type 1)
type EncrAlg uint16

const (
	ENCR_NULL    EncrAlg = 11
	ENCR_AES_CBC EncrAlg = 12 // RFC 3602
	ENCR_AES_CTR EncrAlg = 13 // RFC 3686
)

// IntegAlg 完整性算法变换 ID (Transform Type 3)
type IntegAlg uint16

const (
	AUTH_HMAC_SHA1_96      IntegAlg = 2  // RFC 2404
	AUTH_HMAC_SHA2_256_128 IntegAlg = 12 // RFC 4868
	AUTH_HMAC_SHA2_384_192 IntegAlg = 13 // RFC 4868
	AUTH_HMAC_SHA2_512_256 IntegAlg = 14 // RFC 4868
)

var (
	// ErrUnsupportedAlgorithm 请求的算法 ID 未注册
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	// ErrKeyRejected 密钥长度或格式不符合算法要求
	ErrKeyRejected = errors.New("key rejected")
)

func (a EncrAlg) String() string {
	switch a {
	case ENCR_NULL:
		return "ENCR_NULL"
	case ENCR_AES_CBC:
		return "ENCR_AES_CBC"
	case ENCR_AES_CTR:
		return "ENCR_AES_CTR"
	default:
		return fmt.Sprintf("ENCR_%d", uint16(a))
	}
}

func (a IntegAlg) String() string {
	switch a {
	case AUTH_HMAC_SHA1_96:
		return "AUTH_HMAC_SHA1_96"
	case AUTH_HMAC_SHA2_256_128:
		return "AUTH_HMAC_SHA2_256_128"
	case AUTH_HMAC_SHA2_384_192:
		return "AUTH_HMAC_SHA2_384_192"
	case AUTH_HMAC_SHA2_512_256:
		return "AUTH_HMAC_SHA2_512_256"
	default:
		return fmt.Sprintf("AUTH_%d", uint16(a))
	}
}
