package crypto

import (
	"errors"
	"testing"
)

// TestProviderUnknownAlgorithm 测试未注册算法的错误
func TestProviderUnknownAlgorithm(t *testing.T) {
	p := DefaultProvider()

	if _, err := p.CreateCrypter(EncrAlg(99), make([]byte, 16)); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("未注册加密算法应返回 ErrUnsupportedAlgorithm, got %v", err)
	}
	if _, err := p.CreateSigner(IntegAlg(99), make([]byte, 20)); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("未注册完整性算法应返回 ErrUnsupportedAlgorithm, got %v", err)
	}
}

// TestProviderHas 测试注册表查询
func TestProviderHas(t *testing.T) {
	p := DefaultProvider()

	if !p.HasCrypter(ENCR_AES_CBC) {
		t.Error("默认注册表应包含 ENCR_AES_CBC")
	}
	if !p.HasSigner(AUTH_HMAC_SHA2_512_256) {
		t.Error("默认注册表应包含 AUTH_HMAC_SHA2_512_256")
	}
	if p.HasCrypter(EncrAlg(99)) {
		t.Error("未注册的算法不应存在")
	}

	empty := NewProvider()
	if empty.HasCrypter(ENCR_AES_CBC) {
		t.Error("空注册表不应包含任何算法")
	}
}

// TestProviderRegister 测试挂入自定义引擎
func TestProviderRegister(t *testing.T) {
	p := NewProvider()

	const private = EncrAlg(1024)
	p.RegisterCrypter(private, newNullCrypter)

	c, err := p.CreateCrypter(private, nil)
	if err != nil {
		t.Fatalf("创建自定义引擎失败: %v", err)
	}
	defer c.Destroy()

	if c.BlockSize() != 4 {
		t.Errorf("BlockSize 错误: got %d, want 4", c.BlockSize())
	}
}

// TestAlgorithmString 测试变换 ID 的可读名
func TestAlgorithmString(t *testing.T) {
	if got := ENCR_AES_CBC.String(); got != "ENCR_AES_CBC" {
		t.Errorf("String 错误: got %s", got)
	}
	if got := AUTH_HMAC_SHA1_96.String(); got != "AUTH_HMAC_SHA1_96" {
		t.Errorf("String 错误: got %s", got)
	}
	if got := EncrAlg(99).String(); got != "ENCR_99" {
		t.Errorf("未知 ID 的 String 错误: got %s", got)
	}
}
