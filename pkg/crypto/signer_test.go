package crypto

import (
	"bytes"
	"errors"
	"testing"
)

// TestHMACSHA1KnownVector 测试 RFC 2202 向量的 96 位截断
func TestHMACSHA1KnownVector(t *testing.T) {
	key := bytes.Repeat([]byte{0x0b}, 20)
	s, err := DefaultProvider().CreateSigner(AUTH_HMAC_SHA1_96, key)
	if err != nil {
		t.Fatalf("创建 HMAC-SHA1-96 引擎失败: %v", err)
	}
	defer s.Destroy()

	icv, err := s.Sign([]byte("Hi There"))
	if err != nil {
		t.Fatalf("计算 ICV 失败: %v", err)
	}

	want := mustHex(t, "b617318655057264e28bc0b6")
	if !bytes.Equal(icv, want) {
		t.Errorf("ICV 不匹配: got %x, want %x", icv, want)
	}
}

// TestSignerFamily 测试各完整性算法的参数与往返
func TestSignerFamily(t *testing.T) {
	cases := []struct {
		alg     IntegAlg
		keySize int
		macSize int
	}{
		{AUTH_HMAC_SHA1_96, 20, 12},
		{AUTH_HMAC_SHA2_256_128, 32, 16},
		{AUTH_HMAC_SHA2_384_192, 48, 24},
		{AUTH_HMAC_SHA2_512_256, 64, 32},
	}

	data := []byte("authenticate me")
	for _, tc := range cases {
		s, err := DefaultProvider().CreateSigner(tc.alg, make([]byte, tc.keySize))
		if err != nil {
			t.Errorf("%v: 创建引擎失败: %v", tc.alg, err)
			continue
		}

		if s.KeySize() != tc.keySize {
			t.Errorf("%v: KeySize 错误: got %d, want %d", tc.alg, s.KeySize(), tc.keySize)
		}
		if s.MACSize() != tc.macSize {
			t.Errorf("%v: MACSize 错误: got %d, want %d", tc.alg, s.MACSize(), tc.macSize)
		}

		icv, err := s.Sign(data)
		if err != nil {
			t.Errorf("%v: 计算 ICV 失败: %v", tc.alg, err)
			s.Destroy()
			continue
		}
		if len(icv) != tc.macSize {
			t.Errorf("%v: ICV 长度错误: got %d, want %d", tc.alg, len(icv), tc.macSize)
		}
		if !s.Verify(data, icv) {
			t.Errorf("%v: 合法 ICV 校验失败", tc.alg)
		}

		// 篡改数据或 ICV 都必须被发现
		if s.Verify(append([]byte("x"), data...), icv) {
			t.Errorf("%v: 篡改数据未被发现", tc.alg)
		}
		bad := append([]byte(nil), icv...)
		bad[0] ^= 0x01
		if s.Verify(data, bad) {
			t.Errorf("%v: 篡改 ICV 未被发现", tc.alg)
		}
		if s.Verify(data, icv[:len(icv)-1]) {
			t.Errorf("%v: 截短 ICV 未被发现", tc.alg)
		}

		s.Destroy()
	}
}

// TestSignerKeySize 测试完整性密钥长度校验
func TestSignerKeySize(t *testing.T) {
	p := DefaultProvider()
	for _, n := range []int{0, 19, 21, 64} {
		if _, err := p.CreateSigner(AUTH_HMAC_SHA1_96, make([]byte, n)); !errors.Is(err, ErrKeyRejected) {
			t.Errorf("%d 字节密钥应返回 ErrKeyRejected, got %v", n, err)
		}
	}
}

// TestSignerDestroy 测试销毁后引擎不可用
func TestSignerDestroy(t *testing.T) {
	s, err := DefaultProvider().CreateSigner(AUTH_HMAC_SHA2_256_128, make([]byte, 32))
	if err != nil {
		t.Fatalf("创建引擎失败: %v", err)
	}
	s.Destroy()

	if _, err := s.Sign([]byte("data")); err == nil {
		t.Error("销毁后签名应返回错误")
	}
	if s.Verify([]byte("data"), make([]byte, 16)) {
		t.Error("销毁后校验应失败")
	}
}
