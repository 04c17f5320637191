package ipsec

import (
	"testing"

	"github.com/iniwex5/esp-go/pkg/crypto"
)

func newTestSA(t *testing.T, spi uint32, dir Direction) *SecurityAssociation {
	t.Helper()
	sa, err := NewSecurityAssociation(crypto.DefaultProvider(), SAConfig{
		SPI:       spi,
		Direction: dir,
		EncrAlg:   crypto.ENCR_NULL,
		IntegAlg:  crypto.AUTH_HMAC_SHA1_96,
		IntegKey:  make([]byte, 20),
	})
	if err != nil {
		t.Fatalf("创建 SA 失败: %v", err)
	}
	return sa
}

// TestSADatabase 测试 SA 数据库的安装、查找与移除
func TestSADatabase(t *testing.T) {
	db := NewSADatabase()

	sa1 := newTestSA(t, 0x100, Inbound)
	sa2 := newTestSA(t, 0x200, Inbound)

	if err := db.Install(sa1); err != nil {
		t.Fatalf("安装失败: %v", err)
	}
	if err := db.Install(sa2); err != nil {
		t.Fatalf("安装失败: %v", err)
	}
	if db.Len() != 2 {
		t.Errorf("数量错误: got %d, want 2", db.Len())
	}

	if got := db.Lookup(0x100); got != sa1 {
		t.Error("查找 0x100 结果错误")
	}
	if got := db.Lookup(0x300); got != nil {
		t.Error("未安装的 SPI 应返回 nil")
	}

	// SPI 冲突
	dup := newTestSA(t, 0x100, Inbound)
	if err := db.Install(dup); err == nil {
		t.Error("重复 SPI 应报错")
	}
	dup.Destroy()

	if !db.Remove(0x100) {
		t.Error("移除已安装的 SA 应返回 true")
	}
	if db.Remove(0x100) {
		t.Error("重复移除应返回 false")
	}
	if db.Lookup(0x100) != nil {
		t.Error("移除后不应再查到")
	}

	db.Flush()
	if db.Len() != 0 {
		t.Errorf("清空后数量应为 0: got %d", db.Len())
	}
}

// TestSADatabaseRekeyOverlap 测试 rekey 期间新旧 SA 并存分流
func TestSADatabaseRekeyOverlap(t *testing.T) {
	db := NewSADatabase()
	defer db.Flush()

	oldSA := newTestSA(t, 0x100, Inbound)
	newSA := newTestSA(t, 0x101, Inbound)

	if err := db.Install(oldSA); err != nil {
		t.Fatalf("安装失败: %v", err)
	}
	if err := db.Install(newSA); err != nil {
		t.Fatalf("安装失败: %v", err)
	}

	if db.Lookup(0x100) != oldSA || db.Lookup(0x101) != newSA {
		t.Error("新旧 SA 应各自可查")
	}

	db.Remove(0x100)
	if db.Lookup(0x101) != newSA {
		t.Error("移除旧 SA 不应影响新 SA")
	}
}
