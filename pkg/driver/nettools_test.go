package driver

import (
	"errors"
	"testing"
)

// TestNetToolErrorFormat 错误信息带操作和参数，底层错误可解包
func TestNetToolErrorFormat(t *testing.T) {
	inner := errors.New("operation not permitted")

	e := wrapErr("link set up", "tun0", inner)
	if e.Error() != "link set up tun0 失败: operation not permitted" {
		t.Fatalf("错误格式不符: %q", e.Error())
	}
	if !errors.Is(e, inner) {
		t.Fatal("应能解包出底层错误")
	}

	e2 := wrapErr("link del", "", inner)
	if e2.Error() != "link del 失败: operation not permitted" {
		t.Fatalf("无参数时格式不符: %q", e2.Error())
	}

	if wrapErr("noop", "x", nil) != nil {
		t.Fatal("nil 错误不应被封装")
	}
}
