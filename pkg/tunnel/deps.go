package tunnel

type Transport interface {
	Send(data []byte) error
	Receive() ([]byte, error)
	Close() error
}

type TUN interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
	Close() error
	DeviceName() string
}

type NetTools interface {
	SetLinkUp(iface string) error
	SetMTU(iface string, mtu int) error
	AddAddress(iface string, cidr string) error
	AddAddress6(iface string, cidr string) error
}
