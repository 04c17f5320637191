package crypto

import "sync"

// CrypterFactory 按密钥材料长度构造未设键的加密引擎
// keyLen 为 0 时取算法默认长度。
type CrypterFactory func(keyLen int) (Crypter, error)

// SignerFactory 构造未设键的完整性引擎
type SignerFactory func(keyLen int) (Signer, error)

// Provider 加密引擎注册表
// 引擎实现按 IANA 变换 ID 注册，SA 安装时查表构造，
// 新算法通过 Register 挂入而不是改数据面的分支。
type Provider struct {
	mu       sync.RWMutex
	crypters map[EncrAlg]CrypterFactory
	signers  map[IntegAlg]SignerFactory
}

func NewProvider() *Provider {
	return &Provider{
		crypters: make(map[EncrAlg]CrypterFactory),
		signers:  make(map[IntegAlg]SignerFactory),
	}
}

// DefaultProvider 注册全部内建算法的 Provider
func DefaultProvider() *Provider {
	p := NewProvider()
	p.RegisterCrypter(ENCR_NULL, newNullCrypter)
	p.RegisterCrypter(ENCR_AES_CBC, newAESCBC)
	p.RegisterCrypter(ENCR_AES_CTR, newAESCTR)
	p.RegisterSigner(AUTH_HMAC_SHA1_96, newHMACSHA1_96)
	p.RegisterSigner(AUTH_HMAC_SHA2_256_128, newHMACSHA256_128)
	p.RegisterSigner(AUTH_HMAC_SHA2_384_192, newHMACSHA384_192)
	p.RegisterSigner(AUTH_HMAC_SHA2_512_256, newHMACSHA512_256)
	return p
}

func (p *Provider) RegisterCrypter(alg EncrAlg, f CrypterFactory) {
	p.mu.Lock()
	p.crypters[alg] = f
	p.mu.Unlock()
}

func (p *Provider) RegisterSigner(alg IntegAlg, f SignerFactory) {
	p.mu.Lock()
	p.signers[alg] = f
	p.mu.Unlock()
}

func (p *Provider) HasCrypter(alg EncrAlg) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.crypters[alg]
	return ok
}

func (p *Provider) HasSigner(alg IntegAlg) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.signers[alg]
	return ok
}

// CreateCrypter 构造加密引擎并设键
// 未注册的算法返回 ErrUnsupportedAlgorithm，设键失败时引擎已销毁。
func (p *Provider) CreateCrypter(alg EncrAlg, key []byte) (Crypter, error) {
	p.mu.RLock()
	f, ok := p.crypters[alg]
	p.mu.RUnlock()
	if !ok {
		return nil, ErrUnsupportedAlgorithm
	}
	c, err := f(len(key))
	if err != nil {
		return nil, err
	}
	if err := c.SetKey(key); err != nil {
		c.Destroy()
		return nil, err
	}
	return c, nil
}

// CreateSigner 构造完整性引擎并设键
func (p *Provider) CreateSigner(alg IntegAlg, key []byte) (Signer, error) {
	p.mu.RLock()
	f, ok := p.signers[alg]
	p.mu.RUnlock()
	if !ok {
		return nil, ErrUnsupportedAlgorithm
	}
	s, err := f(len(key))
	if err != nil {
		return nil, err
	}
	if err := s.SetKey(key); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}
