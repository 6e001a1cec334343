package cipher

import (
	stdcipher "crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"lukechampine.com/frand"
)

type xchacha20poly1305Cipher struct {
	aead stdcipher.AEAD
}

func newXChaCha20Poly1305(key []byte) (AEAD, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("crypto init: %w", err)
	}
	return &xchacha20poly1305Cipher{aead: aead}, nil
}

func (c *xchacha20poly1305Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := frand.Bytes(c.aead.NonceSize())
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), nil
}

func (c *xchacha20poly1305Cipher) Decrypt(message []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(message) < nonceSize {
		return nil, fmt.Errorf("crypto decryption: message shorter than nonce")
	}
	nonce, ciphertext := message[:nonceSize], message[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto decryption: %w", err)
	}
	return plaintext, nil
}
