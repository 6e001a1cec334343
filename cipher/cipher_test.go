package cipher

import (
	"bytes"
	"testing"
)

func TestRoundTripBothCiphers(t *testing.T) {
	for _, typ := range []Type{XChaCha20Poly1305, AES256GCM} {
		t.Run(typ.String(), func(t *testing.T) {
			key := GenerateKey()
			c, err := New(typ, key)
			if err != nil {
				t.Fatal(err)
			}
			plaintext := []byte("the quick brown fox")
			ciphertext, err := c.Encrypt(plaintext)
			if err != nil {
				t.Fatal(err)
			}
			got, err := c.Decrypt(ciphertext)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, plaintext) {
				t.Fatalf("got %q, want %q", got, plaintext)
			}
		})
	}
}

func TestNonceLengthsPerCipher(t *testing.T) {
	key := GenerateKey()

	x, err := New(XChaCha20Poly1305, key)
	if err != nil {
		t.Fatal(err)
	}
	ct, err := x.Encrypt([]byte("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ct) < 24 {
		t.Fatalf("expected at least a 24-byte nonce prefix, got message of length %d", len(ct))
	}

	a, err := New(AES256GCM, key)
	if err != nil {
		t.Fatal(err)
	}
	ct, err = a.Encrypt([]byte("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ct) < 12 {
		t.Fatalf("expected at least a 12-byte nonce prefix, got message of length %d", len(ct))
	}
}

func TestTamperedCiphertextFailsToDecrypt(t *testing.T) {
	key := GenerateKey()
	c, err := New(XChaCha20Poly1305, key)
	if err != nil {
		t.Fatal(err)
	}
	ciphertext, err := c.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	ciphertext[len(ciphertext)-1] ^= 0xFF
	if _, err := c.Decrypt(ciphertext); err == nil {
		t.Fatal("expected decryption of tampered ciphertext to fail")
	}
}

func TestWrongKeyFailsToDecrypt(t *testing.T) {
	a, err := New(XChaCha20Poly1305, GenerateKey())
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(XChaCha20Poly1305, GenerateKey())
	if err != nil {
		t.Fatal(err)
	}
	ciphertext, err := a.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Decrypt(ciphertext); err == nil {
		t.Fatal("expected decryption under the wrong key to fail")
	}
}

func TestParseTypeRoundTrip(t *testing.T) {
	for _, typ := range []Type{XChaCha20Poly1305, AES256GCM} {
		parsed, err := ParseType(typ.String())
		if err != nil {
			t.Fatal(err)
		}
		if parsed != typ {
			t.Fatalf("got %v, want %v", parsed, typ)
		}
	}
	if _, err := ParseType("not-a-cipher"); err == nil {
		t.Fatal("expected error for unknown cipher name")
	}
}

func TestParseCLIFlag(t *testing.T) {
	cases := map[string]Type{
		"xchacha20poly1305": XChaCha20Poly1305,
		"XChaCha20Poly1305": XChaCha20Poly1305,
		"aes256gcm":         AES256GCM,
		"AES256GCM":         AES256GCM,
	}
	for s, want := range cases {
		got, err := ParseCLIFlag(s)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("%s: got %v want %v", s, got, want)
		}
	}
	if _, err := ParseCLIFlag("bogus"); err == nil {
		t.Fatal("expected error for unknown cipher flag")
	}
}
