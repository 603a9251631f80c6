package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rc4"

	"github.com/pkg/errors"
)

func rc4Simple(key, data []byte) []byte {
	out, _ := rc4Crypt(key, data)
	return out
}

func rc4Crypt(key, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "rc4")
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

// aesDecrypt takes the first block as IV and strips PKCS#7 padding.
func aesDecrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "aes")
	}
	if len(data) < aes.BlockSize {
		return nil, errors.Errorf("aes ciphertext of %d bytes has no IV", len(data))
	}
	iv, ct := data[:aes.BlockSize], data[aes.BlockSize:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, errors.Errorf("aes ciphertext of %d bytes is not block aligned", len(ct))
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	if len(out) == 0 {
		return out, nil
	}
	pad := int(out[len(out)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(out) {
		return nil, errors.New("invalid aes padding")
	}
	return out[:len(out)-pad], nil
}

// alignBlock drops a trailing end-of-line left after an AES payload when
// doing so makes the payload block aligned.
func alignBlock(data []byte) []byte {
	if len(data)%aes.BlockSize == 0 {
		return data
	}
	for _, eol := range [][]byte{[]byte("\r\n"), []byte("\n"), []byte("\r")} {
		if t := bytes.TrimSuffix(data, eol); len(t) != len(data) && len(t)%aes.BlockSize == 0 {
			return t
		}
	}
	return data
}

// EncryptRC4 encrypts data with key. RC4 is symmetric.
func EncryptRC4(key, data []byte) ([]byte, error) {
	return rc4Crypt(key, data)
}

// EncryptAES encrypts data in CBC mode with PKCS#7 padding and returns the
// IV followed by the ciphertext.
func EncryptAES(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "aes")
	}
	if len(iv) != aes.BlockSize {
		return nil, errors.Errorf("iv must be %d bytes", aes.BlockSize)
	}
	padLen := aes.BlockSize - len(data)%aes.BlockSize
	plain := append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
	out := make([]byte, aes.BlockSize+len(plain))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], plain)
	return out, nil
}
