package cookiecloud

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
)

// CookieCloud encrypts payloads in the OpenSSL "Salted__" envelope:
// base64( "Salted__" || 8-byte salt || AES-256-CBC ciphertext ), with key
// and IV derived from the passphrase via EVP_BytesToKey over MD5. The
// passphrase itself is the first 16 hex characters of MD5("{uuid}-{password}").

const opensslSaltHeader = "Salted__"

// DeriveKey computes the CookieCloud passphrase for a store identifier and
// password.
func DeriveKey(uuid, password string) string {
	sum := md5.Sum([]byte(uuid + "-" + password))
	return fmt.Sprintf("%x", sum)[:16]
}

// DecryptEnvelope decrypts a base64-encoded OpenSSL salted envelope with
// the given passphrase and returns the plaintext with padding removed.
func DecryptEnvelope(blob, passphrase string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	if len(raw) < 16 || string(raw[:8]) != opensslSaltHeader {
		return nil, errors.New("envelope missing Salted__ header")
	}
	salt := raw[8:16]
	ciphertext := raw[16:]

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext is not a multiple of the block size")
	}

	key, iv := evpBytesToKey([]byte(passphrase), salt, 32, aes.BlockSize)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext)
}

// EncryptEnvelope is the inverse of DecryptEnvelope. The production path
// only decrypts; this exists for round-trip verification and test fixtures.
func EncryptEnvelope(plaintext []byte, passphrase string, salt [8]byte) (string, error) {
	key, iv := evpBytesToKey([]byte(passphrase), salt[:], 32, aes.BlockSize)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	raw := make([]byte, 0, 16+len(ciphertext))
	raw = append(raw, opensslSaltHeader...)
	raw = append(raw, salt[:]...)
	raw = append(raw, ciphertext...)

	return base64.StdEncoding.EncodeToString(raw), nil
}

// evpBytesToKey implements OpenSSL's EVP_BytesToKey with MD5 and a single
// iteration: D_1 = MD5(passphrase || salt), D_n = MD5(D_{n-1} || passphrase
// || salt), concatenated until keyLen+ivLen bytes are available.
func evpBytesToKey(passphrase, salt []byte, keyLen, ivLen int) (key, iv []byte) {
	var derived []byte
	var prev []byte

	for len(derived) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}

	return derived[:keyLen], derived[keyLen : keyLen+ivLen]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
