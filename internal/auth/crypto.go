package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100_000
	aesKeyLen        = 16 // AES-128
)

// deriveKey stretches the server secret into a 16-byte AES key via
// PBKDF2-HMAC-SHA1, matching original_source's equivalent key-handling
// step; x/crypto is kept as a dependency specifically for this, since
// stdlib has no PBKDF2 implementation.
func deriveKey(serverSecret string) []byte {
	return pbkdf2.Key([]byte(serverSecret), []byte("nghego-password-at-rest"), pbkdf2Iterations, aesKeyLen, sha1.New)
}

// EncryptPassword stores password reversibly: AES-128-CBC with a random
// 16-byte IV prefixed to the ciphertext. Subsonic's wire auth needs the
// plaintext back to recompute token = md5(password||salt), so a one-way
// hash (what the teacher used for its own bearer-token scheme) cannot
// serve here.
func EncryptPassword(serverSecret, password string) ([]byte, error) {
	key := deriveKey(serverSecret)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad([]byte(password), aes.BlockSize)
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}

	out := make([]byte, aes.BlockSize+len(padded))
	copy(out, iv)
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

func DecryptPassword(serverSecret string, enc []byte) (string, error) {
	if len(enc) < aes.BlockSize || (len(enc)-aes.BlockSize)%aes.BlockSize != 0 {
		return "", errors.New("invalid ciphertext length")
	}
	key := deriveKey(serverSecret)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	iv := enc[:aes.BlockSize]
	ciphertext := enc[aes.BlockSize:]
	plain := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plain, ciphertext)
	return string(pkcs7Unpad(plain)), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(data, padding...)
}

func pkcs7Unpad(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	padLen := int(data[len(data)-1])
	if padLen <= 0 || padLen > len(data) {
		return data
	}
	return data[:len(data)-padLen]
}

// SubsonicToken computes token = md5(password || salt), the wire value
// clients send instead of the plaintext password.
func SubsonicToken(password, salt string) string {
	sum := md5.Sum([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}
