package spill

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"

	"fedcat/internal/domain"
)

const (
	keySize   = 32
	nonceSize = 12
)

var (
	_ domain.KeyFactory = (*LocalKeyFactory)(nil)
	_ domain.KeyFactory = (*KMSKeyFactory)(nil)
)

// LocalKeyFactory generates AES-256-GCM keys from crypto/rand.
type LocalKeyFactory struct {
	rand io.Reader
}

// NewLocalKeyFactory creates a LocalKeyFactory.
func NewLocalKeyFactory() *LocalKeyFactory {
	return &LocalKeyFactory{rand: rand.Reader}
}

// Create returns a fresh key and nonce.
func (f *LocalKeyFactory) Create(_ context.Context) (*domain.EncryptionKey, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(f.rand, key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	nonce, err := newNonce(f.rand)
	if err != nil {
		return nil, err
	}
	return &domain.EncryptionKey{Key: key, Nonce: nonce}, nil
}

// KMSAPI is the subset of the KMS client used for data keys.
type KMSAPI interface {
	GenerateDataKey(ctx context.Context, in *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
}

// KMSKeyFactory generates data keys under a customer master key.
type KMSKeyFactory struct {
	api   KMSAPI
	keyID string
	rand  io.Reader
}

// NewKMSKeyFactory creates a factory using keyID from an AWS configuration.
func NewKMSKeyFactory(cfg aws.Config, keyID string) *KMSKeyFactory {
	return NewKMSKeyFactoryWithAPI(kms.NewFromConfig(cfg), keyID)
}

// NewKMSKeyFactoryWithAPI creates a factory over an existing API implementation.
func NewKMSKeyFactoryWithAPI(api KMSAPI, keyID string) *KMSKeyFactory {
	return &KMSKeyFactory{api: api, keyID: keyID, rand: rand.Reader}
}

// Create asks KMS for an AES-256 data key and pairs its plaintext with a
// random nonce.
func (f *KMSKeyFactory) Create(ctx context.Context) (*domain.EncryptionKey, error) {
	out, err := f.api.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(f.keyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return nil, domain.ErrUnreachable("kms", fmt.Errorf("generate data key: %w", err))
	}
	if len(out.Plaintext) != keySize {
		return nil, fmt.Errorf("kms returned %d byte key, want %d", len(out.Plaintext), keySize)
	}
	nonce, err := newNonce(f.rand)
	if err != nil {
		return nil, err
	}
	return &domain.EncryptionKey{Key: out.Plaintext, Nonce: nonce}, nil
}

func newNonce(r io.Reader) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return nonce, nil
}

// Seal encrypts plaintext with key using AES-256-GCM.
func Seal(key *domain.EncryptionKey, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, key.Nonce, plaintext, nil), nil
}

// Open decrypts ciphertext produced by Seal.
func Open(key *domain.EncryptionKey, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, key.Nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

func newGCM(key *domain.EncryptionKey) (cipher.AEAD, error) {
	if key == nil || len(key.Key) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes", keySize)
	}
	block, err := aes.NewCipher(key.Key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	if len(key.Nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes", gcm.NonceSize())
	}
	return gcm, nil
}
