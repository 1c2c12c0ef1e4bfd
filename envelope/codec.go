package envelope

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strings"

	"comfynodes/imgio"
	"comfynodes/logger"

	"github.com/ProtonMail/go-crypto/eax"
)

const (
	sessionKeySize = 16
	nonceSize      = 16
	tagSize        = 16
)

// Encrypt encodes the first image of v as lossless WebP and seals it for the
// holder of publicKeyPEM. The session key is wrapped with RSA-OAEP (SHA-1)
// and the payload is sealed with AES-128-EAX. The result is the base64 text
// form of the envelope.
func Encrypt(ctx context.Context, conv *imgio.Converter, v any, publicKeyPEM string) (string, error) {
	pub, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return "", err
	}
	if isEmpty(v) {
		return "", fmt.Errorf("%w: no image provided", ErrInput)
	}

	imgs, err := conv.ToImages(ctx, v, imgio.Options{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInput, err)
	}
	if len(imgs) == 0 {
		return "", fmt.Errorf("%w: no image provided", ErrInput)
	}
	if len(imgs) > 1 {
		logger.Warn("Encrypting only the first image of a batch", "batch", len(imgs))
	}

	plaintext, err := imgio.EncodeBytes(imgs[0], imgio.FormatWEBP, 0)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	env, err := seal(pub, plaintext)
	if err != nil {
		return "", err
	}
	blob, err := env.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

func seal(pub *rsa.PublicKey, plaintext []byte) (*Envelope, error) {
	sessionKey := make([]byte, sessionKeySize)
	if _, err := rand.Read(sessionKey); err != nil {
		return nil, fmt.Errorf("%w: session key: %v", ErrEncoding, err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrEncoding, err)
	}

	aead, err := newAEAD(sessionKey, nonceSize, tagSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)

	wrapped, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, sessionKey, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: wrap session key: %v", ErrEncoding, err)
	}

	split := len(sealed) - tagSize
	return &Envelope{
		WrappedKey: wrapped,
		Nonce:      nonce,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
	}, nil
}

// Decrypt opens an envelope produced by Encrypt and returns the image as RGB.
// payload is a base64 string or a []string, of which only the first element
// is used. The tag is verified before any plaintext is decoded.
func Decrypt(payload any, privateKeyPEM string) (*imgio.Image, error) {
	text, err := firstPayload(payload)
	if err != nil {
		return nil, err
	}
	priv, err := ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}

	blob, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(text), ""))
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrFormat, err)
	}
	env, err := ParseEnvelope(blob)
	if err != nil {
		return nil, err
	}

	plaintext, err := open(priv, env)
	if err != nil {
		return nil, err
	}

	img, err := imgio.Decode(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return imgio.Normalize(img, false), nil
}

func open(priv *rsa.PrivateKey, env *Envelope) ([]byte, error) {
	sessionKey, err := rsa.DecryptOAEP(sha1.New(), nil, priv, env.WrappedKey, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap session key: %v", ErrIntegrity, err)
	}

	if len(env.Tag) != tagSize {
		return nil, fmt.Errorf("%w: tag is %d bytes, want %d", ErrIntegrity, len(env.Tag), tagSize)
	}
	aead, err := newAEAD(sessionKey, len(env.Nonce), tagSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)
	plaintext, err := aead.Open(nil, env.Nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: data tampered or wrong key", ErrIntegrity)
	}
	return plaintext, nil
}

func newAEAD(key []byte, nonceLen, tagLen int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return eax.NewEAXWithNonceAndTagSize(block, nonceLen, tagLen)
}

func firstPayload(payload any) (string, error) {
	var text string
	switch p := payload.(type) {
	case string:
		text = p
	case []string:
		if len(p) > 0 {
			text = p[0]
		}
	case []any:
		if len(p) > 0 {
			s, ok := p[0].(string)
			if !ok {
				return "", fmt.Errorf("%w: payload element is %T, want string", ErrInput, p[0])
			}
			text = s
		}
	case nil:
	default:
		return "", fmt.Errorf("%w: payload is %T, want string or list of strings", ErrInput, payload)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty envelope", ErrInput)
	}
	return text, nil
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case *imgio.Tensor:
		return val == nil || len(val.Data) == 0
	case *imgio.PixelBuffer:
		return val == nil || (len(val.Uint8) == 0 && len(val.Float32) == 0)
	}
	return false
}
