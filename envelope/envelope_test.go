package envelope

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"

	"comfynodes/imgio"
)

var (
	keyOnce             sync.Once
	testPriv, testPub   string
	otherPriv, otherPub string
)

func keys(t *testing.T) (string, string) {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		if testPriv, testPub, err = GenerateKeyPair(1024); err != nil {
			t.Fatal(err)
		}
		if otherPriv, otherPub, err = GenerateKeyPair(1024); err != nil {
			t.Fatal(err)
		}
	})
	return testPriv, testPub
}

// cornerImage is 8x8 grey with red, green and blue corners.
func cornerImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 90, G: 90, B: 90, A: 255})
		}
	}
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(7, 0, color.NRGBA{G: 255, A: 255})
	img.SetNRGBA(0, 7, color.NRGBA{B: 255, A: 255})
	return img
}

func encryptCorner(t *testing.T) string {
	t.Helper()
	_, pub := keys(t)
	out, err := Encrypt(context.Background(), imgio.NewConverter(nil), cornerImage(), pub)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	return out
}

func withinOne(a, b uint8) bool {
	d := int(a) - int(b)
	return d >= -1 && d <= 1
}

func TestRoundTrip(t *testing.T) {
	priv, _ := keys(t)
	got, err := Decrypt(encryptCorner(t), priv)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if got.Mode != imgio.ModeRGB {
		t.Fatalf("mode = %s, want RGB", got.Mode)
	}

	want := cornerImage()
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			g, w := got.NRGBAAt(x, y), want.NRGBAAt(x, y)
			if !withinOne(g.R, w.R) || !withinOne(g.G, w.G) || !withinOne(g.B, w.B) {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, g, w)
			}
		}
	}
}

func TestRoundTripFromTensorBatch(t *testing.T) {
	priv, pub := keys(t)
	batch := imgio.NewTensor([]int{2, 1, 1, 3}, []float32{1, 0, 0, 0, 0, 1})

	out, err := Encrypt(context.Background(), imgio.NewConverter(nil), batch, pub)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decrypt([]string{out, "ignored"}, priv)
	if err != nil {
		t.Fatal(err)
	}
	if c := got.NRGBAAt(0, 0); c != (color.NRGBA{R: 255, A: 255}) {
		t.Fatalf("first element pixel = %v, want red", c)
	}
}

func TestEnvelopeLayout(t *testing.T) {
	blob, err := base64.StdEncoding.DecodeString(encryptCorner(t))
	if err != nil {
		t.Fatal(err)
	}
	if string(blob[:7]) != Magic {
		t.Fatalf("magic = %q", blob[:7])
	}
	env, err := ParseEnvelope(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(env.WrappedKey) != 128 || len(env.Nonce) != 16 || len(env.Tag) != 16 {
		t.Fatalf("field sizes key=%d nonce=%d tag=%d", len(env.WrappedKey), len(env.Nonce), len(env.Tag))
	}
	again, err := env.MarshalBinary()
	if err != nil || string(again) != string(blob) {
		t.Fatalf("MarshalBinary() did not reproduce the envelope: %v", err)
	}
}

func TestBitFlipsFailIntegrity(t *testing.T) {
	priv, _ := keys(t)
	blob, err := base64.StdEncoding.DecodeString(encryptCorner(t))
	if err != nil {
		t.Fatal(err)
	}
	env, err := ParseEnvelope(blob)
	if err != nil {
		t.Fatal(err)
	}
	tagStart := len(blob) - len(env.Ciphertext) - len(env.Tag)
	keyStart := len(Magic) + 2

	positions := map[string]int{
		"wrapped-key":      keyStart + 5,
		"tag-first":        tagStart,
		"tag-last":         tagStart + len(env.Tag) - 1,
		"ciphertext-first": len(blob) - len(env.Ciphertext),
		"ciphertext-last":  len(blob) - 1,
	}
	for name, pos := range positions {
		for _, bit := range []byte{0x01, 0x80} {
			flipped := append([]byte(nil), blob...)
			flipped[pos] ^= bit
			img, err := Decrypt(base64.StdEncoding.EncodeToString(flipped), priv)
			if !errors.Is(err, ErrIntegrity) {
				t.Fatalf("%s bit %#x: error = %v, want ErrIntegrity", name, bit, err)
			}
			if img != nil {
				t.Fatalf("%s: image returned alongside error", name)
			}
		}
	}
}

func TestShortTagsRejected(t *testing.T) {
	priv, _ := keys(t)
	blob, err := base64.StdEncoding.DecodeString(encryptCorner(t))
	if err != nil {
		t.Fatal(err)
	}
	env, err := ParseEnvelope(blob)
	if err != nil {
		t.Fatal(err)
	}

	reseal := func(tag []byte, ciphertext []byte) string {
		t.Helper()
		short := *env
		short.Tag = tag
		short.Ciphertext = ciphertext
		data, err := short.MarshalBinary()
		if err != nil {
			t.Fatal(err)
		}
		return base64.StdEncoding.EncodeToString(data)
	}

	if _, err := Decrypt(reseal(env.Tag[:1], env.Ciphertext), priv); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("genuine tag cut to one byte: error = %v, want ErrIntegrity", err)
	}

	tampered := append([]byte(nil), env.Ciphertext...)
	tampered[len(tampered)/2] ^= 0x04
	for b := 0; b < 256; b++ {
		img, err := Decrypt(reseal([]byte{byte(b)}, tampered), priv)
		if !errors.Is(err, ErrIntegrity) || img != nil {
			t.Fatalf("one byte tag %#x: error = %v, want ErrIntegrity", b, err)
		}
	}
}

func TestMalformedEnvelopes(t *testing.T) {
	priv, _ := keys(t)
	blob, err := base64.StdEncoding.DecodeString(encryptCorner(t))
	if err != nil {
		t.Fatal(err)
	}
	env, err := ParseEnvelope(blob)
	if err != nil {
		t.Fatal(err)
	}
	headerLen := len(blob) - len(env.Ciphertext)

	badMagic := append([]byte("XNCWEBP"), blob[7:]...)
	if _, err := Decrypt(base64.StdEncoding.EncodeToString(badMagic), priv); !errors.Is(err, ErrFormat) {
		t.Fatalf("bad magic error = %v, want ErrFormat", err)
	}

	for n := 0; n < headerLen; n++ {
		if _, err := Decrypt(base64.StdEncoding.EncodeToString(blob[:n]), priv); err == nil {
			t.Fatalf("truncated to %d bytes: no error", n)
		} else if n > 0 && !errors.Is(err, ErrFormat) {
			t.Fatalf("truncated to %d bytes: error = %v, want ErrFormat", n, err)
		}
	}

	if _, err := Decrypt(base64.StdEncoding.EncodeToString(blob[:len(blob)-3]), priv); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("short ciphertext error = %v, want ErrIntegrity", err)
	}
	if _, err := Decrypt("!!not base64!!", priv); !errors.Is(err, ErrFormat) {
		t.Fatalf("bad base64 error = %v, want ErrFormat", err)
	}
}

func TestWrongKey(t *testing.T) {
	keys(t)
	if _, err := Decrypt(encryptCorner(t), otherPriv); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("error = %v, want ErrIntegrity", err)
	}
}

func TestInputAndKeyErrors(t *testing.T) {
	priv, pub := keys(t)
	conv := imgio.NewConverter(nil)
	ctx := context.Background()

	if _, err := Encrypt(ctx, conv, cornerImage(), "not a key"); !errors.Is(err, ErrKeyFormat) {
		t.Fatalf("bad public key error = %v", err)
	}
	if _, err := Encrypt(ctx, conv, cornerImage(), priv); !errors.Is(err, ErrKeyFormat) {
		t.Fatalf("private key as public key error = %v", err)
	}
	if _, err := Encrypt(ctx, conv, nil, pub); !errors.Is(err, ErrInput) {
		t.Fatalf("nil image error = %v", err)
	}
	if _, err := Encrypt(ctx, conv, "", pub); !errors.Is(err, ErrInput) {
		t.Fatalf("empty image error = %v", err)
	}

	for _, payload := range []any{nil, "", []string{}, 42} {
		if _, err := Decrypt(payload, priv); !errors.Is(err, ErrInput) {
			t.Fatalf("Decrypt(%#v) error = %v, want ErrInput", payload, err)
		}
	}
	if _, err := Decrypt(encryptCorner(t), strings.Replace(priv, "RSA PRIVATE KEY", "EC PRIVATE KEY", 2)); !errors.Is(err, ErrKeyFormat) {
		t.Fatalf("wrong PEM type error = %v", err)
	}
}

func TestParseKeyFormats(t *testing.T) {
	priv, pub := keys(t)
	if _, err := ParsePublicKey(pub); err != nil {
		t.Fatalf("PKIX public key: %v", err)
	}
	key, err := ParsePrivateKey(priv)
	if err != nil {
		t.Fatalf("PKCS1 private key: %v", err)
	}
	if key.N.BitLen() != 1024 {
		t.Fatalf("key size = %d", key.N.BitLen())
	}
}
