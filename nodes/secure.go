package nodes

import (
	"context"

	"comfynodes/envelope"
	"comfynodes/imgio"
)

func SecureNodes() []Definition {
	return []Definition{
		{
			Name:        "SecureBase64Encrypt",
			DisplayName: "Secure Base64 Encrypt",
			Function:    "encrypted_base64",
			Category:    categoryImage,
			Description: "Encrypts the first image for the holder of the RSA private key matching public_key_pem.",
			Inputs: Inputs{Required: []InputSpec{
				{Name: "images", Type: TypeImage},
				{Name: "public_key_pem", Type: TypeString, Default: "", Multiline: true},
			}},
			ReturnTypes: []string{TypeString},
			ReturnNames: []string{"encrypted_base64"},
			OutputNode:  true,
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				encrypted, err := envelope.Encrypt(ctx, env.Converter, args.Any("images"), args.String("public_key_pem"))
				if err != nil {
					return Output{}, err
				}
				return out(encrypted), nil
			},
		},
		{
			Name:        "SecureWebPDecrypt",
			DisplayName: "Secure WebP Decrypt",
			Function:    "decrypt_image",
			Category:    categoryImage,
			Inputs: Inputs{Required: []InputSpec{
				{Name: "encrypted_base64", Type: TypeAny, Default: "", Multiline: true},
				{Name: "private_key_pem", Type: TypeString, Default: "", Multiline: true},
			}},
			ReturnTypes: []string{TypeImage},
			ReturnNames: []string{"Decrypted_Image"},
			Run: func(ctx context.Context, env *Env, args Args) (Output, error) {
				img, err := envelope.Decrypt(args.Any("encrypted_base64"), args.String("private_key_pem"))
				if err != nil {
					return Output{}, err
				}
				return out(imgio.ImageToTensor(img)), nil
			},
		},
	}
}
