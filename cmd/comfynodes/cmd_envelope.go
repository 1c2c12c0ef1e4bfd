package main

import (
	"fmt"
	"os"
	"strings"

	"comfynodes/envelope"
	"comfynodes/fileio"
	"comfynodes/imgio"
	"comfynodes/logger"

	"github.com/spf13/cobra"
)

func (a *app) runKeygen(cmd *cobra.Command, args []string) error {
	name := "key"
	if len(args) == 1 {
		name = args[0]
	}
	bits, _ := cmd.Flags().GetInt("bits")

	privatePEM, publicPEM, err := envelope.GenerateKeyPair(bits)
	if err != nil {
		return err
	}
	if err := os.WriteFile(name+".pem", []byte(privatePEM), 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(name+".pub.pem", []byte(publicPEM), 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	logger.Info("Generated key pair", "bits", bits, "private", name+".pem", "public", name+".pub.pem")
	return nil
}

func (a *app) runEncrypt(cmd *cobra.Command, args []string) error {
	keyPath, _ := cmd.Flags().GetString("key")
	outPath, _ := cmd.Flags().GetString("out")

	publicPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}
	sealed, err := envelope.Encrypt(cmd.Context(), a.converter, args[0], string(publicPEM))
	if err != nil {
		return err
	}

	if outPath == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), sealed)
		return err
	}
	return fileio.WriteFileLocked(outPath, []byte(sealed))
}

func (a *app) runDecrypt(cmd *cobra.Command, args []string) error {
	keyPath, _ := cmd.Flags().GetString("key")
	outPath, _ := cmd.Flags().GetString("out")

	privatePEM, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to read private key: %w", err)
	}
	payload, err := fileio.ReadFileLocked(args[0])
	if err != nil {
		return fmt.Errorf("failed to read envelope: %w", err)
	}

	img, err := envelope.Decrypt(strings.TrimSpace(string(payload)), string(privatePEM))
	if err != nil {
		return err
	}
	if err := a.converter.ToFile(cmd.Context(), img, outPath, imgio.EncodeOptions{Quality: imgio.DefaultQuality}); err != nil {
		return err
	}
	logger.Info("Decrypted image", "path", outPath, "width", img.Width(), "height", img.Height())
	return nil
}
