package main

import (
	"os"

	"comfynodes/http/request"
	"comfynodes/imgio"
	"comfynodes/logger"
	"comfynodes/settings"

	"github.com/spf13/cobra"
)

// app is the state shared by every sub command once the configuration has
// been loaded.
type app struct {
	configPath string
	config     *settings.Config
	converter  *imgio.Converter
}

// loadConfig reads path, or config.toml when it exists, and falls back to
// the built in defaults otherwise.
func loadConfig(path string) (*settings.Config, error) {
	if path == "" {
		if _, err := os.Stat(settings.DefaultConfigPath); err != nil {
			return settings.Default(), nil
		}
	}
	return settings.LoadConfig(path)
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "comfynodes",
		Short:         "Image conversion, encryption and node tooling for the comfynodes pack",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(a.configPath)
			if err != nil {
				return err
			}
			logger.Init(config.Logging)
			a.config = config
			a.converter = imgio.NewConverter(request.NewFetcher(config.Fetch))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config.toml")

	keygenCmd := &cobra.Command{
		Use:   "keygen [name]",
		Short: "Generate an RSA key pair as <name>.pem and <name>.pub.pem",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runKeygen, // Defined in cmd_envelope.go
	}
	keygenCmd.Flags().Int("bits", 2048, "RSA modulus size")

	encryptCmd := &cobra.Command{
		Use:   "encrypt [image]",
		Short: "Seal an image for the holder of a private key",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runEncrypt, // Defined in cmd_envelope.go
	}
	encryptCmd.Flags().StringP("key", "k", "", "public key PEM file")
	encryptCmd.Flags().StringP("out", "o", "", "write the envelope here instead of stdout")
	_ = encryptCmd.MarkFlagRequired("key")

	decryptCmd := &cobra.Command{
		Use:   "decrypt [envelope file]",
		Short: "Open a sealed image and write it out",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runDecrypt, // Defined in cmd_envelope.go
	}
	decryptCmd.Flags().StringP("key", "k", "", "private key PEM file")
	decryptCmd.Flags().StringP("out", "o", "decrypted.png", "output image, format taken from the extension")
	_ = decryptCmd.MarkFlagRequired("key")

	classifyCmd := &cobra.Command{
		Use:   "classify [input...]",
		Short: "Report how each input would be interpreted as an image",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runClassify, // Defined in cmd_image.go
	}

	convertCmd := &cobra.Command{
		Use:   "convert [input...]",
		Short: "Convert images, base64 payloads or URLs into image files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runConvert, // Defined in cmd_image.go
	}
	convertCmd.Flags().StringP("format", "f", "png", "output format")
	convertCmd.Flags().StringP("out-dir", "o", ".", "output directory")
	convertCmd.Flags().IntP("quality", "q", imgio.DefaultQuality, "JPEG quality")
	convertCmd.Flags().Bool("alpha", false, "keep the alpha channel")

	nodesCmd := &cobra.Command{
		Use:   "nodes",
		Short: "List the registered nodes",
		Args:  cobra.NoArgs,
		RunE:  a.runNodesList, // Defined in cmd_nodes.go
	}
	nodesCmd.Flags().Bool("json", false, "print the full input schema as JSON")

	nodesRunCmd := &cobra.Command{
		Use:   "run [node]",
		Short: "Invoke a single node with JSON arguments",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runNodesRun, // Defined in cmd_nodes.go
	}
	nodesRunCmd.Flags().String("args", "{}", "node arguments as a JSON object")
	nodesRunCmd.Flags().Bool("archive", false, "open the configured archive for Persist and Restore")

	nodesBatchCmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "Run a JSON list of node invocations in order through the job queue",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runNodesBatch, // Defined in cmd_nodes.go
	}
	nodesBatchCmd.Flags().Bool("archive", false, "open the configured archive for Persist and Restore")
	nodesCmd.AddCommand(nodesRunCmd, nodesBatchCmd)

	rootCmd.AddCommand(keygenCmd, encryptCmd, decryptCmd, classifyCmd, convertCmd, nodesCmd)
	return rootCmd
}
