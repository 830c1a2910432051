package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ddulesov/gogost/gost3410"

	"github.com/sysfce2/gocms/internal/gostsigner"
)

func main() {
	var keyHex string
	var certPath string
	var message string
	var output string
	var detached bool

	flag.StringVar(&keyHex, "key", "", "GOST private key, hex-encoded (see gocms-extract)")
	flag.StringVar(&certPath, "cert", "", "DER-encoded certificate file")
	flag.StringVar(&message, "message", "", "Message to sign")
	flag.StringVar(&output, "output", "", "Output file for the CMS DER (default: stdout)")
	flag.BoolVar(&detached, "detached", false, "Omit the message from the CMS container")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if keyHex == "" || certPath == "" || message == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -key <hex> -cert <path> -message <text> [-detached] [-output <path>]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		slog.Error("invalid key hex", "error", err)
		os.Exit(1)
	}

	certDER, err := os.ReadFile(certPath)
	if err != nil {
		slog.Error("failed to read certificate", "error", err)
		os.Exit(1)
	}

	curve := gost3410.CurveIdGostR34102001CryptoProAParamSet()
	prv, err := gost3410.NewPrivateKey(curve, gost3410.Mode2001, keyBytes)
	if err != nil {
		slog.Error("failed to create private key", "error", err)
		os.Exit(1)
	}

	signer, err := gostsigner.NewSigner(prv, certDER)
	if err != nil {
		slog.Error("failed to create signer", "error", err)
		os.Exit(1)
	}

	cmsDER, err := signer.Sign([]byte(message), detached)
	if err != nil {
		slog.Error("failed to sign", "error", err)
		os.Exit(1)
	}

	if output == "" {
		if _, err := os.Stdout.Write(cmsDER); err != nil {
			slog.Error("failed to write output", "error", err)
			os.Exit(1)
		}
		return
	}
	if err := os.WriteFile(output, cmsDER, 0600); err != nil {
		slog.Error("failed to write output file", "error", err)
		os.Exit(1)
	}
	slog.Info("signed", "bytes", len(cmsDER), "output", output, "detached", detached)
}
