// Command gocms-verify inspects a CMS/PKCS#7 SignedData container: it
// recomputes the content digest, prints the signer's issuer/serial and
// signature value as a canonical S-expression, and reports whether the
// recomputed digest matches the signed messageDigest attribute.
//
// It does not check the cryptographic signature itself — per the engine's
// design, that step is left to an external verifier fed GetSigVal's
// S-expression (gocms only manages the CMS structure, never a crypto
// library's verify routine).
package main

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/asn1"
	"flag"
	"fmt"
	"hash"
	"log/slog"
	"os"

	"github.com/ddulesov/gogost/gost34112012256"

	"github.com/sysfce2/gocms/cms"
)

func hashFor(oid asn1.ObjectIdentifier) (hash.Hash, error) {
	switch oid.String() {
	case "1.3.14.3.2.26":
		return sha1.New(), nil
	case "2.16.840.1.101.3.4.2.1":
		return sha256.New(), nil
	case "2.16.840.1.101.3.4.2.2":
		return sha512.New384(), nil
	case "2.16.840.1.101.3.4.2.3":
		return sha512.New(), nil
	case "1.2.643.7.1.1.2.2":
		return gost34112012256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported digest algorithm %s", oid)
	}
}

func main() {
	var inPath string
	var contentPath string

	flag.StringVar(&inPath, "in", "", "CMS DER file to inspect")
	flag.StringVar(&contentPath, "content", "", "External content file (required for detached signatures)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if inPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -in <cms.der> [-content <file>]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	der, err := os.ReadFile(inPath)
	if err != nil {
		slog.Error("failed to read CMS file", "error", err)
		os.Exit(1)
	}

	c := cms.New()
	if err := c.SetReaderWriter(bytes.NewReader(der), nil); err != nil {
		slog.Error("SetReaderWriter failed", "error", err)
		os.Exit(1)
	}

	if err := c.Parse(); err != nil {
		slog.Error("parse failed", "error", err)
		os.Exit(1)
	}

	if c.GetContentType() != cms.CTSignedData {
		slog.Error("not a signed-data container", "content_type", c.GetContentType().String())
		os.Exit(1)
	}

	signerDigestAlgo, err := c.GetDigestAlgo(0)
	if err != nil {
		slog.Error("GetDigestAlgo failed", "error", err)
		os.Exit(1)
	}
	h, err := hashFor(signerDigestAlgo)
	if err != nil {
		slog.Error("unusable digest algorithm", "error", err)
		os.Exit(1)
	}

	var recomputed []byte
	switch c.GetStopReason() {
	case cms.SRNeedHash:
		content, err := os.ReadFile(contentPath)
		if err != nil {
			slog.Error("detached signature requires -content", "error", err)
			os.Exit(1)
		}
		h.Write(content)
		recomputed = h.Sum(nil)
		if err := c.Parse(); err != nil {
			slog.Error("parse (begin-data) failed", "error", err)
			os.Exit(1)
		}
		fallthrough
	case cms.SRBeginData:
		if c.GetStopReason() == cms.SRBeginData && recomputed == nil {
			if err := c.SetHashFunction(func(p []byte) { h.Write(p) }); err != nil {
				slog.Error("SetHashFunction failed", "error", err)
				os.Exit(1)
			}
		}
		if err := c.Parse(); err != nil {
			slog.Error("parse (end-data) failed", "error", err)
			os.Exit(1)
		}
		if recomputed == nil {
			recomputed = h.Sum(nil)
		}
	}

	if err := c.Finish(); err != nil {
		slog.Error("finish failed", "error", err)
		os.Exit(1)
	}

	issuer, serial, err := c.GetIssuerSerial(0)
	if err != nil {
		slog.Error("GetIssuerSerial failed", "error", err)
		os.Exit(1)
	}
	digest, err := c.GetMessageDigest(0)
	if err != nil {
		slog.Error("GetMessageDigest failed", "error", err)
		os.Exit(1)
	}
	sexpr, err := c.GetSigVal(0)
	if err != nil {
		slog.Error("GetSigVal failed", "error", err)
		os.Exit(1)
	}

	match := bytes.Equal(recomputed, digest)
	fmt.Printf("issuer:            %s\n", issuer)
	fmt.Printf("serial:            %x\n", serial)
	fmt.Printf("digest algorithm:  %s\n", signerDigestAlgo)
	fmt.Printf("signature value:   %s\n", sexpr)
	fmt.Printf("content digest ok: %t\n", match)

	if !match {
		os.Exit(1)
	}
}
