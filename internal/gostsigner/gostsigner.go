// Package gostsigner adapts a GOST R 34.10-2012 private key into a concrete
// caller for the cms engine, the way cmd/gocms-sign drives it end to end.
// It supplies the certificate and signing primitive the engine itself never
// picks on its own.
package gostsigner

import (
	"bytes"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"

	"github.com/ddulesov/gogost/gost3410"
	"github.com/ddulesov/gogost/gost34112012256"
	"github.com/pkg/errors"

	"github.com/sysfce2/gocms/cms"
	"github.com/sysfce2/gocms/utils"
)

// tbsFields is the minimal shape needed out of a DER certificate to identify
// its signer: issuer name and serial number. A full crypto/x509.ParseCertificate
// is too strict for the raw GOST certificates this package receives (their
// subjectPublicKeyInfo algorithm OIDs are unknown to Go's x509 parser), so —
// like the original signer this package replaces — only the TBSCertificate
// prefix is ever decoded.
type tbsFields struct {
	Raw          asn1.RawContent
	Version      int `asn1:"optional,explicit,tag:0,default:0"`
	SerialNumber *big.Int
	Signature    pkix.AlgorithmIdentifier
	Issuer       asn1.RawValue
}

type minimalCertificate struct {
	TBSCertificate tbsFields
}

// GOST algorithm OIDs, matching the GOST digest and signature OIDs in
// cms/wire.go (unexported there, so the signer carries its own copy).
var (
	OIDDigestGOST341112 = asn1.ObjectIdentifier{1, 2, 643, 7, 1, 1, 2, 2}
	OIDSigGOST341012     = asn1.ObjectIdentifier{1, 2, 643, 7, 1, 1, 1, 1}
)

var (
	// ErrInvalidCertificate is returned when the supplied certificate bytes
	// don't parse as an X.509 certificate.
	ErrInvalidCertificate = errors.New("gostsigner: invalid certificate")
)

// Signer binds a GOST private key to the certificate identifying it for
// SignerIdentifier purposes.
type Signer struct {
	priv *gost3410.PrivateKey
	cert *x509.Certificate
}

// NewSigner extracts the issuer and serial number out of certDER and pairs
// them with priv. Only a minimalCertificate's worth of the certificate is
// ever decoded — see its doc comment for why.
func NewSigner(priv *gost3410.PrivateKey, certDER []byte) (*Signer, error) {
	if priv == nil {
		return nil, errors.New("gostsigner: nil private key")
	}
	if len(certDER) == 0 {
		return nil, errors.Wrap(ErrInvalidCertificate, "empty certificate")
	}
	var parsed minimalCertificate
	if _, err := asn1.Unmarshal(certDER, &parsed); err != nil {
		return nil, errors.Wrap(ErrInvalidCertificate, err.Error())
	}
	cert := &x509.Certificate{
		RawIssuer:    parsed.TBSCertificate.Issuer.FullBytes,
		SerialNumber: parsed.TBSCertificate.SerialNumber,
	}
	return &Signer{priv: priv, cert: cert}, nil
}

// Sign drives the cms engine through a full signed-data build using
// Streebog-256 (GOST R 34.11-2012) as the digest and GOST R 34.10-2012 as
// the signature algorithm. When detached is true, eContent is omitted and
// the caller is expected to have the original content available separately
// for verification.
//
// gogost's GOST engine expects the digest in the reverse byte order crypto
// libraries elsewhere use (CryptoPro's historical little-endian
// convention); the signed-attributes digest is reversed before it reaches
// SignDigest, exactly as the original signer did. The content digest is
// stored in the messageDigest attribute in its natural byte order.
func (s *Signer) Sign(content []byte, detached bool) ([]byte, error) {
	const op = "Sign"

	contentDigest := streebog(content)

	var out bytes.Buffer
	c := cms.New()
	if err := c.SetReaderWriter(nil, &out); err != nil {
		return nil, errors.Wrap(err, op)
	}
	if err := c.SetContentType(cms.CTSignedData); err != nil {
		return nil, errors.Wrap(err, op)
	}
	if err := c.AddDigestAlgo(OIDDigestGOST341112); err != nil {
		return nil, errors.Wrap(err, op)
	}
	if err := c.AddSigner(s.cert); err != nil {
		return nil, errors.Wrap(err, op)
	}
	c.SetDetached(detached)
	if err := c.SetHashFunction(func([]byte) {}); err != nil {
		return nil, errors.Wrap(err, op)
	}

	if err := c.Build(); err != nil {
		return nil, errors.Wrap(err, op)
	}
	if !detached {
		if err := c.WriteContent(content); err != nil {
			return nil, errors.Wrap(err, op)
		}
	}
	if err := c.EndContent(); err != nil {
		return nil, errors.Wrap(err, op)
	}
	if err := c.SetMessageDigest(0, contentDigest); err != nil {
		return nil, errors.Wrap(err, op)
	}
	if err := c.Build(); err != nil {
		return nil, errors.Wrap(err, op)
	}

	attrImage, err := c.GetSignedAttrImage(0)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	attrDigest := streebog(attrImage)
	sig, err := s.priv.SignDigest(utils.ReverseBytes(attrDigest), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "sign attribute digest")
	}
	if err := c.SetSignature(0, sig); err != nil {
		return nil, errors.Wrap(err, op)
	}
	if err := c.Build(); err != nil {
		return nil, errors.Wrap(err, op)
	}
	if c.GetStopReason() != cms.SRReady {
		return nil, errors.Errorf("%s: unexpected stop reason %s", op, c.GetStopReason())
	}
	return out.Bytes(), nil
}

func streebog(data []byte) []byte {
	h := gost34112012256.New()
	h.Write(data)
	return h.Sum(nil)
}
