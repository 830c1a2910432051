package cms

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/binary"
)

// signerSource returns the i'th signer's decoded SignerInfo, whichever side
// (parse or build-after-buildSignedDataRest) populated c.signerInfo.list, or
// an error if the index is out of range or nothing has been parsed/built
// yet.
func (c *CMS) signerSource(idx int, op string) (SignerInfo, error) {
	if idx > 0 {
		// Every accessor below only ever addresses the first signer; idx > 0
		// is a real, named limitation, not a bug.
		return SignerInfo{}, wrapErr(KindInternal, op, ErrNotImplemented)
	}
	if idx < 0 || idx >= len(c.signerInfo.list) {
		return SignerInfo{}, wrapErr(KindArgument, op, ErrNoData)
	}
	return c.signerInfo.list[idx], nil
}

// GetIssuerSerial returns signer idx's issuer distinguished name (as its
// RFC 2253 string form) and certificate serial number, the latter as the raw
// serial-number DER content octets prefixed with a 4-byte big-endian length.
// Both are computed into locals first; only once both succeed are they
// returned, so a serial-number failure can never leave issuer populated
// without its serial.
func (c *CMS) GetIssuerSerial(idx int) (string, []byte, error) {
	const op = "GetIssuerSerial"
	si, err := c.signerSource(idx, op)
	if err != nil {
		return "", nil, err
	}
	isn, err := si.IssuerAndSerial()
	if err != nil {
		return "", nil, wrapErr(KindContent, op, err)
	}

	var rdn pkix.RDNSequence
	if _, err := asn1.Unmarshal(isn.Issuer.FullBytes, &rdn); err != nil {
		return "", nil, wrapErr(KindContent, op, err)
	}
	var name pkix.Name
	name.FillFromRDNSequence(&rdn)
	issuer := name.String()

	serialContent, err := si.serialNumberContent()
	if err != nil {
		return "", nil, wrapErr(KindContent, op, err)
	}
	serial := make([]byte, 4+len(serialContent))
	binary.BigEndian.PutUint32(serial[:4], uint32(len(serialContent)))
	copy(serial[4:], serialContent)

	return issuer, serial, nil
}

// GetDigestAlgo returns the digest algorithm OID signer idx used.
func (c *CMS) GetDigestAlgo(idx int) (asn1.ObjectIdentifier, error) {
	const op = "GetDigestAlgo"
	si, err := c.signerSource(idx, op)
	if err != nil {
		return nil, err
	}
	return si.DigestAlgorithm.Algorithm, nil
}

// GetMessageDigest returns the raw bytes of signer idx's messageDigest
// signed attribute, validating its shape: a SET OF exactly one OCTET
// STRING, per RFC 2630 — the usual source of malformed-CMS rejection.
func (c *CMS) GetMessageDigest(idx int) ([]byte, error) {
	const op = "GetMessageDigest"
	si, err := c.signerSource(idx, op)
	if err != nil {
		return nil, err
	}
	rv, err := si.messageDigestRawValue()
	if err != nil {
		return nil, wrapErr(KindContent, op, err)
	}
	if rv.Class != asn1.ClassUniversal || rv.Tag != asn1.TagOctetString {
		return nil, wrapErr(KindContent, op, ErrInvalidCMSObject)
	}
	return rv.Bytes, nil
}

// GetCert returns signer idx's certificate and transfers ownership of it to
// the caller: a second call for the same index returns ErrValueNotFound.
// On the build side the certificate is the one passed to AddSigner; on the
// parse side it is resolved from SignedData.certificates by matching
// issuer+serial against SID, and is absent (ErrNoData) if the message
// didn't embed one — embedding certificates is optional in CMS and gocms's
// own Build never emits the certificates field: the engine doesn't generate
// certificate chains.
func (c *CMS) GetCert(idx int) (*x509.Certificate, error) {
	const op = "GetCert"
	if idx < 0 || idx >= len(c.signers) {
		return nil, wrapErr(KindArgument, op, ErrInvalidIndex)
	}
	s := c.signers[idx]
	if s.certTaken {
		return nil, wrapErr(KindState, op, ErrValueNotFound)
	}
	if s.cert == nil {
		return nil, wrapErr(KindState, op, ErrNoData)
	}
	s.certTaken = true
	return s.cert, nil
}

// resolveParsedCerts attempts to match each parsed SignerInfo's SID against
// SignedData.certificates, populating signerEntry.cert where a match is
// found. Certificates that fail to parse are skipped rather than failing
// the whole operation — an unrelated or malformed certificate in the set
// shouldn't block access to signers that don't need it.
func resolveParsedCerts(c *CMS, sd *SignedData) {
	if len(sd.Certificates) == 0 {
		return
	}
	certs := make([]*x509.Certificate, 0, len(sd.Certificates))
	for _, raw := range sd.Certificates {
		cert, err := x509.ParseCertificate(raw.FullBytes)
		if err != nil {
			continue
		}
		certs = append(certs, cert)
	}
	for i, si := range c.signerInfo.list {
		if i >= len(c.signers) {
			break
		}
		isn, err := si.IssuerAndSerial()
		if err != nil {
			continue
		}
		for _, cert := range certs {
			if cert.SerialNumber != nil && isn.SerialNumber != nil &&
				cert.SerialNumber.Cmp(isn.SerialNumber) == 0 &&
				string(cert.RawIssuer) == string(isn.Issuer.FullBytes) {
				c.signers[i].cert = cert
				break
			}
		}
	}
}

// GetSigVal returns signer idx's signature as a canonical S-expression
// (rsa/ecdsa/gost), for handing to an external verifier — see sigval.go.
func (c *CMS) GetSigVal(idx int) (string, error) {
	const op = "GetSigVal"
	si, err := c.signerSource(idx, op)
	if err != nil {
		return "", err
	}
	sexpr, err := signatureValueSExpr(si.SignatureAlgorithm.Algorithm, si.Signature)
	if err != nil {
		return "", wrapErr(KindContent, op, err)
	}
	return sexpr, nil
}

// GetSignedAttrImage returns the exact bytes signer idx's messageDigest
// attribute set was (or will be) hashed and signed over — the SET OF form
// hashSignedAttrs produces. Only meaningful mid-build, between NEED_SIG and
// the following Build call.
func (c *CMS) GetSignedAttrImage(idx int) ([]byte, error) {
	const op = "GetSignedAttrImage"
	if idx < 0 || idx >= len(c.signers) {
		return nil, wrapErr(KindArgument, op, ErrInvalidIndex)
	}
	s := c.signers[idx]
	if len(s.attrImage) == 0 {
		return nil, wrapErr(KindState, op, ErrNoData)
	}
	return s.attrImage, nil
}

// HashSignedAttrs feeds signer idx's signed-attributes image through
// hashFunc in one call, for callers that would otherwise just fetch
// GetSignedAttrImage and hash it themselves.
func (c *CMS) HashSignedAttrs(idx int, hashFunc func([]byte)) error {
	const op = "HashSignedAttrs"
	if hashFunc == nil {
		return wrapErr(KindArgument, op, ErrInvalidValue)
	}
	image, err := c.GetSignedAttrImage(idx)
	if err != nil {
		return err
	}
	hashFunc(image)
	return nil
}
