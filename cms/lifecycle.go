package cms

import (
	"crypto/x509"
	"encoding/asn1"
	"io"
)

// SetReaderWriter attaches the stream(s) Parse or Build will use. Either may
// be nil if the corresponding operation won't be driven (a pure builder
// needs no reader; a pure parser needs no writer). Calling it twice without
// an intervening Release is a conflict.
func (c *CMS) SetReaderWriter(r io.Reader, w io.Writer) error {
	const op = "SetReaderWriter"
	if c.reader != nil || c.writer != nil {
		return wrapErr(KindArgument, op, ErrConflict)
	}
	c.reader = r
	c.writer = w
	return nil
}

// SetContentType declares the outer content type a Build operation will
// produce. Parse determines its own content type from the wire and ignores
// any value set here.
func (c *CMS) SetContentType(ct ContentType) error {
	const op = "SetContentType"
	h := findHandlerByType(ct)
	if h == nil {
		return wrapErr(KindArgument, op, ErrInvalidValue)
	}
	c.content.oid = h.oid
	c.content.ct = h.ct
	c.content.parseHandler = h.parseHandler
	c.content.buildHandler = h.buildHandler
	c.stopReason = SRGotContent
	return nil
}

// GetContentType returns the content type determined so far: set explicitly
// via SetContentType (Build) or discovered on the wire (Parse). CTNone means
// neither has happened yet.
func (c *CMS) GetContentType() ContentType {
	return c.content.ct
}

// GetContentOID returns the raw OID behind GetContentType, including for
// recognized-but-unimplemented content types.
func (c *CMS) GetContentOID() asn1.ObjectIdentifier {
	return c.content.oid
}

// GetStopReason returns the suspension state left by the most recent Parse
// or Build call.
func (c *CMS) GetStopReason() StopReason {
	return c.stopReason
}

// SetHashFunction registers the callback Parse/Build invoke with each chunk
// of encapsulated content while the container is in the BEGIN_DATA/END_DATA
// window. It must be set before driving either state through that window.
func (c *CMS) SetHashFunction(fn func([]byte)) error {
	const op = "SetHashFunction"
	if fn == nil {
		return wrapErr(KindArgument, op, ErrInvalidValue)
	}
	c.hashFunc = fn
	return nil
}

// SetDetached marks the encapsulated content as detached: WriteContent does
// not buffer the content and the final Build omits eContent from the wire;
// the caller is expected to hash the external content itself. Parse
// overwrites the flag with what it finds on the wire.
func (c *CMS) SetDetached(detached bool) {
	c.detachedSignature = detached
}

// AddDigestAlgo registers one more DigestAlgorithmIdentifier OID a Build
// operation should advertise in SignedData.digestAlgorithms. Order is
// preserved; duplicates are allowed (spec doesn't forbid them — a caller
// may legitimately want the same OID hashed for two different signers that
// happen to share a digest algorithm but are otherwise independent).
func (c *CMS) AddDigestAlgo(oid asn1.ObjectIdentifier) error {
	const op = "AddDigestAlgo"
	if len(oid) == 0 {
		return wrapErr(KindArgument, op, ErrInvalidValue)
	}
	c.digestAlgos = append(c.digestAlgos, digestAlgoEntry{oid: oid})
	return nil
}

// GetDigestAlgoList returns the OIDs registered via AddDigestAlgo (Build) or
// discovered in SignedData.digestAlgorithms (after a successful Parse).
func (c *CMS) GetDigestAlgoList() []asn1.ObjectIdentifier {
	out := make([]asn1.ObjectIdentifier, len(c.digestAlgos))
	for i, d := range c.digestAlgos {
		out[i] = d.oid
	}
	return out
}

// AddSigner registers one signer participating in a Build. cert must not be
// nil; it is consulted for issuer/serial (SignerIdentifier) and public-key
// kind (signatureAlgorithm resolution) when buildSignedDataRest runs.
func (c *CMS) AddSigner(cert *x509.Certificate) error {
	const op = "AddSigner"
	if cert == nil {
		return wrapErr(KindArgument, op, ErrInvalidValue)
	}
	c.signers = append(c.signers, &signerEntry{cert: cert})
	return nil
}

// CountSigners returns the number of signers registered (Build) or parsed
// (after a successful Parse).
func (c *CMS) CountSigners() int {
	return len(c.signers)
}

// SetMessageDigest supplies the content digest for signer idx, computed by
// the caller from whatever it fed SetHashFunction during BEGIN_DATA/END_DATA.
// It must be called once the content is finished (END_DATA), before the
// Build call that builds the signed attributes and moves to NEED_SIG.
func (c *CMS) SetMessageDigest(idx int, digest []byte) error {
	const op = "SetMessageDigest"
	if idx < 0 || idx >= len(c.signers) {
		return wrapErr(KindArgument, op, ErrInvalidIndex)
	}
	if len(digest) == 0 {
		return wrapErr(KindArgument, op, ErrInvalidValue)
	}
	c.signers[idx].msgDigest = digest
	return nil
}

// SetSignature supplies the raw signature bytes for signer idx, computed by
// the caller over the signed-attributes image produced at NEED_SIG (see
// hashSignedAttrs). It must be called after NEED_SIG, before the next Build
// call.
func (c *CMS) SetSignature(idx int, signature []byte) error {
	const op = "SetSignature"
	if idx < 0 || idx >= len(c.signers) {
		return wrapErr(KindArgument, op, ErrInvalidIndex)
	}
	if len(signature) == 0 {
		return wrapErr(KindArgument, op, ErrInvalidValue)
	}
	c.signers[idx].signature = signature
	return nil
}
