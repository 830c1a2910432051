// Package cms implements the CMS (RFC 2630) signed-data engine: an
// incremental, caller-pumped state machine that parses a signed-data
// container while cooperating with an external hash function, and builds one
// while cooperating with an external signer.
//
// Hashing and signing are always delegated to the caller — see StopReason.
// Enveloped-, digested- and encrypted-data are recognized by OID but not
// implemented; calling Parse or Build against them returns
// ErrUnsupportedCMSObject.
package cms

import (
	"crypto/x509"
	"encoding/asn1"
	"io"
)

// StopReason is the suspension state returned by every Parse/Build step. The
// caller inspects it to decide what to do before calling again.
type StopReason int

const (
	// SRRunning is the zero value, reported until a content type has been
	// set or parsed; Parse and Build never store it.
	SRRunning StopReason = iota
	// SRGotContent is the initial state after the content type is known
	// (Parse: identified from the wire; Build: set by SetContentType).
	SRGotContent
	// SRNeedHash means the parser detected a detached signature; the caller
	// may hash the content externally before the next Parse call.
	SRNeedHash
	// SRBeginData means the encapsulated content starts: the next Parse call
	// streams attached content through the registered hash function (Parse),
	// or the caller is free to write the plaintext and hash it (Build).
	SRBeginData
	// SREndData means the encapsulated content ended (Parse), or the caller
	// has finished writing and hashing it (Build).
	SREndData
	// SRNeedSig means the builder built the signed attributes from the
	// digests passed to SetMessageDigest; the caller must supply a signature
	// via SetSignature before the next Build call.
	SRNeedSig
	// SRReady means the operation is complete.
	SRReady
)

func (r StopReason) String() string {
	switch r {
	case SRRunning:
		return "RUNNING"
	case SRGotContent:
		return "GOT_CONTENT"
	case SRNeedHash:
		return "NEED_HASH"
	case SRBeginData:
		return "BEGIN_DATA"
	case SREndData:
		return "END_DATA"
	case SRNeedSig:
		return "NEED_SIG"
	case SRReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// ContentType is the enum tag a recognized OID resolves to, via the
// dispatcher table in dispatch.go.
type ContentType int

const (
	// CTNone is the zero value: no content type has been determined yet.
	CTNone ContentType = iota
	CTData
	CTSignedData
	CTEnvelopedData
	CTDigestedData
	CTEncryptedData
	CTAuthData
)

func (t ContentType) String() string {
	switch t {
	case CTData:
		return "DATA"
	case CTSignedData:
		return "SIGNED_DATA"
	case CTEnvelopedData:
		return "ENVELOPED_DATA"
	case CTDigestedData:
		return "DIGESTED_DATA"
	case CTEncryptedData:
		return "ENCRYPTED_DATA"
	case CTAuthData:
		return "AUTH_DATA"
	default:
		return "NONE"
	}
}

// digestAlgoEntry is one registered DigestAlgorithmIdentifier OID.
type digestAlgoEntry struct {
	oid asn1.ObjectIdentifier
}

// signerEntry is one signer participating in a build, or one signer
// recovered from a parse. It owns the certificate (AddSigner transfers
// ownership in; GetCert transfers it back out, once — see accessors.go) and,
// during a build, caches the signedAttrs tree/image pair from
// buildSignedDataAttributes so hashSignedAttrs and buildSignedDataRest see
// byte-identical bytes.
type signerEntry struct {
	cert *x509.Certificate

	msgDigest []byte // preset via SetMessageDigest
	signature []byte // preset via SetSignature, consumed by buildSignedDataRest

	// attrImage is the DER encoding (SET OF form, per MarshaledForSigning)
	// of this signer's signedAttrs, cached between buildSignedDataAttributes
	// (DATAREADY) and buildSignedDataRest (GOTSIG) as the exact bytes the
	// caller must hash and sign.
	attrImage []byte

	// pendingAttrs is the same attribute set attrImage was derived from,
	// embedded verbatim (content-for-content identical, differing only in
	// outer tag) by buildSignedDataRest under the [0] IMPLICIT tag.
	pendingAttrs Attributes
	// pendingDigestAlgo is the digest algorithm OID chosen for this signer
	// by buildSignedDataAttributes, reused by buildSignedDataRest for both
	// SignerInfo.DigestAlgorithm and signatureAlgoFor's GOST special-case.
	pendingDigestAlgo asn1.ObjectIdentifier

	certTaken bool // true once GetCert has returned this signer's cert
}

// CMS is the signed-data container. It owns every string, list node and
// ASN.1 structure it holds; the reader and writer are borrowed for the
// lifetime of the Parse/Build call. A CMS is not safe for concurrent use.
type CMS struct {
	reader io.Reader
	writer io.Writer

	stopReason StopReason

	content struct {
		oid          asn1.ObjectIdentifier
		ct           ContentType
		parseHandler func(*CMS) error
		buildHandler func(*CMS) error
	}

	encapContType asn1.ObjectIdentifier // inner (encapsulated) content OID

	digestAlgos []digestAlgoEntry

	signers []*signerEntry

	signerInfo struct {
		// parsed (Parse) or freshly built (Build) SignerInfos, which
		// GetMessageDigest/GetIssuerSerial/GetSigVal/GetDigestAlgo read.
		// image is not filled in by Parse or Build.
		list  []SignerInfo
		image []byte

		cacheDigestAlgo string
	}

	dataDigest []byte // optional preloaded digest, parse side

	detachedSignature bool

	buildPhase sdBuildPhase // ctBuildSignedData's internal progress
	parsePhase sdParsePhase // ctParseSignedData's internal progress

	hashFunc func([]byte)

	// parse-side scratch: the whole decoded SignedData, kept across state
	// transitions within ctParseSignedData.
	parsedOuter      ContentInfo
	parsedSignedData *SignedData
	eContent         []byte // nil if detached
}

// New creates an empty CMS container, ready for SetReaderWriter.
func New() *CMS {
	return &CMS{}
}

// Release drops the container's references to its reader, writer and parsed
// state. Go's garbage collector reclaims everything else; Release exists for
// parity with the lifecycle spec.c callers expect (ksba_cms_release) and as
// an explicit point to stop holding onto a caller's io.Reader/io.Writer.
func (c *CMS) Release() {
	c.reader = nil
	c.writer = nil
	c.parsedOuter = ContentInfo{}
	c.parsedSignedData = nil
	c.eContent = nil
}
