package cms

import (
	"encoding/asn1"

	"crypto/x509/pkix"
)

// sdBuildPhase is the internal state of ctBuildSignedData, mirroring
// libksba's sSTART/sDATAREADY/sGOTSIG progression (cms.c, ct_build_signed_data)
// with an extra sdAwaitingData slot so WriteContent/EndContent have somewhere
// to hang between Build calls.
type sdBuildPhase int

const (
	sdStart sdBuildPhase = iota
	sdAwaitingData
	sdAwaitingSig
	sdDone
)

// Build drives one step of the registered content type's build handler. Call
// it repeatedly, inspecting GetStopReason after each call, until it reports
// SRReady or returns an error.
func (c *CMS) Build() error {
	const op = "Build"
	if c.writer == nil {
		return wrapErr(KindState, op, ErrMissingAction)
	}
	if c.content.ct == CTNone {
		return wrapErr(KindState, op, ErrMissingAction)
	}
	if c.content.buildHandler == nil {
		return wrapErr(KindContent, op, ErrUnsupportedCMSObject)
	}
	return c.content.buildHandler(c)
}

// WriteContent feeds one chunk of the plaintext encapsulated content through
// the registered hash function during the BEGIN_DATA window, and (unless
// SetDetached(true) was called) buffers it for embedding as eContent. Call
// EndContent once the caller has no more data to feed.
func (c *CMS) WriteContent(p []byte) error {
	const op = "WriteContent"
	if c.stopReason != SRBeginData {
		return wrapErr(KindState, op, ErrInvalidState)
	}
	if c.hashFunc == nil {
		return wrapErr(KindState, op, ErrMissingAction)
	}
	c.hashFunc(p)
	if !c.detachedSignature {
		c.eContent = append(c.eContent, p...)
	}
	return nil
}

// EndContent closes the BEGIN_DATA window opened by a previous Build call,
// moving to END_DATA. The caller is expected to finalize its hash(es)
// externally and call SetMessageDigest for every signer before the next
// Build call.
func (c *CMS) EndContent() error {
	const op = "EndContent"
	if c.stopReason != SRBeginData {
		return wrapErr(KindState, op, ErrInvalidState)
	}
	c.stopReason = SREndData
	return nil
}

// ctBuildSignedData implements the signed-data build handler registered in
// dispatch.go, grounded on libksba's ct_build_signed_data (cms.c) and on the
// teacher's createSignedAttributes (cms/cms.go).
func ctBuildSignedData(c *CMS) error {
	const op = "Build(signed-data)"
	switch c.buildPhase {
	case sdStart:
		return buildSignedDataHeader(c, op)
	case sdAwaitingData:
		if c.stopReason != SREndData {
			return wrapErr(KindState, op, ErrInvalidState)
		}
		return buildSignedDataAttributes(c, op)
	case sdAwaitingSig:
		return buildSignedDataRest(c, op)
	default:
		return wrapErr(KindState, op, ErrInvalidState)
	}
}

// buildSignedDataHeader validates the registered digest algorithms and
// signers and opens the BEGIN_DATA window. Nothing is written to c.writer
// yet — encoding/asn1 builds the whole SignedData value in one shot, so the
// "header" here is validation plus state, not bytes.
func buildSignedDataHeader(c *CMS, op string) error {
	if len(c.digestAlgos) == 0 {
		return wrapErr(KindState, op, ErrMissingValue)
	}
	if len(c.signers) == 0 {
		return wrapErr(KindState, op, ErrMissingValue)
	}
	if c.encapContType == nil {
		c.encapContType = oidData
	}
	c.buildPhase = sdAwaitingData
	c.stopReason = SRBeginData
	return nil
}

// buildSignedDataAttributes builds each signer's signedAttrs (contentType +
// messageDigest) and caches both the Attributes value and its
// hashSignedAttrs image, so the bytes the caller hashes and the bytes
// embedded on the wire are identical.
func buildSignedDataAttributes(c *CMS, op string) error {
	for _, s := range c.signers {
		if len(s.msgDigest) == 0 {
			return wrapErr(KindState, op, ErrMissingValue)
		}
	}
	for i, s := range c.signers {
		mdValue, err := asn1.Marshal(s.msgDigest)
		if err != nil {
			return wrapErr(KindInternal, op, err)
		}
		ctValue, err := asn1.Marshal(c.encapContType)
		if err != nil {
			return wrapErr(KindInternal, op, err)
		}
		ctAttr, err := newSingleValueAttribute(oidAttrContentType, ctValue)
		if err != nil {
			return wrapErr(KindInternal, op, err)
		}
		mdAttr, err := newSingleValueAttribute(oidAttrMessageDigest, mdValue)
		if err != nil {
			return wrapErr(KindInternal, op, err)
		}
		attrs := Attributes{ctAttr, mdAttr}
		image, err := hashSignedAttrs(attrs)
		if err != nil {
			return wrapErr(KindInternal, op, err)
		}
		s.attrImage = image
		s.pendingAttrs = attrs
		s.pendingDigestAlgo = digestAlgoForSigner(c, i)
	}
	c.buildPhase = sdAwaitingSig
	c.stopReason = SRNeedSig
	return nil
}

// hashSignedAttrs returns the DER encoding of attrs in its EXPLICIT SET OF
// form — the bytes RFC 2630 §5.4 requires the signature to cover.
func hashSignedAttrs(attrs Attributes) ([]byte, error) {
	return attrs.MarshaledForSigning()
}

// buildSignedDataRest assembles the final SignedData value — embedding each
// signer's signedAttrs under the [0] IMPLICIT tag SignerInfo.SignedAttrs
// carries, built from the very same Attributes value hashSignedAttrs
// consumed — wraps it in ContentInfo, and writes the DER to the registered
// writer.
func buildSignedDataRest(c *CMS, op string) error {
	for _, s := range c.signers {
		if len(s.signature) == 0 {
			return wrapErr(KindState, op, ErrMissingValue)
		}
	}

	digestAlgos := make([]pkix.AlgorithmIdentifier, len(c.digestAlgos))
	for i, d := range c.digestAlgos {
		digestAlgos[i] = pkix.AlgorithmIdentifier{Algorithm: d.oid}
	}

	var eContent asn1.RawValue
	if !c.detachedSignature {
		octets, err := asn1.Marshal(asn1.RawValue{
			Class:      asn1.ClassUniversal,
			Tag:        asn1.TagOctetString,
			Bytes:      c.eContent,
			IsCompound: false,
		})
		if err != nil {
			return wrapErr(KindInternal, op, err)
		}
		eContent = asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			Bytes:      octets,
			IsCompound: true,
		}
	}

	signerInfos := make([]SignerInfo, len(c.signers))
	for i, s := range c.signers {
		sid, err := asn1.Marshal(IssuerAndSerialNumber{
			Issuer:       asn1.RawValue{FullBytes: s.cert.RawIssuer},
			SerialNumber: s.cert.SerialNumber,
		})
		if err != nil {
			return wrapErr(KindInternal, op, err)
		}
		sigAlgo, err := signatureAlgoFor(s.cert.PublicKey, s.pendingDigestAlgo)
		if err != nil {
			return wrapErr(KindArgument, op, err)
		}
		signerInfos[i] = SignerInfo{
			Version:            1,
			SID:                asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagSequence, IsCompound: true, FullBytes: sid},
			DigestAlgorithm:    pkix.AlgorithmIdentifier{Algorithm: s.pendingDigestAlgo},
			SignedAttrs:        s.pendingAttrs,
			SignatureAlgorithm: pkix.AlgorithmIdentifier{Algorithm: sigAlgo},
			Signature:          s.signature,
		}
	}

	sd := SignedData{
		Version:          3, // hardcoded: the only SignedData version this engine builds
		DigestAlgorithms: digestAlgos,
		EncapContentInfo: EncapsulatedContentInfo{
			EContentType: c.encapContType,
			EContent:     eContent,
		},
		SignerInfos: signerInfos,
	}
	sdBytes, err := asn1.Marshal(sd)
	if err != nil {
		return wrapErr(KindInternal, op, err)
	}

	outer := ContentInfo{
		ContentType: oidSignedData,
		Content: asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			Bytes:      sdBytes,
			IsCompound: true,
		},
	}
	outerBytes, err := asn1.Marshal(outer)
	if err != nil {
		return wrapErr(KindInternal, op, err)
	}
	if _, err := c.writer.Write(outerBytes); err != nil {
		return wrapErr(KindResource, op, err)
	}

	c.signerInfo.list = signerInfos
	c.buildPhase = sdDone
	c.stopReason = SRReady
	return nil
}

// digestAlgoForSigner picks the digest algorithm OID for signer i: the
// registered OID at the same index when one exists, otherwise the first
// registered OID (the common single-digest-algorithm case).
func digestAlgoForSigner(c *CMS, i int) asn1.ObjectIdentifier {
	if i < len(c.digestAlgos) {
		return c.digestAlgos[i].oid
	}
	return c.digestAlgos[0].oid
}
