package cms

import (
	"encoding/asn1"
	"io"
)

// sdParsePhase is the internal state of ctParseSignedData, mirroring
// libksba's sSTART/sIN_DATA/sGOT_HASH progression (cms.c, ct_parse_signed_data).
type sdParsePhase int

const (
	spStart sdParsePhase = iota
	spGotHash
	spInData
	spDone
)

// Parse drives one step of the content handler determined from the wire
// (the very first Parse call reads and decodes the outer ContentInfo and
// dispatches on its contentType OID). Call it repeatedly, inspecting
// GetStopReason after each call, until it reports SRReady or returns an
// error.
func (c *CMS) Parse() error {
	const op = "Parse"
	if c.parsedOuter.ContentType == nil {
		if c.reader == nil {
			return wrapErr(KindState, op, ErrMissingAction)
		}
		if err := parseOuterContentInfo(c, op); err != nil {
			return err
		}
	}
	if c.content.parseHandler == nil {
		return wrapErr(KindContent, op, ErrUnsupportedCMSObject)
	}
	return c.content.parseHandler(c)
}

// parseOuterContentInfo reads the whole ContentInfo from c.reader, resolves
// its contentType OID against the dispatcher table, and primes c.content
// and c.parsedOuter for the registered parse handler. encoding/asn1 is not
// a resumable decoder, so the full outer structure is read in one shot; the
// caller-visible contract (stop only at documented StopReasons) is
// preserved by the handler, not by the decode itself.
func parseOuterContentInfo(c *CMS, op string) error {
	raw, err := io.ReadAll(c.reader)
	if err != nil {
		return wrapErr(KindResource, op, err)
	}
	var outer ContentInfo
	if rest, err := asn1.Unmarshal(raw, &outer); err != nil {
		return wrapErr(KindContent, op, err)
	} else if len(rest) > 0 {
		return wrapErr(KindContent, op, ErrInvalidCMSObject)
	}

	h := findHandlerByOID(outer.ContentType)
	if h == nil {
		return wrapErr(KindContent, op, ErrUnknownCMSObject)
	}
	c.content.oid = h.oid
	c.content.ct = h.ct
	c.content.parseHandler = h.parseHandler
	c.content.buildHandler = h.buildHandler
	c.parsedOuter = outer
	c.stopReason = SRGotContent
	return nil
}

// ctParseSignedData implements the signed-data parse handler registered in
// dispatch.go, grounded on libksba's ct_parse_signed_data (cms.c).
func ctParseSignedData(c *CMS) error {
	const op = "Parse(signed-data)"
	switch c.parsePhase {
	case spStart:
		return parseSignedDataHeader(c, op)
	case spGotHash:
		return parseSignedDataBeginData(c, op)
	case spInData:
		return parseSignedDataEndData(c, op)
	default:
		return wrapErr(KindState, op, ErrInvalidState)
	}
}

// parseSignedDataHeader decodes the inner SignedData SEQUENCE, registers
// the advertised digest algorithms and recovers the encapsulated content
// type, leaving the engine suspended at NEED_HASH (detached content) or at
// BEGIN_DATA (attached content).
func parseSignedDataHeader(c *CMS, op string) error {
	var sd SignedData
	if rest, err := asn1.Unmarshal(c.parsedOuter.Content.Bytes, &sd); err != nil {
		return wrapErr(KindContent, op, err)
	} else if len(rest) > 0 {
		return wrapErr(KindContent, op, ErrInvalidCMSObject)
	}
	c.parsedSignedData = &sd

	c.digestAlgos = c.digestAlgos[:0]
	for _, da := range sd.DigestAlgorithms {
		c.digestAlgos = append(c.digestAlgos, digestAlgoEntry{oid: da.Algorithm})
	}
	c.encapContType = sd.EncapContentInfo.EContentType

	eContent, err := sd.EncapContentInfo.EContentValue()
	if err != nil {
		return wrapErr(KindContent, op, err)
	}
	c.eContent = eContent
	c.detachedSignature = eContent == nil

	c.signers = c.signers[:0]
	for range sd.SignerInfos {
		c.signers = append(c.signers, &signerEntry{})
	}
	c.signerInfo.list = sd.SignerInfos
	resolveParsedCerts(c, &sd)

	c.parsePhase = spGotHash
	if c.detachedSignature {
		c.stopReason = SRNeedHash
		return nil
	}
	c.stopReason = SRBeginData
	c.parsePhase = spInData
	return nil
}

// parseSignedDataBeginData moves from NEED_HASH (detached content; the
// caller has already hashed the external content itself, optionally via
// SetExternalDigest) into BEGIN_DATA.
func parseSignedDataBeginData(c *CMS, op string) error {
	c.parsePhase = spInData
	c.stopReason = SRBeginData
	return nil
}

// parseSignedDataEndData streams the attached eContent (if any) through the
// registered hash function, then moves to END_DATA.
func parseSignedDataEndData(c *CMS, op string) error {
	if !c.detachedSignature {
		if c.hashFunc == nil {
			return wrapErr(KindState, op, ErrMissingAction)
		}
		if len(c.eContent) > 0 {
			c.hashFunc(c.eContent)
		}
	}
	c.parsePhase = spDone
	c.stopReason = SREndData
	return nil
}

// SetExternalDigest stores the content digest for a detached signature,
// computed by the caller over the out-of-band content after NEED_HASH. It is
// only kept on the container: no parse step or accessor reads it back, and
// it is not compared with the signer's messageDigest attribute.
func (c *CMS) SetExternalDigest(digest []byte) {
	c.dataDigest = digest
}

// Finish moves the engine to READY once the caller has inspected every
// signer (GetIssuerSerial, GetMessageDigest, GetSigVal). Parse never needs a
// signature from the caller — verification, if wanted, is the caller's
// responsibility using the accessors — so Finish is purely a bookkeeping
// step.
//
// From END_DATA (the attached-content flow, or a detached flow that stepped
// through BEGIN_DATA/END_DATA anyway) it's a plain transition. From
// NEED_HASH on a detached signature it's a shortcut straight to READY: the
// signer info is already fully decoded at that point (nothing streams for a
// detached signature), so GOT_CONTENT -> NEED_HASH -> READY is the direct
// detached-content path, with BEGIN_DATA/END_DATA optional rather than
// mandatory.
func (c *CMS) Finish() error {
	const op = "Finish"
	switch c.stopReason {
	case SREndData:
		c.stopReason = SRReady
		return nil
	case SRNeedHash:
		if !c.detachedSignature {
			return wrapErr(KindState, op, ErrInvalidState)
		}
		c.parsePhase = spDone
		c.stopReason = SRReady
		return nil
	default:
		return wrapErr(KindState, op, ErrInvalidState)
	}
}
