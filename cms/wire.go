package cms

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"

	"crypto/x509/pkix"
)

// Content type OIDs.
var (
	oidData            = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	oidSignedData      = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	oidEnvelopedData   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 3}
	oidDigestedData    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 5}
	oidEncryptedData   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 6}
	oidAuthData        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 2}
	oidAttrMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	oidAttrContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
)

// Digest algorithm OIDs.
var (
	oidDigestSHA1       = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	oidDigestMD5        = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 5}
	oidDigestSHA256     = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidDigestSHA384     = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	oidDigestSHA512     = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
	oidDigestGOST341112 = asn1.ObjectIdentifier{1, 2, 643, 7, 1, 1, 2, 2}
)

// Signature algorithm OIDs.
var (
	oidSigRSA       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidSigECDSA     = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSigGOST341012 = asn1.ObjectIdentifier{1, 2, 643, 7, 1, 1, 1, 1}
)

var hashToDigestAlgo = map[crypto.Hash]asn1.ObjectIdentifier{
	crypto.MD5:    oidDigestMD5,
	crypto.SHA1:   oidDigestSHA1,
	crypto.SHA256: oidDigestSHA256,
	crypto.SHA384: oidDigestSHA384,
	crypto.SHA512: oidDigestSHA512,
}

var digestAlgoToHash = map[string]crypto.Hash{
	oidDigestMD5.String():    crypto.MD5,
	oidDigestSHA1.String():   crypto.SHA1,
	oidDigestSHA256.String(): crypto.SHA256,
	oidDigestSHA384.String(): crypto.SHA384,
	oidDigestSHA512.String(): crypto.SHA512,
}

// signatureAlgoFor resolves a distinct signatureAlgorithm OID from the
// signer's public-key kind and chosen digest algorithm, rather than copying
// the digestAlgorithm OID in as a placeholder. A GOST R 34.11-2012 digest
// resolves to GOST R 34.10-2012 whatever the key (internal/gostsigner passes
// certificates without a parsed public key); otherwise x509 RSA/ECDSA keys
// resolve by key type alone.
func signatureAlgoFor(pub crypto.PublicKey, digestAlgo asn1.ObjectIdentifier) (asn1.ObjectIdentifier, error) {
	if digestAlgo.Equal(oidDigestGOST341112) {
		return oidSigGOST341012, nil
	}
	switch pub.(type) {
	case *rsa.PublicKey:
		return oidSigRSA, nil
	case *ecdsa.PublicKey:
		return oidSigECDSA, nil
	default:
		return nil, fmt.Errorf("unsupported signer public key type %T", pub)
	}
}

// ContentInfo ::= SEQUENCE { contentType OBJECT IDENTIFIER, content [0] EXPLICIT ANY }
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,tag:0"`
}

// EncapsulatedContentInfo ::= SEQUENCE { eContentType ContentType, eContent [0] EXPLICIT OCTET STRING OPTIONAL }
type EncapsulatedContentInfo struct {
	EContentType asn1.ObjectIdentifier
	EContent     asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

// EContentValue unwraps the inner OCTET STRING (or concatenated constructed
// OCTET STRING segments) of EContent. A nil slice means the OPTIONAL field
// is absent (detached signature).
func (eci EncapsulatedContentInfo) EContentValue() ([]byte, error) {
	if eci.EContent.Bytes == nil {
		return nil, nil
	}
	var octets asn1.RawValue
	if rest, err := asn1.Unmarshal(eci.EContent.Bytes, &octets); err != nil {
		return nil, err
	} else if len(rest) > 0 {
		return nil, errors.New("cms: unexpected trailing data in eContent")
	}
	if octets.Class != asn1.ClassUniversal || octets.Tag != asn1.TagOctetString {
		return nil, fmt.Errorf("cms: bad eContent (class %d tag %d)", octets.Class, octets.Tag)
	}
	if !octets.IsCompound {
		return octets.Bytes, nil
	}
	var value []byte
	rest := octets.Bytes
	for len(rest) > 0 {
		var err error
		if rest, err = asn1.Unmarshal(rest, &octets); err != nil {
			return nil, err
		}
		if octets.Class != asn1.ClassUniversal || octets.Tag != asn1.TagOctetString || octets.IsCompound {
			return nil, fmt.Errorf("cms: bad constructed eContent segment (class %d tag %d)", octets.Class, octets.Tag)
		}
		value = append(value, octets.Bytes...)
	}
	return value, nil
}

// IssuerAndSerialNumber ::= SEQUENCE { issuer Name, serialNumber INTEGER }
type IssuerAndSerialNumber struct {
	Issuer       asn1.RawValue
	SerialNumber *big.Int
}

// Attribute ::= SEQUENCE { attrType OBJECT IDENTIFIER, attrValues SET OF ANY }
//
// Go's asn1 package cannot reliably decode a SET OF ANY into a typed slice
// field mid-struct (this is the same limitation the ietf-cms-style decoders
// work around with a dedicated any-set helper); attrValues is kept as the
// raw SET and every attribute gocms builds or reads carries exactly one
// value, so decoding it is just unwrapping that single element.
type Attribute struct {
	Type   asn1.ObjectIdentifier
	Values asn1.RawValue
}

// newSingleValueAttribute builds an Attribute whose attrValues SET holds
// exactly one value, already DER-encoded (a full TLV, e.g. the output of
// asn1.Marshal(oid) or asn1.Marshal(someOctetString)).
func newSingleValueAttribute(oid asn1.ObjectIdentifier, derValue []byte) (Attribute, error) {
	full, err := asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassUniversal,
		Tag:        asn1.TagSet,
		Bytes:      derValue,
		IsCompound: true,
	})
	if err != nil {
		return Attribute{}, err
	}
	return Attribute{Type: oid, Values: asn1.RawValue{
		Class:      asn1.ClassUniversal,
		Tag:        asn1.TagSet,
		IsCompound: true,
		Bytes:      derValue,
		FullBytes:  full,
	}}, nil
}

// singleValue unwraps attrValues assuming (and requiring) exactly one
// element, returning it as a RawValue so the caller can inspect its class,
// tag and content.
func (a Attribute) singleValue() (asn1.RawValue, error) {
	var inner asn1.RawValue
	rest, err := asn1.Unmarshal(a.Values.Bytes, &inner)
	if err != nil {
		return asn1.RawValue{}, err
	}
	if len(rest) > 0 {
		return asn1.RawValue{}, fmt.Errorf("%w: expected 1 attribute value, found more", ErrInvalidCMSObject)
	}
	return inner, nil
}

// Attributes is the common type for SignedAttributes (and, if ever needed,
// UnsignedAttributes) — SET SIZE (1..MAX) OF Attribute.
type Attributes []Attribute

// MarshaledForSigning DER-encodes Attributes the way RFC 2630 §5.4 / RFC
// 5652 §5.4 require for hashing: an EXPLICIT SET OF tag, never the IMPLICIT
// [0] tag the attributes carry inside SignerInfo. It marshals the bare
// slice (declaration order, no DER SET re-sorting) and patches the single
// outer tag byte — the same content bytes buildSignedDataRest embeds under
// the [0] IMPLICIT tag end up hashed here under the universal SET OF tag,
// per the first-byte substitution RFC 2630 §5.4 requires.
func (attrs Attributes) MarshaledForSigning() ([]byte, error) {
	encoded, err := asn1.Marshal([]Attribute(attrs))
	if err != nil {
		return nil, err
	}
	if len(encoded) == 0 || encoded[0] != 0x30 {
		return nil, errors.New("cms: unexpected attrs encoding")
	}
	encoded[0] = 0x31 // SEQUENCE OF -> SET OF, per RFC 2630 §5.4
	return encoded, nil
}

// GetValues returns the single decoded value of every Attribute matching
// oid (one entry per occurrence — occurrence, not set arity, since every
// attribute gocms handles is single-valued). A nil slice means oid was not
// present.
func (attrs Attributes) GetValues(oid asn1.ObjectIdentifier) ([]asn1.RawValue, error) {
	if attrs == nil {
		return nil, nil
	}
	var out []asn1.RawValue
	for _, a := range attrs {
		if !a.Type.Equal(oid) {
			continue
		}
		v, err := a.singleValue()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GetOnlyAttributeValueBytes returns the single value of the single
// attribute matching oid, distinguishing absent (ErrValueNotFound) from
// repeated (ErrDuplicateValue) so callers don't have to string-match.
func (attrs Attributes) GetOnlyAttributeValueBytes(oid asn1.ObjectIdentifier) (asn1.RawValue, error) {
	vals, err := attrs.GetValues(oid)
	if err != nil {
		return asn1.RawValue{}, err
	}
	switch {
	case len(vals) == 0:
		return asn1.RawValue{}, ErrValueNotFound
	case len(vals) > 1:
		return asn1.RawValue{}, ErrDuplicateValue
	}
	return vals[0], nil
}

// SignerInfo ::= SEQUENCE {
//   version CMSVersion,
//   sid SignerIdentifier,               -- issuerAndSerialNumber form only
//   digestAlgorithm DigestAlgorithmIdentifier,
//   signedAttrs [0] IMPLICIT SignedAttributes OPTIONAL,
//   signatureAlgorithm SignatureAlgorithmIdentifier,
//   signature SignatureValue }
type SignerInfo struct {
	Version            int
	SID                asn1.RawValue
	DigestAlgorithm    pkix.AlgorithmIdentifier
	SignedAttrs        Attributes `asn1:"optional,tag:0"`
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          []byte
}

// IssuerAndSerial decodes SID assuming the issuerAndSerialNumber choice
// (the only one the engine builds or expects to parse).
func (si SignerInfo) IssuerAndSerial() (IssuerAndSerialNumber, error) {
	var isn IssuerAndSerialNumber
	if si.SID.Class != asn1.ClassUniversal || si.SID.Tag != asn1.TagSequence {
		return isn, ErrInvalidCMSObject
	}
	if rest, err := asn1.Unmarshal(si.SID.FullBytes, &isn); err != nil {
		return isn, err
	} else if len(rest) > 0 {
		return isn, errors.New("cms: unexpected trailing data in SID")
	}
	return isn, nil
}

// serialNumberContent returns the raw DER content octets of SID's
// serialNumber INTEGER, preserving any leading 0x00 sign-padding byte that
// decoding through *big.Int (and then calling Bytes()) would silently drop.
func (si SignerInfo) serialNumberContent() ([]byte, error) {
	if si.SID.Class != asn1.ClassUniversal || si.SID.Tag != asn1.TagSequence {
		return nil, ErrInvalidCMSObject
	}
	var raw struct {
		Issuer       asn1.RawValue
		SerialNumber asn1.RawValue
	}
	rest, err := asn1.Unmarshal(si.SID.FullBytes, &raw)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, errors.New("cms: unexpected trailing data in SID")
	}
	if raw.SerialNumber.Class != asn1.ClassUniversal || raw.SerialNumber.Tag != asn1.TagInteger {
		return nil, ErrInvalidCMSObject
	}
	return raw.SerialNumber.Bytes, nil
}

// messageDigestRawValue returns the decoded value of the unique
// messageDigest signed attribute. See accessors.go for the full shape
// validation RFC 2630 requires (SET OF exactly one OCTET STRING).
func (si SignerInfo) messageDigestRawValue() (asn1.RawValue, error) {
	return si.SignedAttrs.GetOnlyAttributeValueBytes(oidAttrMessageDigest)
}

// SignedData ::= SEQUENCE {
//   version CMSVersion,
//   digestAlgorithms SET OF DigestAlgorithmIdentifier,
//   encapContentInfo EncapsulatedContentInfo,
//   certificates [0] IMPLICIT CertificateSet OPTIONAL,
//   crls [1] IMPLICIT RevocationInfoChoices OPTIONAL,
//   signerInfos SET OF SignerInfo }
type SignedData struct {
	Version          int
	DigestAlgorithms []pkix.AlgorithmIdentifier `asn1:"set"`
	EncapContentInfo EncapsulatedContentInfo
	Certificates     []asn1.RawValue `asn1:"optional,tag:0"`
	CRLs             []asn1.RawValue `asn1:"optional,tag:1"`
	SignerInfos      []SignerInfo    `asn1:"set"`
}
