package cms

import (
	"encoding/asn1"
	"fmt"
	"math/big"
)

// sigValECDSA is the ASN.1 shape of an ECDSA signature value: SEQUENCE
// { r INTEGER, s INTEGER }, as produced by crypto/ecdsa.SignASN1. GOST
// signatures are raw r||s and do not use it (see splitRawRS).
type sigValECDSA struct {
	R, S *big.Int
}

// signatureValueSExpr renders a signature as a canonical (Rivest-style)
// S-expression, the format libksba hands to libgcrypt for verification
// (ksba_cms_get_sig_val / cms.c's get_sig_val, and the print_sexp helper in
// the original test suite). RSA signatures are a single opaque integer;
// ECDSA ones are DER SEQUENCE{r,s} pairs and GOST ones raw r||s
// concatenations, each split into two S-expression leaves.
func signatureValueSExpr(sigAlgo asn1.ObjectIdentifier, signature []byte) (string, error) {
	switch {
	case sigAlgo.Equal(oidSigRSA):
		return sexprList("sig-val", sexprList("rsa", sexprLeaf("s", signature))), nil
	case sigAlgo.Equal(oidSigECDSA):
		r, s, err := unmarshalRS(signature)
		if err != nil {
			return "", err
		}
		return sexprList("sig-val", sexprList("ecdsa", sexprLeaf("r", r), sexprLeaf("s", s))), nil
	case sigAlgo.Equal(oidSigGOST341012):
		r, s, err := splitRawRS(signature)
		if err != nil {
			return "", err
		}
		return sexprList("sig-val", sexprList("gost", sexprLeaf("r", r), sexprLeaf("s", s))), nil
	default:
		return "", fmt.Errorf("cms: unsupported signature algorithm %s for S-expression export", sigAlgo)
	}
}

// unmarshalRS decodes a DER SEQUENCE{r,s} signature into its two big-endian
// magnitude byte strings.
func unmarshalRS(signature []byte) ([]byte, []byte, error) {
	var v sigValECDSA
	if rest, err := asn1.Unmarshal(signature, &v); err != nil {
		return nil, nil, err
	} else if len(rest) > 0 {
		return nil, nil, fmt.Errorf("cms: unexpected trailing data in signature")
	}
	if v.R == nil || v.S == nil {
		return nil, nil, fmt.Errorf("cms: incomplete r/s signature value")
	}
	return v.R.Bytes(), v.S.Bytes(), nil
}

// splitRawRS splits a gogost-style GOST 34.10-2012 signature into its two
// halves. Unlike ECDSA, gogost's SignDigest returns a raw fixed-width r||s
// concatenation rather than a DER SEQUENCE{r,s} (internal/gostsigner passes
// this straight through as SignerInfo.Signature), so there's no ASN.1 to
// unmarshal; the split point is simply the midpoint.
func splitRawRS(signature []byte) ([]byte, []byte, error) {
	if len(signature) == 0 || len(signature)%2 != 0 {
		return nil, nil, fmt.Errorf("cms: GOST signature must have even length, got %d", len(signature))
	}
	half := len(signature) / 2
	return signature[:half], signature[half:], nil
}

// sexprLeaf renders a single named byte-string leaf: (len:name len:bytes).
func sexprLeaf(name string, value []byte) string {
	return fmt.Sprintf("(%d:%s%d:%s)", len(name), name, len(value), value)
}

// sexprList renders a named list of already-rendered child expressions:
// (len:name child...).
func sexprList(name string, children ...string) string {
	out := fmt.Sprintf("(%d:%s", len(name), name)
	for _, c := range children {
		out += c
	}
	return out + ")"
}
