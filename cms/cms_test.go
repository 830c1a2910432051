package cms

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestCert(t *testing.T, pub crypto.PublicKey, serial int64) *x509.Certificate {
	issuer := pkix.Name{CommonName: "gocms test CA"}
	rdn, err := asn1.Marshal(issuer.ToRDNSequence())
	require.NoError(t, err, "marshal issuer RDN")
	return &x509.Certificate{
		RawIssuer:    rdn,
		SerialNumber: big.NewInt(serial),
		PublicKey:    pub,
	}
}

// go test -timeout 30s -run ^TestBuildParseRoundTripAttached$ github.com/sysfce2/gocms/cms
func TestBuildParseRoundTripAttached(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "generate RSA key")
	cert := createTestCert(t, &key.PublicKey, 1)

	message := []byte("the quick brown fox jumps over the lazy dog")

	var out bytes.Buffer
	b := New()
	require.NoError(t, b.SetReaderWriter(nil, &out))
	require.NoError(t, b.SetContentType(CTSignedData))
	require.NoError(t, b.AddDigestAlgo(oidDigestSHA256))
	require.NoError(t, b.AddSigner(cert))

	h := sha256.New()
	require.NoError(t, b.SetHashFunction(func(p []byte) { h.Write(p) }))

	require.NoError(t, b.Build())
	assert.Equal(t, SRBeginData, b.GetStopReason())

	require.NoError(t, b.WriteContent(message))
	require.NoError(t, b.EndContent())
	assert.Equal(t, SREndData, b.GetStopReason())

	digest := h.Sum(nil)
	require.NoError(t, b.SetMessageDigest(0, digest))
	require.NoError(t, b.Build())
	assert.Equal(t, SRNeedSig, b.GetStopReason())

	attrImage, err := b.GetSignedAttrImage(0)
	require.NoError(t, err, "GetSignedAttrImage")

	attrDigest := sha256.Sum256(attrImage)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, attrDigest[:])
	require.NoError(t, err, "sign attr digest")
	require.NoError(t, b.SetSignature(0, sig))

	require.NoError(t, b.Build())
	assert.Equal(t, SRReady, b.GetStopReason())
	assert.Greater(t, out.Len(), 0, "Build produced no output")
	assert.Equal(t, byte(0x30), out.Bytes()[0], "CMS should start with SEQUENCE tag (0x30)")

	p := New()
	require.NoError(t, p.SetReaderWriter(bytes.NewReader(out.Bytes()), nil))

	ph := sha256.New()
	require.NoError(t, p.SetHashFunction(func(b []byte) { ph.Write(b) }))

	require.NoError(t, p.Parse())
	assert.Equal(t, CTSignedData, p.GetContentType())
	assert.Equal(t, SRBeginData, p.GetStopReason())

	require.NoError(t, p.Parse())
	assert.Equal(t, SREndData, p.GetStopReason())
	require.NoError(t, p.Finish())
	assert.Equal(t, SRReady, p.GetStopReason())

	assert.Equal(t, digest, ph.Sum(nil), "recomputed content digest must match")

	gotDigest, err := p.GetMessageDigest(0)
	require.NoError(t, err, "GetMessageDigest")
	assert.Equal(t, digest, gotDigest)

	issuer, serial, err := p.GetIssuerSerial(0)
	require.NoError(t, err, "GetIssuerSerial")
	assert.Contains(t, issuer, "gocms test CA")
	wantSerial := big.NewInt(1).Bytes()
	wantPrefixed := make([]byte, 4+len(wantSerial))
	binary.BigEndian.PutUint32(wantPrefixed[:4], uint32(len(wantSerial)))
	copy(wantPrefixed[4:], wantSerial)
	assert.Equal(t, wantPrefixed, serial, "serial must be 4-byte-length-prefixed DER INTEGER content")

	sexpr, err := p.GetSigVal(0)
	require.NoError(t, err, "GetSigVal")
	assert.Contains(t, sexpr, "sig-val")
	assert.Contains(t, sexpr, "rsa")
}

// go test -timeout 30s -run ^TestBuildDetachedOmitsEContent$ github.com/sysfce2/gocms/cms
func TestBuildDetachedOmitsEContent(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "generate RSA key")
	cert := createTestCert(t, &key.PublicKey, 2)

	message := []byte("detached payload")
	h := sha256.Sum256(message)

	var out bytes.Buffer
	b := New()
	require.NoError(t, b.SetReaderWriter(nil, &out))
	require.NoError(t, b.SetContentType(CTSignedData))
	require.NoError(t, b.AddDigestAlgo(oidDigestSHA256))
	require.NoError(t, b.AddSigner(cert))
	b.SetDetached(true)
	require.NoError(t, b.SetHashFunction(func([]byte) {}))

	require.NoError(t, b.Build())
	require.NoError(t, b.EndContent())
	require.NoError(t, b.SetMessageDigest(0, h[:]))
	require.NoError(t, b.Build())

	attrImage, err := b.GetSignedAttrImage(0)
	require.NoError(t, err)
	attrDigest := sha256.Sum256(attrImage)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, attrDigest[:])
	require.NoError(t, err)
	require.NoError(t, b.SetSignature(0, sig))
	require.NoError(t, b.Build())
	assert.Equal(t, SRReady, b.GetStopReason())

	p := New()
	require.NoError(t, p.SetReaderWriter(bytes.NewReader(out.Bytes()), nil))
	require.NoError(t, p.Parse())
	assert.Equal(t, SRNeedHash, p.GetStopReason(), "detached signature must stop at NEED_HASH")

	gotDigest, err := p.GetMessageDigest(0)
	require.NoError(t, err)
	assert.Equal(t, h[:], gotDigest)
}

// go test -timeout 30s -run ^TestBuildRejectsMissingDigestAlgo$ github.com/sysfce2/gocms/cms
func TestBuildRejectsMissingDigestAlgo(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cert := createTestCert(t, &key.PublicKey, 3)

	var out bytes.Buffer
	b := New()
	require.NoError(t, b.SetReaderWriter(nil, &out))
	require.NoError(t, b.SetContentType(CTSignedData))
	require.NoError(t, b.AddSigner(cert))

	err = b.Build()
	assert.ErrorIs(t, err, ErrMissingValue)
}

// go test -timeout 30s -run ^TestSetReaderWriterConflict$ github.com/sysfce2/gocms/cms
func TestSetReaderWriterConflict(t *testing.T) {
	c := New()
	var out bytes.Buffer
	require.NoError(t, c.SetReaderWriter(nil, &out))
	err := c.SetReaderWriter(nil, &out)
	assert.ErrorIs(t, err, ErrConflict)
}

// go test -timeout 30s -run ^TestParseUnknownContentType$ github.com/sysfce2/gocms/cms
func TestParseUnknownContentType(t *testing.T) {
	outer := ContentInfo{
		ContentType: asn1.ObjectIdentifier{1, 2, 3, 4, 5},
		Content: asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			Bytes:      []byte{0x05, 0x00},
			IsCompound: true,
		},
	}
	der, err := asn1.Marshal(outer)
	require.NoError(t, err)

	c := New()
	require.NoError(t, c.SetReaderWriter(bytes.NewReader(der), nil))
	err = c.Parse()
	assert.ErrorIs(t, err, ErrUnknownCMSObject)
}

// go test -timeout 30s -run ^TestParseUnsupportedContentType$ github.com/sysfce2/gocms/cms
func TestParseUnsupportedContentType(t *testing.T) {
	outer := ContentInfo{
		ContentType: oidEnvelopedData,
		Content: asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			Bytes:      []byte{0x05, 0x00},
			IsCompound: true,
		},
	}
	der, err := asn1.Marshal(outer)
	require.NoError(t, err)

	c := New()
	require.NoError(t, c.SetReaderWriter(bytes.NewReader(der), nil))
	err = c.Parse()
	assert.ErrorIs(t, err, ErrUnsupportedCMSObject)
}

// go test -timeout 30s -run ^TestGetIssuerSerialSingleSignerOnly$ github.com/sysfce2/gocms/cms
func TestGetIssuerSerialSingleSignerOnly(t *testing.T) {
	c := New()
	_, _, err := c.GetIssuerSerial(1)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

// go test -timeout 30s -run ^TestSignatureValueSExprRSA$ github.com/sysfce2/gocms/cms
func TestSignatureValueSExprRSA(t *testing.T) {
	s, err := signatureValueSExpr(oidSigRSA, []byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	assert.Equal(t, "(7:sig-val(3:rsa(1:s3:\x01\x02\x03)))", s)
}

// go test -timeout 30s -run ^TestGetMessageDigestAbsent$ github.com/sysfce2/gocms/cms
func TestGetMessageDigestAbsent(t *testing.T) {
	c := New()
	c.signerInfo.list = []SignerInfo{{}}
	_, err := c.GetMessageDigest(0)
	assert.ErrorIs(t, err, ErrValueNotFound)
}

// go test -timeout 30s -run ^TestGetMessageDigestDuplicate$ github.com/sysfce2/gocms/cms
func TestGetMessageDigestDuplicate(t *testing.T) {
	octet, err := asn1.Marshal([]byte("digest"))
	require.NoError(t, err)
	a, err := newSingleValueAttribute(oidAttrMessageDigest, octet)
	require.NoError(t, err)

	c := New()
	c.signerInfo.list = []SignerInfo{{SignedAttrs: Attributes{a, a}}}
	_, err = c.GetMessageDigest(0)
	assert.ErrorIs(t, err, ErrDuplicateValue)
}

// go test -timeout 30s -run ^TestParseDetachedFinishShortcut$ github.com/sysfce2/gocms/cms
func TestParseDetachedFinishShortcut(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cert := createTestCert(t, &key.PublicKey, 4)

	message := []byte("detached payload")
	h := sha256.Sum256(message)

	var out bytes.Buffer
	b := New()
	require.NoError(t, b.SetReaderWriter(nil, &out))
	require.NoError(t, b.SetContentType(CTSignedData))
	require.NoError(t, b.AddDigestAlgo(oidDigestSHA256))
	require.NoError(t, b.AddSigner(cert))
	b.SetDetached(true)
	require.NoError(t, b.SetHashFunction(func([]byte) {}))
	require.NoError(t, b.Build())
	require.NoError(t, b.EndContent())
	require.NoError(t, b.SetMessageDigest(0, h[:]))
	require.NoError(t, b.Build())
	attrImage, err := b.GetSignedAttrImage(0)
	require.NoError(t, err)
	attrDigest := sha256.Sum256(attrImage)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, attrDigest[:])
	require.NoError(t, err)
	require.NoError(t, b.SetSignature(0, sig))
	require.NoError(t, b.Build())

	p := New()
	require.NoError(t, p.SetReaderWriter(bytes.NewReader(out.Bytes()), nil))
	require.NoError(t, p.Parse())
	require.Equal(t, SRNeedHash, p.GetStopReason())

	require.NoError(t, p.Finish())
	assert.Equal(t, SRReady, p.GetStopReason())

	_, err = p.GetMessageDigest(0)
	assert.NoError(t, err, "signer info must already be usable after the NEED_HASH->READY shortcut")
}

// go test -timeout 30s -run ^TestFinishRejectsNeedHashWhenAttached$ github.com/sysfce2/gocms/cms
func TestFinishRejectsNeedHashWhenAttached(t *testing.T) {
	c := New()
	c.stopReason = SRNeedHash
	c.detachedSignature = false
	err := c.Finish()
	assert.ErrorIs(t, err, ErrInvalidState)
}

// go test -timeout 30s -run ^TestHashSignedAttrs$ github.com/sysfce2/gocms/cms
func TestHashSignedAttrs(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cert := createTestCert(t, &key.PublicKey, 5)

	var out bytes.Buffer
	b := New()
	require.NoError(t, b.SetReaderWriter(nil, &out))
	require.NoError(t, b.SetContentType(CTSignedData))
	require.NoError(t, b.AddDigestAlgo(oidDigestSHA256))
	require.NoError(t, b.AddSigner(cert))
	require.NoError(t, b.SetHashFunction(func([]byte) {}))
	require.NoError(t, b.Build())
	require.NoError(t, b.WriteContent([]byte("hi")))
	require.NoError(t, b.EndContent())
	require.NoError(t, b.SetMessageDigest(0, sha256Sum([]byte("hi"))))
	require.NoError(t, b.Build())

	image, err := b.GetSignedAttrImage(0)
	require.NoError(t, err)
	want := sha256.Sum256(image)

	var got []byte
	require.NoError(t, b.HashSignedAttrs(0, func(p []byte) {
		sum := sha256.Sum256(p)
		got = sum[:]
	}))
	assert.Equal(t, want[:], got)
}

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// go test -timeout 30s -run ^TestSplitRawRS$ github.com/sysfce2/gocms/cms
func TestSplitRawRS(t *testing.T) {
	sig := append(append([]byte{}, bytes.Repeat([]byte{0xAA}, 32)...), bytes.Repeat([]byte{0xBB}, 32)...)
	r, s, err := splitRawRS(sig)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 32), r)
	assert.Equal(t, bytes.Repeat([]byte{0xBB}, 32), s)

	_, _, err = splitRawRS([]byte{0x01, 0x02, 0x03})
	assert.Error(t, err, "odd-length signature must be rejected")
}
