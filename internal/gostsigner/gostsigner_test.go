package gostsigner

import (
	"crypto/rand"
	"testing"

	"github.com/ddulesov/gogost/gost3410"
	"github.com/ddulesov/gogost/gost34112012256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestPrivateKey(t *testing.T) *gost3410.PrivateKey {
	curve := gost3410.CurveIdGostR34102001CryptoProAParamSet()

	keyBytes := make([]byte, 32)
	_, err := rand.Read(keyBytes)
	require.NoError(t, err, "Failed to generate random key")

	prv, err := gost3410.NewPrivateKey(curve, gost3410.Mode2001, keyBytes)
	require.NoError(t, err, "Failed to create private key")

	return prv
}

// createTestCertDER is a hand-built, minimal DER certificate: enough of a
// TBSCertificate shape (version, serial, issuer, validity, subject, SPKI,
// signature) for minimalCertificate to extract issuer/serial from, without
// needing a real CA-issued GOST certificate.
func createTestCertDER() []byte {
	cert := []byte{
		0x30, 0x82, 0x01, 0x08, // SEQUENCE
		0x30, 0x81, 0xb6, // tbsCertificate SEQUENCE
		0xa0, 0x03, 0x02, 0x01, 0x02, // version
		0x02, 0x01, 0x01, // serialNumber
		0x30, 0x0a, 0x06, 0x08, 0x2a, 0x85, 0x03, 0x07, 0x01, 0x01, 0x03, 0x02, // algorithm
		0x30, 0x0b, 0x31, 0x09, 0x30, 0x07, 0x06, 0x03, 0x55, 0x04, 0x03, 0x0c, 0x00, // issuer
		0x30, 0x1e, // validity
		0x17, 0x0d, 0x32, 0x34, 0x30, 0x31, 0x30, 0x31, 0x30, 0x30, 0x30, 0x30, 0x30, 0x30, 0x5a,
		0x17, 0x0d, 0x32, 0x35, 0x30, 0x31, 0x30, 0x31, 0x30, 0x30, 0x30, 0x30, 0x30, 0x30, 0x5a,
		0x30, 0x0b, 0x31, 0x09, 0x30, 0x07, 0x06, 0x03, 0x55, 0x04, 0x03, 0x0c, 0x00, // subject
		0x30, 0x66, // subjectPublicKeyInfo
		0x30, 0x1f, 0x06, 0x08, 0x2a, 0x85, 0x03, 0x07, 0x01, 0x01, 0x01, 0x01,
		0x30, 0x13, 0x06, 0x07, 0x2a, 0x85, 0x03, 0x02, 0x02, 0x23, 0x01,
		0x06, 0x08, 0x2a, 0x85, 0x03, 0x07, 0x01, 0x01, 0x02, 0x02,
		0x03, 0x43, 0x00, 0x04, 0x40,
	}
	cert = append(cert, make([]byte, 64)...)
	cert = append(cert, []byte{
		0x30, 0x0a, 0x06, 0x08, 0x2a, 0x85, 0x03, 0x07, 0x01, 0x01, 0x03, 0x02,
		0x03, 0x41, 0x00,
	}...)
	cert = append(cert, make([]byte, 64)...)

	return cert
}

// go test -timeout 30s -run ^TestStreebog256$ github.com/sysfce2/gocms/internal/gostsigner
func TestStreebog256(t *testing.T) {
	result := streebog([]byte("test"))
	assert.Len(t, result, 32, "Streebog-256 should produce 32 bytes")

	result2 := streebog([]byte("test"))
	assert.Equal(t, result, result2, "Streebog-256 should be deterministic")

	result3 := streebog([]byte("other"))
	assert.NotEqual(t, result, result3, "Different inputs should produce different hashes")
}

// go test -timeout 30s -run ^TestGOSTSignatureRoundTrip$ github.com/sysfce2/gocms/internal/gostsigner
func TestGOSTSignatureRoundTrip(t *testing.T) {
	prv := createTestPrivateKey(t)
	pub, err := prv.PublicKey()
	require.NoError(t, err, "Failed to get public key")

	h := gost34112012256.New()
	h.Write([]byte("test message"))
	digest := h.Sum(nil)

	signature, err := prv.SignDigest(digest, rand.Reader)
	require.NoError(t, err, "SignDigest failed")
	assert.Len(t, signature, 64, "Signature should be 64 bytes")

	valid, err := pub.VerifyDigest(digest, signature)
	require.NoError(t, err, "VerifyDigest failed")
	assert.True(t, valid, "Signature verification failed")

	digest[0] ^= 0xff
	valid2, err := pub.VerifyDigest(digest, signature)
	require.NoError(t, err)
	assert.False(t, valid2, "Modified digest should fail verification")
}

// go test -timeout 30s -run ^TestNewSignerValidation$ github.com/sysfce2/gocms/internal/gostsigner
func TestNewSignerValidation(t *testing.T) {
	prv := createTestPrivateKey(t)

	_, err := NewSigner(prv, []byte{})
	assert.Error(t, err, "NewSigner should fail with empty certificate")
	assert.ErrorIs(t, err, ErrInvalidCertificate)

	_, err = NewSigner(nil, createTestCertDER())
	assert.Error(t, err, "NewSigner should fail with nil private key")
}

// go test -timeout 30s -run ^TestNewSignerExtractsIssuerSerial$ github.com/sysfce2/gocms/internal/gostsigner
func TestNewSignerExtractsIssuerSerial(t *testing.T) {
	prv := createTestPrivateKey(t)
	signer, err := NewSigner(prv, createTestCertDER())
	require.NoError(t, err)
	require.NotNil(t, signer.cert)
	assert.Equal(t, int64(1), signer.cert.SerialNumber.Int64())
	assert.NotEmpty(t, signer.cert.RawIssuer)
}

// go test -timeout 30s -run ^TestSignProducesDER$ github.com/sysfce2/gocms/internal/gostsigner
func TestSignProducesDER(t *testing.T) {
	prv := createTestPrivateKey(t)
	certDER := createTestCertDER()

	signer, err := NewSigner(prv, certDER)
	require.NoError(t, err, "NewSigner failed")

	message := []byte("test message for signing")
	cmsDER, err := signer.Sign(message, false)
	require.NoError(t, err, "Sign failed")

	assert.GreaterOrEqual(t, len(cmsDER), 4, "CMS DER too short")
	assert.Equal(t, byte(0x30), cmsDER[0], "CMS should start with SEQUENCE tag (0x30)")
	assert.GreaterOrEqual(t, len(cmsDER), 100, "CMS DER seems too small")
}

// go test -timeout 30s -run ^TestSignDetachedOmitsContent$ github.com/sysfce2/gocms/internal/gostsigner
func TestSignDetachedOmitsContent(t *testing.T) {
	prv := createTestPrivateKey(t)
	certDER := createTestCertDER()

	signer, err := NewSigner(prv, certDER)
	require.NoError(t, err)

	message := []byte("detached payload")
	attached, err := signer.Sign(message, false)
	require.NoError(t, err)
	detached, err := signer.Sign(message, true)
	require.NoError(t, err)

	assert.Greater(t, len(attached), len(detached), "detached output should omit eContent bytes")
}

// go test -timeout 30s -run ^TestSignDeterministicSize$ github.com/sysfce2/gocms/internal/gostsigner
func TestSignDeterministicSize(t *testing.T) {
	prv := createTestPrivateKey(t)
	certDER := createTestCertDER()

	signer, err := NewSigner(prv, certDER)
	require.NoError(t, err, "NewSigner failed")

	message := []byte("test message")

	cms1, err := signer.Sign(message, false)
	require.NoError(t, err, "First Sign failed")

	cms2, err := signer.Sign(message, false)
	require.NoError(t, err, "Second Sign failed")

	sizeDiff := len(cms1) - len(cms2)
	assert.InDelta(t, 0, sizeDiff, 10, "CMS sizes differ too much")
}
