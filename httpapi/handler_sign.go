// Package httpapi provides HTTP handlers for CryptoPro key extraction and signing.
package httpapi

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ddulesov/gogost/gost3410"

	"github.com/sysfce2/gocms/internal/gostsigner"
)

// HandleSign signs a message as CMS SignedData using a GOST R 34.10-2012 key.
// @Summary Sign a message with GOST cryptography
// @Description Produces CMS/PKCS#7 SignedData over the given message, attached or detached
// @Tags Signing
// @Accept json
// @Produce json
// @Param request body httpapi.SignRequest true "Signing request"
// @Success 200 {object} httpapi.SignResponse
// @Failure 400 {object} httpapi.ErrorResponse
// @Failure 405 {object} httpapi.ErrorResponse
// @Failure 500 {object} httpapi.ErrorResponse
// @Router /api/v1/sign [POST]
func HandleSign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req SignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse JSON: "+err.Error())
		return
	}

	keyBytes, err := hex.DecodeString(req.PrivateKeyHex)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid private key hex: "+err.Error())
		return
	}

	certDER, err := base64.StdEncoding.DecodeString(req.CertificateB64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid certificate base64: "+err.Error())
		return
	}

	// Default curve - CryptoPro A; the key material itself carries no curve
	// tag, so the caller is expected to have extracted it with a matching
	// container (see HandleExtract / cryptopro.CurveOID).
	curve := gost3410.CurveIdGostR34102001CryptoProAParamSet()
	prv, err := gost3410.NewPrivateKey(curve, gost3410.Mode2001, keyBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to create private key: "+err.Error())
		return
	}

	signer, err := gostsigner.NewSigner(prv, certDER)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to create signer: "+err.Error())
		return
	}

	cmsDER, err := signer.Sign([]byte(req.Message), req.Detached)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to sign: "+err.Error())
		return
	}

	slog.Info("message signed",
		"message_len", len(req.Message),
		"signature_len", len(cmsDER),
		"detached", req.Detached,
	)

	resp := SignResponse{
		SignatureB64: base64.StdEncoding.EncodeToString(cmsDER),
	}

	writeJSON(w, http.StatusOK, resp)
}
