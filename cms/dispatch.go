package cms

import "encoding/asn1"

// contentHandler binds a recognized OID to its ContentType tag and its
// parse/build entry points. A nil handler means the type is recognized but
// not implemented: dispatch succeeds, but calling Parse or Build against it
// fails with ErrUnsupportedCMSObject.
type contentHandler struct {
	oid          asn1.ObjectIdentifier
	ct           ContentType
	parseHandler func(*CMS) error
	buildHandler func(*CMS) error
}

// contentHandlers is the dispatcher table, keyed by content-type OID. It is
// populated in init() because ctParseSignedData/ctBuildSignedData are
// declared in parse.go/build.go.
var contentHandlers []contentHandler

func init() {
	contentHandlers = []contentHandler{
		{oidData, CTData, nil, nil},
		{oidSignedData, CTSignedData, ctParseSignedData, ctBuildSignedData},
		{oidEnvelopedData, CTEnvelopedData, nil, nil},
		{oidDigestedData, CTDigestedData, nil, nil},
		{oidEncryptedData, CTEncryptedData, nil, nil},
		{oidAuthData, CTAuthData, nil, nil},
	}
}

// findHandlerByOID returns the handler registered for oid, or nil if the
// OID isn't recognized at all.
func findHandlerByOID(oid asn1.ObjectIdentifier) *contentHandler {
	for i := range contentHandlers {
		if contentHandlers[i].oid.Equal(oid) {
			return &contentHandlers[i]
		}
	}
	return nil
}

// findHandlerByType returns the handler registered for ct, or nil.
func findHandlerByType(ct ContentType) *contentHandler {
	for i := range contentHandlers {
		if contentHandlers[i].ct == ct {
			return &contentHandlers[i]
		}
	}
	return nil
}
