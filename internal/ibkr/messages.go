package ibkr

// Outgoing message ids.
const (
	outReqMktData           = 1
	outCancelMktData        = 2
	outPlaceOrder           = 3
	outCancelOrder          = 4
	outReqOpenOrders        = 5
	outReqContractData      = 9
	outReqManagedAccts      = 17
	outReqCurrentTime       = 49
	outReqMarketDataType    = 59
	outReqPositions         = 61
	outReqAccountSummary    = 62
	outCancelAccountSummary = 63
	outCancelPositions      = 64
	outStartAPI             = 71
)

// Incoming message ids.
const (
	inTickPrice         = 1
	inTickSize          = 2
	inOrderStatus       = 3
	inErrMsg            = 4
	inOpenOrder         = 5
	inNextValidID       = 9
	inContractData      = 10
	inManagedAccts      = 15
	inCurrentTime       = 49
	inContractDataEnd   = 52
	inOpenOrderEnd      = 53
	inTickSnapshotEnd   = 57
	inPosition          = 61
	inPositionEnd       = 62
	inAccountSummary    = 63
	inAccountSummaryEnd = 64
)

// clientProtocolVersion is offered as both ends of the handshake range, so
// the gateway speaks exactly this protocol version back to us. Every message
// layout in this package is written against it: 145 is the first version
// where placeOrder and openOrder carry no VERSION field, and it predates the
// d-peg, price-management and manual-order-time fields, so the placeOrder
// tail ends at isOmsContainer. Bumping this constant requires re-checking
// every encoder and decoder against the gateway's layout for the new version.
const clientProtocolVersion = 145

// apiSignature prefixes the very first bytes on the wire so the gateway
// switches into the v100+ protocol.
const apiSignature = "API\x00"

// Gateway error codes in these ranges are connectivity notices, not request
// failures (e.g. 2104 "Market data farm connection is OK").
func isNoticeCode(code int) bool {
	return (code >= 1100 && code < 1300) || (code >= 2100 && code < 2200)
}
