package ibkr

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Order is a new order to submit. Zero values follow the gateway's
// defaults: DAY time in force, transmit immediately, origin customer.
type Order struct {
	Action     string          `json:"action"`     // BUY or SELL
	Quantity   decimal.Decimal `json:"quantity"`
	OrderType  string          `json:"order_type"` // MKT, LMT, STP, STP LMT...
	LimitPrice *float64        `json:"limit_price,omitempty"`
	AuxPrice   *float64        `json:"aux_price,omitempty"`
	TIF        string          `json:"tif,omitempty"`
	Account    string          `json:"account,omitempty"`
	OrderRef   string          `json:"order_ref,omitempty"`
	Transmit   *bool           `json:"transmit,omitempty"`
	OutsideRTH bool            `json:"outside_rth,omitempty"`
}

func (o *Order) transmit() bool {
	return o.Transmit == nil || *o.Transmit
}

func (o *Order) tif() string {
	if o.TIF == "" {
		return "DAY"
	}
	return o.TIF
}

// Validate checks the order before it touches the wire.
func (o *Order) Validate() error {
	action := strings.ToUpper(o.Action)
	if action != "BUY" && action != "SELL" {
		return fmt.Errorf("invalid order action %q (must be BUY or SELL)", o.Action)
	}
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("order quantity must be positive, got %s", o.Quantity)
	}
	switch strings.ToUpper(o.OrderType) {
	case "MKT":
	case "LMT":
		if o.LimitPrice == nil {
			return fmt.Errorf("limit order requires a limit price")
		}
	case "STP":
		if o.AuxPrice == nil {
			return fmt.Errorf("stop order requires a stop (aux) price")
		}
	case "STP LMT":
		if o.LimitPrice == nil || o.AuxPrice == nil {
			return fmt.Errorf("stop-limit order requires both limit and stop prices")
		}
	case "":
		return fmt.Errorf("order type is required")
	default:
		return fmt.Errorf("unsupported order type %q", o.OrderType)
	}
	return nil
}

// encodePlaceOrder builds the placeOrder message. Field order follows the
// gateway's layout at clientProtocolVersion; fields this client does not
// model are sent with their gateway defaults.
func encodePlaceOrder(orderID int64, c Contract, o *Order) *messageBuilder {
	b := newMessage(outPlaceOrder)
	b.addInt64(orderID)

	encodeContract(b, c)
	b.addEmpty() // secIdType
	b.addEmpty() // secId

	b.addString(strings.ToUpper(o.Action))
	b.addDecimal(o.Quantity)
	b.addString(strings.ToUpper(o.OrderType))
	b.addOptFloat(o.LimitPrice)
	b.addOptFloat(o.AuxPrice)

	b.addString(o.tif())
	b.addEmpty() // ocaGroup
	b.addString(o.Account)
	b.addEmpty() // openClose
	b.addInt(0)  // origin: customer
	b.addString(o.OrderRef)
	b.addBool(o.transmit())
	b.addInt(0)      // parentId
	b.addBool(false) // blockOrder
	b.addBool(false) // sweepToFill
	b.addInt(0)      // displaySize
	b.addInt(0)      // triggerMethod
	b.addBool(o.OutsideRTH)
	b.addBool(false) // hidden

	// Unused tail of the standard order block: combo legs through the
	// closing empty option lists, all at defaults.
	b.addEmpty()  // sharesAllocation (deprecated)
	b.addFloat(0) // discretionaryAmt
	b.addEmpty()  // goodAfterTime
	b.addEmpty()  // goodTillDate
	b.addEmpty()  // faGroup
	b.addEmpty()  // faMethod
	b.addEmpty()  // faPercentage
	b.addEmpty()  // faProfile (deprecated)
	b.addEmpty()  // modelCode
	b.addInt(0)   // shortSaleSlot
	b.addEmpty()  // designatedLocation
	b.addInt(-1)  // exemptCode
	b.addInt(0)   // ocaType
	b.addEmpty()  // rule80A
	b.addEmpty()  // settlingFirm
	b.addInt(0)   // allOrNone
	b.addEmpty()  // minQty
	b.addEmpty()  // percentOffset
	b.addBool(false) // eTradeOnly (desupported)
	b.addBool(false) // firmQuoteOnly (desupported)
	b.addEmpty()     // nbboPriceCap (desupported)
	b.addInt(0)      // auctionStrategy
	b.addEmpty()     // startingPrice
	b.addEmpty()     // stockRefPrice
	b.addEmpty()     // delta
	b.addEmpty()     // stockRangeLower
	b.addEmpty()     // stockRangeUpper
	b.addInt(0)      // overridePercentageConstraints
	b.addEmpty()     // volatility
	b.addEmpty()     // volatilityType
	b.addEmpty()     // deltaNeutralOrderType
	b.addEmpty()     // deltaNeutralAuxPrice
	b.addInt(0)      // continuousUpdate
	b.addEmpty()     // referencePriceType
	b.addEmpty()     // trailStopPrice
	b.addEmpty()     // trailingPercent
	b.addEmpty()     // scaleInitLevelSize
	b.addEmpty()     // scaleSubsLevelSize
	b.addEmpty()     // scalePriceIncrement
	b.addEmpty()     // scaleTable
	b.addEmpty()     // activeStartTime
	b.addEmpty()     // activeStopTime
	b.addEmpty()     // hedgeType
	b.addInt(0)      // optOutSmartRouting
	b.addEmpty()     // clearingAccount
	b.addEmpty()     // clearingIntent
	b.addInt(0)      // notHeld
	b.addBool(false) // deltaNeutralContract
	b.addEmpty()     // algoStrategy
	b.addEmpty()     // algoId
	b.addInt(0)      // whatIf
	b.addEmpty()     // orderMiscOptions
	b.addInt(0)      // solicited
	b.addInt(0)      // randomizeSize
	b.addInt(0)      // randomizePrice

	// The gateway keeps parsing positionally past the classic order block:
	// condition list, adjusted-order and MiFID attributes, all unset here.
	b.addInt(0)      // conditions count
	b.addEmpty()     // adjustedOrderType
	b.addEmpty()     // triggerPrice
	b.addEmpty()     // lmtPriceOffset
	b.addEmpty()     // adjustedStopPrice
	b.addEmpty()     // adjustedStopLimitPrice
	b.addEmpty()     // adjustedTrailingAmount
	b.addInt(0)      // adjustableTrailingUnit
	b.addEmpty()     // extOperator
	b.addEmpty()     // softDollarTier name
	b.addEmpty()     // softDollarTier value
	b.addEmpty()     // cashQty
	b.addEmpty()     // mifid2DecisionMaker
	b.addEmpty()     // mifid2DecisionAlgo
	b.addEmpty()     // mifid2ExecutionTrader
	b.addEmpty()     // mifid2ExecutionAlgo
	b.addBool(false) // dontUseAutoPriceForHedge
	b.addBool(false) // isOmsContainer

	return b
}

// encodeCancelOrder builds the cancelOrder message.
func encodeCancelOrder(orderID int64) *messageBuilder {
	b := newMessage(outCancelOrder)
	b.addInt(1) // version
	b.addInt64(orderID)
	return b
}
