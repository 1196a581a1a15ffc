package ibkr

import "strconv"

// Tick type ids to names, matching the gateway's tick enumeration. Only the
// ticks relevant to quote snapshots are mapped; unknown ids fall back to a
// numeric name so no data is silently dropped.
var tickTypeNames = map[int]string{
	0:  "BID_SIZE",
	1:  "BID",
	2:  "ASK",
	3:  "ASK_SIZE",
	4:  "LAST",
	5:  "LAST_SIZE",
	6:  "HIGH",
	7:  "LOW",
	8:  "VOLUME",
	9:  "CLOSE",
	14: "OPEN",
	66: "DELAYED_BID",
	67: "DELAYED_ASK",
	68: "DELAYED_LAST",
	69: "DELAYED_BID_SIZE",
	70: "DELAYED_ASK_SIZE",
	71: "DELAYED_LAST_SIZE",
	72: "DELAYED_HIGH",
	73: "DELAYED_LOW",
	74: "DELAYED_VOLUME",
	75: "DELAYED_CLOSE",
	76: "DELAYED_OPEN",
}

func tickTypeName(id int) string {
	if name, ok := tickTypeNames[id]; ok {
		return name
	}
	return "TICK_" + strconv.Itoa(id)
}

// priceSizeTicks maps a price tick to the size tick delivered alongside it
// in the same message.
var priceSizeTicks = map[int]int{
	1:  0,  // BID -> BID_SIZE
	2:  3,  // ASK -> ASK_SIZE
	4:  5,  // LAST -> LAST_SIZE
	66: 69, // DELAYED_BID -> DELAYED_BID_SIZE
	67: 70, // DELAYED_ASK -> DELAYED_ASK_SIZE
	68: 71, // DELAYED_LAST -> DELAYED_LAST_SIZE
}
