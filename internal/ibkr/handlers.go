package ibkr

import (
	"strings"
	"time"

	"ibmcp/internal/logging"
)

// dispatch routes one incoming message. It runs on the reader goroutine;
// handlers take the client mutex themselves.
func (c *Client) dispatch(fields []string) {
	s := newFieldScanner(fields)
	switch msgID := s.int(); msgID {
	case inTickPrice:
		c.handleTickPrice(s)
	case inTickSize:
		c.handleTickSize(s)
	case inTickSnapshotEnd:
		c.handleTickSnapshotEnd(s)
	case inOrderStatus:
		c.handleOrderStatus(s)
	case inErrMsg:
		c.handleErrMsg(s)
	case inOpenOrder:
		c.handleOpenOrder(s)
	case inOpenOrderEnd:
		c.handleOpenOrderEnd(s)
	case inNextValidID:
		c.handleNextValidID(s)
	case inContractData:
		c.handleContractData(s)
	case inContractDataEnd:
		c.handleContractDataEnd(s)
	case inManagedAccts:
		c.handleManagedAccts(s)
	case inCurrentTime:
		c.handleCurrentTime(s)
	case inPosition:
		c.handlePosition(s)
	case inPositionEnd:
		c.handlePositionEnd(s)
	case inAccountSummary:
		c.handleAccountSummary(s)
	case inAccountSummaryEnd:
		c.handleAccountSummaryEnd(s)
	default:
		logging.Debug("ibkr: ignoring message type %d (%d fields)", msgID, len(fields))
	}
}

func (c *Client) handleTickPrice(s *fieldScanner) {
	s.int() // version
	reqID := s.int64()
	tick := s.int()
	price := s.float()
	size := s.decimal()

	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.mdSubs[reqID]
	if !ok {
		logging.Debug("ibkr: market data request with ID %d not found", reqID)
		return
	}
	q := c.quoteLocked(sub.contract)
	q.Prices[tickTypeName(tick)] = price
	if sizeTick, ok := priceSizeTicks[tick]; ok && !size.IsZero() {
		q.Sizes[tickTypeName(sizeTick)] = size.IntPart()
	}
	q.UpdatedAt = time.Now()
}

func (c *Client) handleTickSize(s *fieldScanner) {
	s.int() // version
	reqID := s.int64()
	tick := s.int()
	size := s.decimal()

	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.mdSubs[reqID]
	if !ok {
		logging.Debug("ibkr: market data request with ID %d not found", reqID)
		return
	}
	q := c.quoteLocked(sub.contract)
	q.Sizes[tickTypeName(tick)] = size.IntPart()
	q.UpdatedAt = time.Now()
}

func (c *Client) handleTickSnapshotEnd(s *fieldScanner) {
	s.int() // version
	reqID := s.int64()

	c.mu.Lock()
	defer c.mu.Unlock()
	sub := c.mdSubs[reqID]
	p := c.pending[reqID]
	delete(c.mdSubs, reqID)
	if p == nil {
		return
	}
	if sub != nil {
		p.quote = c.quoteLocked(sub.contract).clone()
	}
	p.finish(nil)
}

// quoteLocked returns the cache entry for a contract, creating it if the
// subscription raced a cache reset.
func (c *Client) quoteLocked(contract Contract) *Quote {
	key := contractKey(contract)
	q := c.quotes[key]
	if q == nil {
		q = newQuote(c.opts.MarketDataType)
		c.quotes[key] = q
	}
	return q
}

func (c *Client) handleOrderStatus(s *fieldScanner) {
	// No version field at the pinned protocol version; a trailing
	// mktCapPrice field follows whyHeld and is left unread.
	st := OrderStatus{
		OrderID:      s.int64(),
		Status:       s.next(),
		Filled:       s.decimal(),
		Remaining:    s.decimal(),
		AvgFillPrice: s.float(),
		PermID:       s.int64(),
	}
	s.int64() // parentId
	st.LastFillPrice = s.float()
	s.int64() // clientId
	st.WhyHeld = s.next()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openOrdersReq != nil {
		for i := range c.openOrdersReq.orders {
			if c.openOrdersReq.orders[i].OrderID == st.OrderID {
				c.openOrdersReq.orders[i].Status = st.Status
			}
		}
	}
	if p, ok := c.pending[st.OrderID]; ok {
		p.status = &st
		p.finish(nil)
	}
}

func (c *Client) handleErrMsg(s *fieldScanner) {
	s.int() // version
	id := s.int64()
	code := s.int()
	msg := s.next()

	if id < 0 || isNoticeCode(code) {
		logging.Info("IBKR gateway [%d]: %s", code, msg)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[id]; ok {
		delete(c.mdSubs, id)
		p.finish(&GatewayError{ReqID: id, Code: code, Message: msg})
		return
	}
	logging.Warn("IBKR gateway error for unknown request %d [%d]: %s", id, code, msg)
}

func (c *Client) handleOpenOrder(s *fieldScanner) {
	// Only the leading order block is parsed; the long tail of optional
	// order attributes is ignored.
	o := OpenOrder{OrderID: s.int64()}
	o.Contract = scanContract(s)
	o.Action = s.next()
	o.Quantity = s.decimal()
	o.OrderType = s.next()
	o.LimitPrice = s.float()
	o.AuxPrice = s.float()
	o.TIF = s.next()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openOrdersReq == nil {
		logging.Debug("ibkr: unsolicited openOrder for order %d", o.OrderID)
		return
	}
	for i := range c.openOrdersReq.orders {
		if c.openOrdersReq.orders[i].OrderID == o.OrderID {
			c.openOrdersReq.orders[i] = o
			return
		}
	}
	c.openOrdersReq.orders = append(c.openOrdersReq.orders, o)
}

func (c *Client) handleOpenOrderEnd(s *fieldScanner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openOrdersReq != nil {
		c.openOrdersReq.finish(nil)
		c.openOrdersReq = nil
	}
}

func (c *Client) handleNextValidID(s *fieldScanner) {
	s.int() // version
	orderID := s.int64()

	c.mu.Lock()
	defer c.mu.Unlock()
	if orderID > c.nextOrderID {
		c.nextOrderID = orderID
	}
	if c.ready != nil {
		select {
		case <-c.ready:
		default:
			close(c.ready)
		}
	}
}

func (c *Client) handleContractData(s *fieldScanner) {
	s.int() // version
	reqID := s.int64()

	var d ContractDetails
	d.Contract.Symbol = s.next()
	d.Contract.SecType = s.next()
	d.Contract.LastTradeDate = s.next()
	d.Contract.Strike = s.float()
	d.Contract.Right = s.next()
	d.Contract.Exchange = s.next()
	d.Contract.Currency = s.next()
	d.Contract.LocalSymbol = s.next()
	d.MarketName = s.next()
	d.Contract.TradingClass = s.next()
	d.Contract.ConID = s.int64()
	d.MinTick = s.float()
	s.next() // mdSizeMultiplier, retired but still on the wire
	d.Contract.Multiplier = s.next()
	d.OrderTypes = s.next()
	d.ValidExchanges = s.next()
	d.PriceMagnifier = s.int()
	s.int64() // underConId
	d.LongName = s.next()
	d.Contract.PrimaryExchange = s.next()
	d.ContractMonth = s.next()
	d.Industry = s.next()
	d.Category = s.next()
	s.next() // subcategory
	d.TimeZoneID = s.next()
	d.TradingHours = s.next()
	d.LiquidHours = s.next()

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[reqID]; ok {
		p.details = append(p.details, d)
	}
}

func (c *Client) handleContractDataEnd(s *fieldScanner) {
	s.int() // version
	reqID := s.int64()

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[reqID]; ok {
		p.finish(nil)
	}
}

func (c *Client) handleManagedAccts(s *fieldScanner) {
	s.int() // version
	accounts := strings.Split(s.next(), ",")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.managedAccounts = accounts
	if c.accountsReq != nil {
		c.accountsReq.accounts = accounts
		c.accountsReq.finish(nil)
		c.accountsReq = nil
	}
}

func (c *Client) handleCurrentTime(s *fieldScanner) {
	s.int() // version
	unix := s.int64()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timeReq != nil {
		c.timeReq.currentTime = time.Unix(unix, 0)
		c.timeReq.finish(nil)
		c.timeReq = nil
	}
}

func (c *Client) handlePosition(s *fieldScanner) {
	s.int() // version
	pos := Position{Account: s.next()}
	pos.Contract = scanContract(s)
	pos.Quantity = s.decimal()
	pos.AverageCost = s.float()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.positionsReq == nil {
		logging.Debug("ibkr: unsolicited position for account %s", pos.Account)
		return
	}
	// Identity is (account, conId): a refresh replaces, never duplicates.
	for i := range c.positionsReq.positions {
		existing := &c.positionsReq.positions[i]
		if existing.Account == pos.Account && existing.Contract.ConID == pos.Contract.ConID {
			*existing = pos
			return
		}
	}
	c.positionsReq.positions = append(c.positionsReq.positions, pos)
}

func (c *Client) handlePositionEnd(s *fieldScanner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.positionsReq != nil {
		c.positionsReq.finish(nil)
		c.positionsReq = nil
	}
}

func (c *Client) handleAccountSummary(s *fieldScanner) {
	s.int() // version
	reqID := s.int64()
	v := AccountValue{
		Account:  s.next(),
		Tag:      s.next(),
		Value:    s.next(),
		Currency: s.next(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[reqID]; ok {
		p.values = append(p.values, v)
	}
}

func (c *Client) handleAccountSummaryEnd(s *fieldScanner) {
	s.int() // version
	reqID := s.int64()

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[reqID]; ok {
		p.finish(nil)
	}
}

// scanContract reads the standard contract block used by position and
// openOrder messages.
func scanContract(s *fieldScanner) Contract {
	return Contract{
		ConID:         s.int64(),
		Symbol:        s.next(),
		SecType:       s.next(),
		LastTradeDate: s.next(),
		Strike:        s.float(),
		Right:         s.next(),
		Multiplier:    s.next(),
		Exchange:      s.next(),
		Currency:      s.next(),
		LocalSymbol:   s.next(),
		TradingClass:  s.next(),
	}
}
