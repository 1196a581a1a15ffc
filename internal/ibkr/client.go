package ibkr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"ibmcp/internal/logging"
)

var (
	// ErrNotConnected is returned when an operation needs a live session.
	ErrNotConnected = errors.New("ibkr: not connected to gateway")
	// ErrConnectionLost is returned to waiters when the session drops.
	ErrConnectionLost = errors.New("ibkr: connection to gateway lost")
)

// GatewayError is an error message the gateway sent for a specific request.
type GatewayError struct {
	ReqID   int64
	Code    int
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("ibkr gateway error %d: %s", e.Code, e.Message)
}

// Options configures a gateway client.
type Options struct {
	Host     string
	Port     int
	ClientID int
	// MarketDataType selects live (1), frozen (2), delayed (3) or
	// delayed-frozen (4) data. Accounts without market data subscriptions
	// only get 3 and 4.
	MarketDataType int
	// ConnectTimeout bounds the handshake when the caller's context has no
	// deadline of its own.
	ConnectTimeout time.Duration
}

// Client is a session against a TWS / IB Gateway socket. A single reader
// goroutine pumps incoming messages and resolves pending requests; writes
// are serialized by the client mutex. All blocking operations honor their
// context.
type Client struct {
	opts Options

	// dial is replaced by tests to connect the client to a fake gateway.
	dial func(ctx context.Context) (net.Conn, error)

	mu              sync.Mutex
	conn            net.Conn
	connected       bool
	serverVersion   int
	connTime        string
	managedAccounts []string
	nextOrderID     int64
	nextReqID       int64
	mdTypeSent      bool

	ready chan struct{} // closed when the gateway delivers nextValidId
	done  chan struct{} // closed when the session ends

	pending       map[int64]*pending // keyed by reqId or orderId
	positionsReq  *pending
	openOrdersReq *pending
	timeReq       *pending
	accountsReq   *pending

	mdSubs map[int64]*mdSub  // reqId -> subscription
	quotes map[string]*Quote // contract key -> accumulated quote
}

type mdSub struct {
	contract Contract
	snapshot bool
}

// pending collects one request's responses until its end marker or error.
type pending struct {
	done chan struct{}
	err  error

	positions   []Position
	values      []AccountValue
	details     []ContractDetails
	orders      []OpenOrder
	status      *OrderStatus
	quote       *Quote
	currentTime time.Time
	accounts    []string
}

func newPending() *pending {
	return &pending{done: make(chan struct{})}
}

// finish must be called with the client mutex held.
func (p *pending) finish(err error) {
	select {
	case <-p.done:
	default:
		p.err = err
		close(p.done)
	}
}

// New creates a client; the session is established lazily via Connect.
func New(opts Options) *Client {
	if opts.MarketDataType == 0 {
		opts.MarketDataType = 4
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	c := &Client{
		opts:    opts,
		pending: make(map[int64]*pending),
		mdSubs:  make(map[int64]*mdSub),
		quotes:  make(map[string]*Quote),
		done:    make(chan struct{}),
		// Request ids share the pending table with gateway order ids;
		// starting them this high keeps the two ranges disjoint.
		nextReqID: 1 << 30,
	}
	close(c.done) // no session yet
	c.dial = func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)))
	}
	return c
}

// IsConnected reports whether the session is up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Status returns a snapshot of the session for status surfaces.
func (c *Client) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnectionStatus{
		Connected:       c.connected,
		Host:            c.opts.Host,
		Port:            c.opts.Port,
		ClientID:        c.opts.ClientID,
		ServerVersion:   c.serverVersion,
		ConnectionTime:  c.connTime,
		ManagedAccounts: append([]string(nil), c.managedAccounts...),
	}
}

// Connect dials the gateway, performs the v100+ handshake and startApi, and
// waits for the session to become ready (nextValidId received). It is a
// no-op when already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.ConnectTimeout)
		defer cancel()
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("ibkr: dial gateway: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	serverVersion, connTime, err := handshake(conn, c.opts.ClientID)
	if err != nil {
		conn.Close()
		return err
	}
	conn.SetDeadline(time.Time{})

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.serverVersion = serverVersion
	c.connTime = connTime
	c.mdTypeSent = false
	c.ready = make(chan struct{})
	c.done = make(chan struct{})
	ready, done := c.ready, c.done
	c.mu.Unlock()

	go c.readLoop(conn, done)

	logging.Info("Connected to IBKR gateway %s:%d (server version %d)", c.opts.Host, c.opts.Port, serverVersion)

	select {
	case <-ready:
		return nil
	case <-done:
		return ErrConnectionLost
	case <-ctx.Done():
		c.Close()
		return ctx.Err()
	}
}

// handshake runs the v100+ exchange: API signature, the pinned protocol
// version, then startApi with the client id. A gateway that answers with any
// other version is rejected since the wire layouts would not line up.
func handshake(conn net.Conn, clientID int) (serverVersion int, connTime string, err error) {
	versionRange := fmt.Sprintf("v%d..%d", clientProtocolVersion, clientProtocolVersion)
	if _, err = conn.Write([]byte(apiSignature)); err != nil {
		return 0, "", fmt.Errorf("ibkr: handshake write: %w", err)
	}
	if err = writeFrame(conn, []byte(versionRange)); err != nil {
		return 0, "", fmt.Errorf("ibkr: handshake write: %w", err)
	}

	payload, err := readFrame(conn)
	if err != nil {
		return 0, "", fmt.Errorf("ibkr: handshake read: %w", err)
	}
	fields := splitFields(payload)
	if len(fields) < 2 {
		return 0, "", fmt.Errorf("ibkr: malformed handshake response (%d fields)", len(fields))
	}
	serverVersion, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", fmt.Errorf("ibkr: malformed server version %q", fields[0])
	}
	if serverVersion != clientProtocolVersion {
		return 0, "", fmt.Errorf("ibkr: gateway negotiated protocol version %d, this client speaks %d", serverVersion, clientProtocolVersion)
	}

	startAPI := newMessage(outStartAPI)
	startAPI.addInt(2) // version
	startAPI.addInt(clientID)
	startAPI.addEmpty() // optional capabilities
	if _, err = conn.Write(startAPI.encode()); err != nil {
		return 0, "", fmt.Errorf("ibkr: startApi write: %w", err)
	}

	return serverVersion, fields[1], nil
}

func (c *Client) readLoop(conn net.Conn, done chan struct{}) {
	for {
		payload, err := readFrame(conn)
		if err != nil {
			c.teardown(err, done)
			return
		}
		fields := splitFields(payload)
		if len(fields) == 0 {
			continue
		}
		c.dispatch(fields)
	}
}

// teardown ends the session and wakes every waiter.
func (c *Client) teardown(cause error, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-done:
		return
	default:
	}

	if cause != nil && !errors.Is(cause, net.ErrClosed) {
		logging.Error("IBKR session ended: %v", cause)
	}

	c.connected = false
	if c.conn != nil {
		c.conn.Close()
	}
	for id, p := range c.pending {
		p.finish(ErrConnectionLost)
		delete(c.pending, id)
	}
	for _, p := range []*pending{c.positionsReq, c.openOrdersReq, c.timeReq, c.accountsReq} {
		if p != nil {
			p.finish(ErrConnectionLost)
		}
	}
	c.positionsReq, c.openOrdersReq, c.timeReq, c.accountsReq = nil, nil, nil, nil
	c.mdSubs = make(map[int64]*mdSub)
	close(done)
}

// Close disconnects from the gateway.
func (c *Client) Close() error {
	c.mu.Lock()
	done := c.done
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
	return nil
}

// send serializes one message onto the wire.
func (c *Client) send(b *messageBuilder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(b)
}

func (c *Client) sendLocked(b *messageBuilder) error {
	if !c.connected {
		return ErrNotConnected
	}
	if _, err := c.conn.Write(b.encode()); err != nil {
		return fmt.Errorf("ibkr: write: %w", err)
	}
	return nil
}

func (c *Client) takeReqID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextReqID++
	return c.nextReqID
}

// await blocks until the request completes, the context expires, or the
// session drops.
func (c *Client) await(ctx context.Context, p *pending) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	select {
	case <-p.done:
		return p.err
	case <-done:
		return ErrConnectionLost
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Positions requests the account's positions and gathers them until the
// gateway signals the end of the report. The subscription is cancelled
// before returning.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	p := newPending()
	c.mu.Lock()
	if c.positionsReq != nil {
		// Piggyback on the in-flight request.
		p = c.positionsReq
		c.mu.Unlock()
		if err := c.await(ctx, p); err != nil {
			return nil, err
		}
		return p.positions, nil
	}
	c.positionsReq = p
	err := c.sendLocked(newMessage(outReqPositions).addInt(1))
	if err != nil {
		c.positionsReq = nil
	}
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := c.await(ctx, p); err != nil {
		return nil, err
	}
	// Best effort: stop the position stream until the next request.
	if err := c.send(newMessage(outCancelPositions).addInt(1)); err != nil {
		logging.Debug("cancelPositions failed: %v", err)
	}
	return p.positions, nil
}

// DefaultAccountSummaryTags are requested when the caller names none.
var DefaultAccountSummaryTags = []string{
	"AccountType", "NetLiquidation", "TotalCashValue", "BuyingPower",
	"GrossPositionValue", "AvailableFunds", "ExcessLiquidity",
}

// AccountSummary requests summary values for all managed accounts.
func (c *Client) AccountSummary(ctx context.Context, tags []string) ([]AccountValue, error) {
	if len(tags) == 0 {
		tags = DefaultAccountSummaryTags
	}
	reqID := c.takeReqID()
	p := newPending()

	c.mu.Lock()
	c.pending[reqID] = p
	b := newMessage(outReqAccountSummary)
	b.addInt(1) // version
	b.addInt64(reqID)
	b.addString("All")
	b.addString(strings.Join(tags, ","))
	err := c.sendLocked(b)
	c.mu.Unlock()
	if err != nil {
		c.dropPending(reqID)
		return nil, err
	}

	if err := c.await(ctx, p); err != nil {
		c.dropPending(reqID)
		return nil, err
	}
	c.dropPending(reqID)

	cancel := newMessage(outCancelAccountSummary)
	cancel.addInt(1)
	cancel.addInt64(reqID)
	if err := c.send(cancel); err != nil {
		logging.Debug("cancelAccountSummary failed: %v", err)
	}
	return p.values, nil
}

// SnapshotMarketData requests a one-shot quote for the contract and waits
// for the snapshot to complete. The market data type configured on the
// client (delayed-frozen by default) is applied first.
func (c *Client) SnapshotMarketData(ctx context.Context, contract Contract) (*Quote, error) {
	reqID, p, err := c.requestMarketData(contract, true)
	if err != nil {
		return nil, err
	}
	if err := c.await(ctx, p); err != nil {
		c.dropPending(reqID)
		c.mu.Lock()
		delete(c.mdSubs, reqID)
		c.mu.Unlock()
		return nil, err
	}
	c.dropPending(reqID)
	return p.quote, nil
}

// StreamMarketData starts a streaming market data subscription; ticks
// accumulate in the quote cache readable via MarketData. The returned id
// cancels the stream through CancelMarketData.
func (c *Client) StreamMarketData(contract Contract) (int64, error) {
	reqID, _, err := c.requestMarketData(contract, false)
	return reqID, err
}

// CancelMarketData stops a streaming subscription.
func (c *Client) CancelMarketData(reqID int64) error {
	c.mu.Lock()
	delete(c.mdSubs, reqID)
	b := newMessage(outCancelMktData)
	b.addInt(2) // version
	b.addInt64(reqID)
	err := c.sendLocked(b)
	c.mu.Unlock()
	return err
}

// MarketData returns the accumulated quote for a contract, or nil when no
// data was ever requested for it.
func (c *Client) MarketData(contract Contract) *Quote {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.quotes[contractKey(contract)]
	if q == nil {
		return nil
	}
	return q.clone()
}

func (c *Client) requestMarketData(contract Contract, snapshot bool) (int64, *pending, error) {
	reqID := c.takeReqID()
	p := newPending()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.mdTypeSent {
		mdType := newMessage(outReqMarketDataType)
		mdType.addInt(1) // version
		mdType.addInt(c.opts.MarketDataType)
		if err := c.sendLocked(mdType); err != nil {
			return 0, nil, err
		}
		c.mdTypeSent = true
	}

	c.mdSubs[reqID] = &mdSub{contract: contract, snapshot: snapshot}
	key := contractKey(contract)
	if c.quotes[key] == nil {
		c.quotes[key] = newQuote(c.opts.MarketDataType)
	}
	if snapshot {
		c.pending[reqID] = p
	}

	b := newMessage(outReqMktData)
	b.addInt(11) // version
	b.addInt64(reqID)
	encodeContract(b, contract)
	b.addBool(false) // no delta-neutral underlying
	b.addEmpty()     // generic tick list
	b.addBool(snapshot)
	b.addBool(false) // regulatory snapshot
	b.addEmpty()     // market data options
	if err := c.sendLocked(b); err != nil {
		delete(c.mdSubs, reqID)
		delete(c.pending, reqID)
		return 0, nil, err
	}
	return reqID, p, nil
}

// ContractDetails resolves a contract description to the gateway's full
// contract records.
func (c *Client) ContractDetails(ctx context.Context, contract Contract) ([]ContractDetails, error) {
	reqID := c.takeReqID()
	p := newPending()

	c.mu.Lock()
	c.pending[reqID] = p
	b := newMessage(outReqContractData)
	b.addInt(8) // version
	b.addInt64(reqID)
	encodeContract(b, contract)
	b.addBool(false) // includeExpired
	b.addEmpty()     // secIdType
	b.addEmpty()     // secId
	err := c.sendLocked(b)
	c.mu.Unlock()
	if err != nil {
		c.dropPending(reqID)
		return nil, err
	}

	if err := c.await(ctx, p); err != nil {
		c.dropPending(reqID)
		return nil, err
	}
	c.dropPending(reqID)
	return p.details, nil
}

// PlaceOrder submits an order and waits for the gateway's first status
// report (or rejection) for it.
func (c *Client) PlaceOrder(ctx context.Context, contract Contract, order Order) (*OrderStatus, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	p := newPending()
	c.mu.Lock()
	if c.nextOrderID == 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("ibkr: no valid order id from gateway yet")
	}
	orderID := c.nextOrderID
	c.nextOrderID++
	c.pending[orderID] = p
	err := c.sendLocked(encodePlaceOrder(orderID, contract, &order))
	c.mu.Unlock()
	if err != nil {
		c.dropPending(orderID)
		return nil, err
	}

	if err := c.await(ctx, p); err != nil {
		c.dropPending(orderID)
		return nil, err
	}
	c.dropPending(orderID)
	return p.status, nil
}

// CancelOrder asks the gateway to cancel a working order. Confirmation
// arrives asynchronously as an orderStatus with status Cancelled.
func (c *Client) CancelOrder(ctx context.Context, orderID int64) error {
	return c.send(encodeCancelOrder(orderID))
}

// OpenOrders lists this client's working orders.
func (c *Client) OpenOrders(ctx context.Context) ([]OpenOrder, error) {
	p := newPending()
	c.mu.Lock()
	if c.openOrdersReq != nil {
		p = c.openOrdersReq
		c.mu.Unlock()
		if err := c.await(ctx, p); err != nil {
			return nil, err
		}
		return p.orders, nil
	}
	c.openOrdersReq = p
	err := c.sendLocked(newMessage(outReqOpenOrders).addInt(1))
	if err != nil {
		c.openOrdersReq = nil
	}
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := c.await(ctx, p); err != nil {
		return nil, err
	}
	return p.orders, nil
}

// CurrentTime asks the gateway for its wall clock.
func (c *Client) CurrentTime(ctx context.Context) (time.Time, error) {
	p := newPending()
	c.mu.Lock()
	if c.timeReq != nil {
		p = c.timeReq
		c.mu.Unlock()
		if err := c.await(ctx, p); err != nil {
			return time.Time{}, err
		}
		return p.currentTime, nil
	}
	c.timeReq = p
	err := c.sendLocked(newMessage(outReqCurrentTime).addInt(1))
	if err != nil {
		c.timeReq = nil
	}
	c.mu.Unlock()
	if err != nil {
		return time.Time{}, err
	}

	if err := c.await(ctx, p); err != nil {
		return time.Time{}, err
	}
	return p.currentTime, nil
}

// ManagedAccounts returns the account codes this session manages. The
// gateway pushes them right after connect; a fresh request is only made
// when the cache is empty.
func (c *Client) ManagedAccounts(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	if len(c.managedAccounts) > 0 {
		accounts := append([]string(nil), c.managedAccounts...)
		c.mu.Unlock()
		return accounts, nil
	}
	p := newPending()
	if c.accountsReq != nil {
		p = c.accountsReq
	} else {
		c.accountsReq = p
		if err := c.sendLocked(newMessage(outReqManagedAccts).addInt(1)); err != nil {
			c.accountsReq = nil
			c.mu.Unlock()
			return nil, err
		}
	}
	c.mu.Unlock()

	if err := c.await(ctx, p); err != nil {
		return nil, err
	}
	return p.accounts, nil
}

func (c *Client) dropPending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// contractKey identifies a contract in the quote cache: the conId when the
// gateway assigned one, otherwise the descriptive tuple.
func contractKey(c Contract) string {
	if c.ConID != 0 {
		return strconv.FormatInt(c.ConID, 10)
	}
	return strings.ToUpper(c.Symbol) + "|" + c.SecType + "|" + c.Exchange + "|" + c.Currency
}
