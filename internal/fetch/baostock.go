// Package fetch retrieves daily market data from upstream providers: the
// BaoStock TCP service for China-listed assets and the Alpaca market-data
// API for US-listed assets.
package fetch

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ccyingfu/q-alpha/internal/domain"
)

const (
	clientVersion = "1.0.8"

	msgTypeLogin      = "10"
	msgTypeLogout     = "11"
	msgTypeQueryDaily = "20"

	// Wire framing: a fixed-size header followed by the body. The header is
	// the client version, a two-character message type, and a ten-digit
	// zero-padded body length. Response bodies are zlib-compressed; request
	// bodies are plain. Fields within a body are 0x01-delimited.
	headerLen = len(clientVersion) + 2 + 10

	fieldDelimiter = "\x01"

	queryPageSize = 10000
)

// BaoStockClient is a TCP client for the BaoStock data service. The session
// is owned by the client: callers Connect and Login once, issue queries, and
// Logout/Close when done. The protocol has no request correlation, so a
// session mutex serializes every exchange; concurrent callers queue.
type BaoStockClient struct {
	host    string
	port    int
	timeout time.Duration

	mu     sync.Mutex // guards conn, userID, and the wire exchange
	conn   net.Conn
	userID string
	log    *slog.Logger
}

// NewBaoStockClient creates a BaoStockClient targeting the given host and
// port. timeout bounds each network round trip.
func NewBaoStockClient(host string, port int, timeout time.Duration, log *slog.Logger) *BaoStockClient {
	return &BaoStockClient{
		host:    host,
		port:    port,
		timeout: timeout,
		log:     log.With("component", "baostock"),
	}
}

func (c *BaoStockClient) addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Connect establishes the TCP connection.
func (c *BaoStockClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr())
	if err != nil {
		return &ConnError{Host: c.addr(), Err: err}
	}
	c.conn = conn
	return nil
}

// Close shuts down the TCP connection.
func (c *BaoStockClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.userID = ""
	return err
}

// Login authenticates the session. BaoStock accepts anonymous logins.
func (c *BaoStockClient) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fields, err := c.roundTrip(ctx, msgTypeLogin, []string{"login", "anonymous", "anonymous"})
	if err != nil {
		return err
	}
	// Login response fields: method, error code, error message, user id.
	if len(fields) < 4 {
		return &AuthError{Code: "-1", Msg: "malformed login response"}
	}
	if fields[1] != "0" {
		return &AuthError{Code: fields[1], Msg: fields[2]}
	}
	c.userID = fields[3]
	c.log.Debug("logged in", "user_id", c.userID)
	return nil
}

// Logout terminates the authenticated session. The connection stays open.
func (c *BaoStockClient) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.userID == "" {
		return nil
	}
	fields, err := c.roundTrip(ctx, msgTypeLogout, []string{"logout", c.userID})
	if err != nil {
		return err
	}
	if len(fields) >= 2 && fields[1] != "0" {
		c.log.Warn("logout rejected", "code", fields[1])
	}
	c.userID = ""
	return nil
}

// QueryDailyBars retrieves daily OHLCV bars for an exchange-prefixed code
// within [start, end] ("2006-01-02" strings), paginating until the upstream
// reports no further rows. adjustFlag selects price adjustment.
func (c *BaoStockClient) QueryDailyBars(ctx context.Context, code, start, end, adjustFlag string) ([]domain.Bar, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.userID == "" {
		return nil, &AuthError{Code: "-1", Msg: "not logged in"}
	}

	bare := code
	if i := strings.Index(code, "."); i >= 0 {
		bare = code[i+1:]
	}

	var bars []domain.Bar
	for page := 1; ; page++ {
		fields, err := c.roundTrip(ctx, msgTypeQueryDaily, []string{
			"query_history_k_data",
			c.userID,
			strconv.Itoa(page),
			strconv.Itoa(queryPageSize),
			code,
			"date,open,high,low,close,volume",
			start,
			end,
			"d",
			adjustFlag,
		})
		if err != nil {
			return nil, err
		}
		// Query response fields: method, error code, error message, current
		// page, page size, row data.
		if len(fields) < 6 {
			return nil, &QueryError{Code: "-1", Msg: "malformed query response"}
		}
		if fields[1] != "0" {
			return nil, &QueryError{Code: fields[1], Msg: fields[2]}
		}

		pageBars, err := parseDailyRows(bare, fields[5])
		if err != nil {
			return nil, err
		}
		bars = append(bars, pageBars...)
		if len(pageBars) < queryPageSize {
			break
		}
	}
	return bars, nil
}

// roundTrip writes one request and reads its response. Callers must hold mu
// for the whole exchange; the wire has no request correlation.
func (c *BaoStockClient) roundTrip(ctx context.Context, msgType string, fields []string) ([]string, error) {
	if c.conn == nil {
		return nil, &ConnError{Host: c.addr(), Err: fmt.Errorf("not connected")}
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, &ConnError{Host: c.addr(), Err: err}
	}

	if _, err := c.conn.Write(encodeMessage(msgType, fields)); err != nil {
		return nil, &ConnError{Host: c.addr(), Err: err}
	}

	_, respFields, err := readMessage(c.conn)
	if err != nil {
		return nil, &ConnError{Host: c.addr(), Err: err}
	}
	return respFields, nil
}

// encodeMessage frames a request: header plus a plain 0x01-delimited body.
func encodeMessage(msgType string, fields []string) []byte {
	body := strings.Join(fields, fieldDelimiter)
	header := fmt.Sprintf("%s%s%010d", clientVersion, msgType, len(body))
	return []byte(header + body)
}

// readMessage reads one framed response: header, then a zlib-compressed body
// of the advertised length.
func readMessage(r io.Reader) (msgType string, fields []string, err error) {
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return "", nil, fmt.Errorf("reading header: %w", err)
	}
	msgType = string(header[len(clientVersion) : len(clientVersion)+2])
	bodyLen, err := strconv.Atoi(string(header[len(clientVersion)+2:]))
	if err != nil {
		return "", nil, fmt.Errorf("parsing body length: %w", err)
	}

	compressed := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return "", nil, fmt.Errorf("reading body: %w", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return "", nil, fmt.Errorf("decompressing body: %w", err)
	}
	defer zr.Close()
	body, err := io.ReadAll(zr)
	if err != nil {
		return "", nil, fmt.Errorf("decompressing body: %w", err)
	}

	return msgType, strings.Split(string(body), fieldDelimiter), nil
}

// parseDailyRows converts the tabular payload of a daily-bar query into
// bars. Rows are ";"-separated, columns ","-separated in the order
// date,open,high,low,close,volume. Rows with unparseable numbers (suspended
// days report empty prices) are skipped.
func parseDailyRows(code, data string) ([]domain.Bar, error) {
	if data == "" {
		return nil, nil
	}
	var bars []domain.Bar
	for _, row := range strings.Split(data, ";") {
		if row == "" {
			continue
		}
		cols := strings.Split(row, ",")
		if len(cols) != 6 {
			return nil, &QueryError{Code: "-1", Msg: fmt.Sprintf("malformed row %q", row)}
		}
		date, err := domain.ParseDate(cols[0])
		if err != nil {
			return nil, &QueryError{Code: "-1", Msg: fmt.Sprintf("bad date %q", cols[0])}
		}
		vals := make([]float64, 5)
		ok := true
		for i, s := range cols[1:] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		bars = append(bars, domain.Bar{
			Code:   code,
			Date:   date,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return bars, nil
}
