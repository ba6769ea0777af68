// Copyright 2025 Sonic Labs
// This file is part of Aida Testing Infrastructure for Sonic
//
// Aida is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Aida is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Aida. If not, see <http://www.gnu.org/licenses/>.

package rpc

//go:generate mockgen -source subscription.go -destination subscription_mock.go -package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/0xsoniclabs/tryruntime/chain"
	"github.com/gorilla/websocket"
)

const (
	subscribeMethod    = "chain_subscribeFinalizedHeads"
	unsubscribeMethod  = "chain_unsubscribeFinalizedHeads"
	notificationMethod = "chain_finalizedHead"

	wsMessageSizeLimit = 32 * 1024 * 1024
	wsWriteTimeout     = 5 * time.Second
	subscriptionBuffer = 16
)

// HeaderStream is an ordered, unbounded sequence of finalized headers.
type HeaderStream interface {
	// Next blocks until the next header arrives. It returns io.EOF once
	// the stream has ended.
	Next(ctx context.Context) (*chain.Header, error)
	// Close ends the stream.
	Close() error
}

type jsonError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *jsonError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

type jsonrpcMessage struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonError      `json:"error,omitempty"`
}

type subscriptionParams struct {
	Subscription json.RawMessage `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type streamItem struct {
	header *chain.Header
	err    error
}

// HeaderSubscription receives finalized heads over a websocket connection.
type HeaderSubscription struct {
	conn  *websocket.Conn
	id    json.RawMessage
	items chan streamItem
	done  chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// SubscribeFinalizedHeads opens a websocket connection to uri and
// subscribes to its finalized heads.
func SubscribeFinalizedHeads(ctx context.Context, uri string) (*HeaderSubscription, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s; %w", uri, err)
	}
	conn.SetReadLimit(wsMessageSizeLimit)

	s := &HeaderSubscription{
		conn:  conn,
		items: make(chan streamItem, subscriptionBuffer),
		done:  make(chan struct{}),
	}
	pending, err := s.subscribe(ctx)
	if err != nil {
		return nil, errors.Join(err, conn.Close())
	}
	go s.readLoop(pending)
	return s, nil
}

// subscribe sends the subscription request and waits for its response.
// Notifications arriving before the response are returned.
func (s *HeaderSubscription) subscribe(ctx context.Context) ([]jsonrpcMessage, error) {
	if err := s.write(jsonrpcMessage{Version: "2.0", ID: json.RawMessage("1"), Method: subscribeMethod, Params: json.RawMessage("[]")}); err != nil {
		return nil, fmt.Errorf("cannot send %s; %w", subscribeMethod, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
		defer s.conn.SetReadDeadline(time.Time{})
	}

	var pending []jsonrpcMessage
	for {
		var msg jsonrpcMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return nil, fmt.Errorf("no response to %s; %w", subscribeMethod, err)
		}
		if string(msg.ID) != "1" {
			pending = append(pending, msg)
			continue
		}
		if msg.Error != nil {
			return nil, fmt.Errorf("%s failed; %w", subscribeMethod, msg.Error)
		}
		if isNull(msg.Result) {
			return nil, fmt.Errorf("%s returned no subscription id", subscribeMethod)
		}
		s.id = msg.Result
		return pending, nil
	}
}

func (s *HeaderSubscription) readLoop(pending []jsonrpcMessage) {
	defer close(s.items)
	for _, msg := range pending {
		if !s.deliver(msg) {
			return
		}
	}
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg jsonrpcMessage
		if err = json.Unmarshal(data, &msg); err != nil {
			if !s.push(streamItem{err: fmt.Errorf("malformed message; %w", err)}) {
				return
			}
			continue
		}
		if !s.deliver(msg) {
			return
		}
	}
}

// deliver forwards a notification of this subscription, other messages
// are dropped. It returns false once the subscription is closed.
func (s *HeaderSubscription) deliver(msg jsonrpcMessage) bool {
	if msg.Method != notificationMethod {
		return true
	}
	var params subscriptionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.push(streamItem{err: fmt.Errorf("malformed notification; %w", err)})
	}
	if string(params.Subscription) != string(s.id) {
		return true
	}
	var header chain.Header
	if err := json.Unmarshal(params.Result, &header); err != nil {
		return s.push(streamItem{err: &FormatMismatchError{Method: notificationMethod, Err: err}})
	}
	return s.push(streamItem{header: &header})
}

func (s *HeaderSubscription) push(item streamItem) bool {
	select {
	case s.items <- item:
		return true
	case <-s.done:
		return false
	}
}

// Next returns the next finalized header.
func (s *HeaderSubscription) Next(ctx context.Context) (*chain.Header, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case item, ok := <-s.items:
		if !ok {
			return nil, io.EOF
		}
		return item.header, item.err
	}
}

// Close unsubscribes and closes the connection.
func (s *HeaderSubscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		params, _ := json.Marshal([]json.RawMessage{s.id})
		// the node may already be gone
		_ = s.write(jsonrpcMessage{Version: "2.0", ID: json.RawMessage("2"), Method: unsubscribeMethod, Params: params})
		_ = s.writeControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *HeaderSubscription) write(msg jsonrpcMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteJSON(msg)
}

func (s *HeaderSubscription) writeControl(messageType int, data []byte) error {
	return s.conn.WriteControl(messageType, data, time.Now().Add(wsWriteTimeout))
}
