// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package connector

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// writeWait bounds a single WebSocket write. A client that cannot drain
// a small state payload in this window is disconnected rather than
// buffered unboundedly.
const writeWait = 5 * time.Second

// broadcaster fans out coalesced change signals to subscribers, the same
// shape as the store's Watch. Session and OTP changes flow through here;
// queue changes come from the store directly.
type broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan struct{})}
}

// subscribe returns a signal channel and its cancel func.
func (b *broadcaster) subscribe() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan struct{}, 1)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// notify signals every subscriber without blocking; a pending signal
// coalesces with the new one.
func (b *broadcaster) notify() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// upgrader accepts any origin: the connector binds to localhost and auth
// is the shared token, not the Origin header.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleStateWS streams the /state payload: once on connect, then after
// every queue, session, or OTP change, coalesced.
//
// Auth ran in middleware (via ?token= — browsers cannot set headers on
// WebSocket dials). Failed writes close the connection; reads are
// drained only to observe the close.
func (s *Service) handleStateWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error.
		s.log.Warn("websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	storeCh, cancelStore := s.store.Watch()
	defer cancelStore()
	sessionCh, cancelSession := s.stateChanged.subscribe()
	defer cancelSession()

	// Reader exists only to detect the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	push := func() bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(s.statePayload()); err != nil {
			s.log.Info("disconnecting slow or closed state stream client", "error", err.Error())
			return false
		}
		return true
	}

	if !push() {
		return
	}
	for {
		select {
		case <-storeCh:
		case <-sessionCh:
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
		if !push() {
			return
		}
	}
}
