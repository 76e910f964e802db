// Copyright 2026 Interledger Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ccp

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/private/serrors"
)

// Wire format: big-endian, a one-byte version tag, fixed-width integers and
// length-prefixed variable fields. Strings and lists are prefixed with a
// uint16 length.

const codecVersion = 1

const maxListLen = 1 << 12

func putString(buf *bytes.Buffer, s string) {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(s)))
	buf.Write(l[:])
	buf.WriteString(s)
}

func getString(r *bytes.Reader) (string, error) {
	var l uint16
	if err := binary.Read(r, binary.BigEndian, &l); err != nil {
		return "", serrors.Wrap("reading string length", err)
	}
	b := make([]byte, l)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", serrors.Wrap("reading string body", err)
	}
	return string(b), nil
}

func putLen(buf *bytes.Buffer, n int) {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(n))
	buf.Write(l[:])
}

func getLen(r *bytes.Reader) (int, error) {
	var l uint16
	if err := binary.Read(r, binary.BigEndian, &l); err != nil {
		return 0, serrors.Wrap("reading list length", err)
	}
	if int(l) > maxListLen {
		return 0, serrors.New("list too long", "len", l)
	}
	return int(l), nil
}

// Encode serializes the control request.
func (m *RouteControlRequest) Encode() []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(codecVersion)
	buf.WriteByte(byte(m.Mode))
	buf.Write(m.LastKnownRoutingTableID[:])
	var epoch [8]byte
	binary.BigEndian.PutUint64(epoch[:], m.LastKnownEpoch)
	buf.Write(epoch[:])
	putLen(buf, len(m.Features))
	for _, f := range m.Features {
		putString(buf, f)
	}
	return buf.Bytes()
}

// DecodeRouteControlRequest parses the binary form of a control request.
func DecodeRouteControlRequest(data []byte) (*RouteControlRequest, error) {
	r := bytes.NewReader(data)
	version, err := r.ReadByte()
	if err != nil || version != codecVersion {
		return nil, serrors.New("unsupported route control version", "version", version)
	}
	modeByte, err := r.ReadByte()
	if err != nil {
		return nil, serrors.Wrap("reading mode", err)
	}
	if Mode(modeByte) != ModeIdle && Mode(modeByte) != ModeSync {
		return nil, serrors.New("unknown mode", "mode", modeByte)
	}
	m := &RouteControlRequest{Mode: Mode(modeByte)}
	if _, err := io.ReadFull(r, m.LastKnownRoutingTableID[:]); err != nil {
		return nil, serrors.Wrap("reading routing table id", err)
	}
	if err := binary.Read(r, binary.BigEndian, &m.LastKnownEpoch); err != nil {
		return nil, serrors.Wrap("reading epoch", err)
	}
	n, err := getLen(r)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		f, err := getString(r)
		if err != nil {
			return nil, err
		}
		m.Features = append(m.Features, f)
	}
	return m, nil
}

// Encode serializes the update request.
func (m *RouteUpdateRequest) Encode() []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(codecVersion)
	putString(buf, string(m.Speaker))
	buf.Write(m.RoutingTableID[:])
	for _, v := range []uint64{
		m.CurrentEpochIndex, m.FromEpochIndex, m.ToEpochIndex,
		uint64(m.HoldDownTime / time.Millisecond),
	} {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v)
		buf.Write(b[:])
	}
	putLen(buf, len(m.NewRoutes))
	for _, route := range m.NewRoutes {
		putString(buf, string(route.Prefix))
		putLen(buf, len(route.Path))
		for _, hop := range route.Path {
			putString(buf, string(hop))
		}
		buf.Write(route.Auth[:])
	}
	putLen(buf, len(m.WithdrawnRoutePrefixes))
	for _, p := range m.WithdrawnRoutePrefixes {
		putString(buf, string(p))
	}
	return buf.Bytes()
}

// DecodeRouteUpdateRequest parses the binary form of an update request.
func DecodeRouteUpdateRequest(data []byte) (*RouteUpdateRequest, error) {
	r := bytes.NewReader(data)
	version, err := r.ReadByte()
	if err != nil || version != codecVersion {
		return nil, serrors.New("unsupported route update version", "version", version)
	}
	m := &RouteUpdateRequest{}
	speaker, err := getString(r)
	if err != nil {
		return nil, err
	}
	if m.Speaker, err = ilp.ParseAddress(speaker); err != nil {
		return nil, serrors.Wrap("parsing speaker", err)
	}
	if _, err := io.ReadFull(r, m.RoutingTableID[:]); err != nil {
		return nil, serrors.Wrap("reading routing table id", err)
	}
	var holdDownMs uint64
	for _, dst := range []*uint64{
		&m.CurrentEpochIndex, &m.FromEpochIndex, &m.ToEpochIndex, &holdDownMs,
	} {
		if err := binary.Read(r, binary.BigEndian, dst); err != nil {
			return nil, serrors.Wrap("reading epoch indices", err)
		}
	}
	m.HoldDownTime = time.Duration(holdDownMs) * time.Millisecond
	if m.FromEpochIndex > m.ToEpochIndex {
		return nil, serrors.New("invalid epoch range",
			"from", m.FromEpochIndex, "to", m.ToEpochIndex)
	}
	numRoutes, err := getLen(r)
	if err != nil {
		return nil, err
	}
	for i := 0; i < numRoutes; i++ {
		route, err := decodeRoute(r)
		if err != nil {
			return nil, err
		}
		m.NewRoutes = append(m.NewRoutes, route)
	}
	numWithdrawn, err := getLen(r)
	if err != nil {
		return nil, err
	}
	for i := 0; i < numWithdrawn; i++ {
		s, err := getString(r)
		if err != nil {
			return nil, err
		}
		p, err := ilp.ParsePrefix(s)
		if err != nil {
			return nil, serrors.Wrap("parsing withdrawn prefix", err)
		}
		m.WithdrawnRoutePrefixes = append(m.WithdrawnRoutePrefixes, p)
	}
	return m, nil
}

func decodeRoute(r *bytes.Reader) (Route, error) {
	var route Route
	s, err := getString(r)
	if err != nil {
		return route, err
	}
	if route.Prefix, err = ilp.ParsePrefix(s); err != nil {
		return route, serrors.Wrap("parsing route prefix", err)
	}
	pathLen, err := getLen(r)
	if err != nil {
		return route, err
	}
	for i := 0; i < pathLen; i++ {
		hop, err := getString(r)
		if err != nil {
			return route, err
		}
		addr, err := ilp.ParseAddress(hop)
		if err != nil {
			return route, serrors.Wrap("parsing path hop", err)
		}
		route.Path = append(route.Path, addr)
	}
	if _, err := io.ReadFull(r, route.Auth[:]); err != nil {
		return route, serrors.Wrap("reading auth", err)
	}
	return route, nil
}

// NewRouteControlPrepare wraps an encoded control request in a Prepare
// packet locked by the peer-protocol condition.
func NewRouteControlPrepare(m *RouteControlRequest, expiry time.Time) *ilp.Prepare {
	return &ilp.Prepare{
		Destination:        RouteControlDestination,
		ExecutionCondition: ilp.PeerProtocolCondition,
		ExpiresAt:          expiry,
		Data:               m.Encode(),
	}
}

// NewRouteUpdatePrepare wraps an encoded update request in a Prepare packet
// locked by the peer-protocol condition.
func NewRouteUpdatePrepare(m *RouteUpdateRequest, expiry time.Time) *ilp.Prepare {
	return &ilp.Prepare{
		Destination:        RouteUpdateDestination,
		ExecutionCondition: ilp.PeerProtocolCondition,
		ExpiresAt:          expiry,
		Data:               m.Encode(),
	}
}
