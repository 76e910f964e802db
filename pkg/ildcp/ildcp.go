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

// Package ildcp implements the Interledger Dynamic Configuration Protocol,
// by which a child account learns its assigned address and asset from its
// parent. The request is a Prepare to peer.config with an empty payload;
// the response rides in the Fulfill data.
package ildcp

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/interledger/connector/pkg/ilp"
	"github.com/interledger/connector/pkg/private/serrors"
)

// Destination is the reserved address of IL-DCP requests.
const Destination ilp.Address = "peer.config"

// Response carries the configuration a parent assigns to a child.
type Response struct {
	ClientAddress ilp.Address
	AssetScale    uint8
	AssetCode     string
}

// Encode serializes the response.
func (r *Response) Encode() []byte {
	buf := &bytes.Buffer{}
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(r.ClientAddress)))
	buf.Write(l[:])
	buf.WriteString(string(r.ClientAddress))
	buf.WriteByte(r.AssetScale)
	binary.BigEndian.PutUint16(l[:], uint16(len(r.AssetCode)))
	buf.Write(l[:])
	buf.WriteString(r.AssetCode)
	return buf.Bytes()
}

// DecodeResponse parses the binary form of a response.
func DecodeResponse(data []byte) (*Response, error) {
	rd := bytes.NewReader(data)
	addr, err := readString(rd)
	if err != nil {
		return nil, err
	}
	resp := &Response{}
	if resp.ClientAddress, err = ilp.ParseAddress(addr); err != nil {
		return nil, serrors.Wrap("parsing client address", err)
	}
	if resp.AssetScale, err = rd.ReadByte(); err != nil {
		return nil, serrors.Wrap("reading asset scale", err)
	}
	if resp.AssetCode, err = readString(rd); err != nil {
		return nil, err
	}
	return resp, nil
}

// NewRequestPrepare builds the IL-DCP request packet. The request carries no
// payload and is locked by the peer-protocol condition.
func NewRequestPrepare(expiry time.Time) *ilp.Prepare {
	return &ilp.Prepare{
		Destination:        Destination,
		ExecutionCondition: ilp.PeerProtocolCondition,
		ExpiresAt:          expiry,
	}
}

// NewResponseFulfill wraps the encoded response in a Fulfill carrying the
// peer-protocol preimage.
func NewResponseFulfill(r *Response) *ilp.Fulfill {
	return &ilp.Fulfill{
		Fulfillment: ilp.PeerProtocolFulfillment,
		Data:        r.Encode(),
	}
}

func readString(r *bytes.Reader) (string, error) {
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
