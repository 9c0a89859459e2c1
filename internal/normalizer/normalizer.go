// Package normalizer turns raw exported flow records into canonical records.
package normalizer

import (
	"Go2NetIngest/internal/decode"
	"Go2NetIngest/internal/enum"
	"Go2NetIngest/internal/model"
	"errors"
	"fmt"
	"math"
	"net/netip"

	"go.uber.org/zap"
)

// ErrMissingAddress is returned when src_addr or dst_addr is absent or empty.
var ErrMissingAddress = errors.New("missing flow address")

// ErrValueOutOfRange is returned for a counter above math.MaxInt64, which the
// signed 64-bit store columns cannot hold.
var ErrValueOutOfRange = errors.New("value out of signed 64-bit range")

// Tables bundles the lookup tables a Normalizer resolves names against.
type Tables struct {
	Protocols  *enum.Table
	EtherTypes *enum.Table
}

// BuildTables builds both embedded tables.
func BuildTables() (Tables, error) {
	protocols, err := enum.BuildProtocolTable()
	if err != nil {
		return Tables{}, err
	}
	ethertypes, err := enum.BuildEtherTypeTable()
	if err != nil {
		return Tables{}, err
	}
	return Tables{Protocols: protocols, EtherTypes: ethertypes}, nil
}

// Resolution reports which names fell back to a sentinel code.
type Resolution struct {
	UnknownProtocol  bool
	UnknownEtherType bool
}

// RejectError describes a record that could not be normalized. It carries
// the identifying fields of the flow so the source line can be located.
type RejectError struct {
	Field       string
	SequenceNum uint64
	SrcAddr     netip.Addr
	DstAddr     netip.Addr
	SrcPort     uint16
	DstPort     uint16
	Err         error
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("reject flow seq=%d %s -> %s: field %s: %v",
		e.SequenceNum,
		netip.AddrPortFrom(e.SrcAddr, e.SrcPort),
		netip.AddrPortFrom(e.DstAddr, e.DstPort),
		e.Field, e.Err)
}

func (e *RejectError) Unwrap() error { return e.Err }

// Normalizer resolves raw records against a pair of tables.
// It holds no mutable state and may be shared.
type Normalizer struct {
	tables Tables
	logger *zap.Logger
}

// New creates a Normalizer. A nil logger disables diagnostics.
func New(tables Tables, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{tables: tables, logger: logger}
}

// Normalize converts raw into a canonical record. Unknown protocol or
// ethertype names resolve to the sentinel codes and are reported through the
// returned Resolution. Malformed timestamps or post-NAT addresses, missing
// endpoint addresses and counters above math.MaxInt64 reject the record with
// a *RejectError.
func (n *Normalizer) Normalize(raw *model.RawFlowRecord) (*model.CanonicalFlowRecord, Resolution, error) {
	var res Resolution

	received, err := decode.Timestamp(raw.TimeReceivedNs)
	if err != nil {
		return nil, res, reject(raw, "time_received_ns", err)
	}
	if !raw.SrcAddr.IsValid() {
		return nil, res, reject(raw, "src_addr", ErrMissingAddress)
	}
	if !raw.DstAddr.IsValid() {
		return nil, res, reject(raw, "dst_addr", ErrMissingAddress)
	}
	if field := outOfRange(raw); field != "" {
		return nil, res, reject(raw, field, ErrValueOutOfRange)
	}

	postNatSrc, err := decode.OptionalHexIPv4(raw.PostNatSrcIPv4Address)
	if err != nil {
		return nil, res, reject(raw, "post_nat_src_ipv4_address", err)
	}
	postNatDst, err := decode.OptionalHexIPv4(raw.PostNatDstIPv4Address)
	if err != nil {
		return nil, res, reject(raw, "post_nat_dst_ipv4_address", err)
	}

	proto, ok := n.tables.Protocols.Lookup(raw.Proto)
	if !ok {
		proto = model.UnknownProtocol
		res.UnknownProtocol = true
		n.logger.Warn("unknown protocol name", FlowFields(raw, zap.String("proto", raw.Proto))...)
	}

	etype, ok := n.tables.EtherTypes.Lookup(raw.EType)
	if !ok {
		etype = model.UnknownEtherType
		res.UnknownEtherType = true
		n.logger.Warn("unknown ethertype name", FlowFields(raw, zap.String("etype", raw.EType))...)
	}

	return &model.CanonicalFlowRecord{
		TimeReceived:             received,
		SequenceNum:              raw.SequenceNum,
		TimeFlowStartNs:          raw.TimeFlowStartNs,
		TimeFlowEndNs:            raw.TimeFlowEndNs,
		Bytes:                    raw.Bytes,
		Packets:                  raw.Packets,
		SrcAddr:                  raw.SrcAddr,
		DstAddr:                  raw.DstAddr,
		SrcPort:                  raw.SrcPort,
		DstPort:                  raw.DstPort,
		EType:                    etype,
		Proto:                    proto,
		PostNatSrcIPv4Address:    postNatSrc,
		PostNatDstIPv4Address:    postNatDst,
		PostNaptSrcTransportPort: copyPort(raw.PostNaptSrcTransportPort),
		PostNaptDstTransportPort: copyPort(raw.PostNaptDstTransportPort),
	}, res, nil
}

func reject(raw *model.RawFlowRecord, field string, err error) *RejectError {
	return &RejectError{
		Field:       field,
		SequenceNum: raw.SequenceNum,
		SrcAddr:     raw.SrcAddr,
		DstAddr:     raw.DstAddr,
		SrcPort:     raw.SrcPort,
		DstPort:     raw.DstPort,
		Err:         err,
	}
}

// outOfRange names the first unsigned counter that does not fit an int64.
func outOfRange(raw *model.RawFlowRecord) string {
	counters := []struct {
		field string
		value uint64
	}{
		{"sequence_num", raw.SequenceNum},
		{"time_flow_start_ns", raw.TimeFlowStartNs},
		{"time_flow_end_ns", raw.TimeFlowEndNs},
		{"bytes", raw.Bytes},
		{"packets", raw.Packets},
	}
	for _, c := range counters {
		if c.value > math.MaxInt64 {
			return c.field
		}
	}
	return ""
}

// FlowFields returns extra followed by the fields that identify a flow in
// diagnostics.
func FlowFields(raw *model.RawFlowRecord, extra ...zap.Field) []zap.Field {
	return append(extra,
		zap.Uint64("sequence_num", raw.SequenceNum),
		zap.Stringer("src_addr", raw.SrcAddr),
		zap.Uint16("src_port", raw.SrcPort),
		zap.Stringer("dst_addr", raw.DstAddr),
		zap.Uint16("dst_port", raw.DstPort),
	)
}

func copyPort(p *uint16) *uint16 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
