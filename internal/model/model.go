package model

import (
	"net/netip"
	"time"
)

// Code is a resolved protocol or ethertype number.
type Code int32

const (
	// UnknownProtocol marks a protocol name missing from the protocol table.
	UnknownProtocol Code = -1
	// UnknownEtherType marks an ethertype name missing from the ethertype table.
	UnknownEtherType Code = -1
)

// RawFlowRecord is one JSON line as written by the flow exporter.
// Post-NAT fields are pointers because the exporter omits them when no
// translation happened.
type RawFlowRecord struct {
	Type            string     `json:"type"`
	TimeReceivedNs  string     `json:"time_received_ns"`
	SequenceNum     uint64     `json:"sequence_num"`
	SamplingRate    uint64     `json:"sampling_rate"`
	SamplerAddress  string     `json:"sampler_address"`
	TimeFlowStartNs uint64     `json:"time_flow_start_ns"`
	TimeFlowEndNs   uint64     `json:"time_flow_end_ns"`
	Bytes           uint64     `json:"bytes"`
	Packets         uint64     `json:"packets"`
	SrcAddr         netip.Addr `json:"src_addr"`
	SrcNet          string     `json:"src_net"`
	DstAddr         netip.Addr `json:"dst_addr"`
	DstNet          string     `json:"dst_net"`
	EType           string     `json:"etype"`
	Proto           string     `json:"proto"`
	SrcPort         uint16     `json:"src_port"`
	DstPort         uint16     `json:"dst_port"`
	InIf            uint32     `json:"in_if"`
	OutIf           uint32     `json:"out_if"`
	SrcMac          string     `json:"src_mac"`
	DstMac          string     `json:"dst_mac"`
	IcmpName        string     `json:"icmp_name"`

	PostNatSrcIPv4Address    *string `json:"post_nat_src_ipv4_address,omitempty"`
	PostNatDstIPv4Address    *string `json:"post_nat_dst_ipv4_address,omitempty"`
	PostNaptSrcTransportPort *uint16 `json:"post_napt_src_transport_port,omitempty"`
	PostNaptDstTransportPort *uint16 `json:"post_napt_dst_transport_port,omitempty"`
}

// CanonicalFlowRecord is the normalized form of a flow that is written to the store.
type CanonicalFlowRecord struct {
	TimeReceived    time.Time
	SequenceNum     uint64
	TimeFlowStartNs uint64
	TimeFlowEndNs   uint64
	Bytes           uint64
	Packets         uint64
	SrcAddr         netip.Addr
	DstAddr         netip.Addr
	SrcPort         uint16
	DstPort         uint16
	EType           Code
	Proto           Code

	// Nil when the exporter reported no translation.
	PostNatSrcIPv4Address    *netip.Addr
	PostNatDstIPv4Address    *netip.Addr
	PostNaptSrcTransportPort *uint16
	PostNaptDstTransportPort *uint16
}

// Columns lists the destination table columns in the order Values returns them.
var Columns = []string{
	"time_received",
	"sequence_num",
	"time_flow_start_ns",
	"time_flow_end_ns",
	"bytes",
	"packets",
	"src_addr",
	"dst_addr",
	"src_port",
	"dst_port",
	"etype",
	"proto",
	"post_nat_src_ipv4_address",
	"post_nat_dst_ipv4_address",
	"post_napt_src_transport_port",
	"post_napt_dst_transport_port",
}

// Values returns the record as a row matching Columns. Optional fields are
// nil when absent so drivers write NULL. Counters are stored as int64; the
// normalizer rejects values that would not fit.
func (r *CanonicalFlowRecord) Values() []any {
	return []any{
		r.TimeReceived,
		int64(r.SequenceNum),
		int64(r.TimeFlowStartNs),
		int64(r.TimeFlowEndNs),
		int64(r.Bytes),
		int64(r.Packets),
		r.SrcAddr,
		r.DstAddr,
		int32(r.SrcPort),
		int32(r.DstPort),
		int32(r.EType),
		int32(r.Proto),
		optionalAddr(r.PostNatSrcIPv4Address),
		optionalAddr(r.PostNatDstIPv4Address),
		optionalPort(r.PostNaptSrcTransportPort),
		optionalPort(r.PostNaptDstTransportPort),
	}
}

func optionalAddr(a *netip.Addr) any {
	if a == nil {
		return nil
	}
	return *a
}

func optionalPort(p *uint16) any {
	if p == nil {
		return nil
	}
	return int32(*p)
}
