package enum

import (
	"Go2NetIngest/internal/model"

	"github.com/google/gopacket/layers"
)

// LayerName returns gopacket's name for code in the table's registry, so the
// embedded registry can be compared against the decoder's naming.
func (t *Table) LayerName(code model.Code) string {
	if code < 0 || int64(code) > t.kind.maxCode() {
		return ""
	}
	switch t.kind {
	case KindProtocol:
		return layers.IPProtocol(uint8(code)).String()
	case KindEtherType:
		return layers.EthernetType(uint16(code)).String()
	}
	return ""
}
