package endpoint

import (
	"fmt"

	"rpc-endpoint/message"
)

// Identity names one in-flight call. It is a comparable value and is used
// directly as the active-call table key. Uniqueness is the Endpoint's job.
type Identity struct {
	ChannelID uint32
	ServiceID uint32
	MethodID  uint32
	CallID    uint32
}

// IdentityOf returns the identity a packet is addressed to.
func IdentityOf(p *message.Packet) Identity {
	return Identity{
		ChannelID: p.ChannelID,
		ServiceID: p.ServiceID,
		MethodID:  p.MethodID,
		CallID:    p.CallID,
	}
}

func (id Identity) String() string {
	return fmt.Sprintf("channel=%d service=%08x method=%08x call=%d",
		id.ChannelID, id.ServiceID, id.MethodID, id.CallID)
}
