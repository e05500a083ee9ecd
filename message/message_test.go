package message

import (
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestTerminalTypes(t *testing.T) {
	cases := []struct {
		typ      PacketType
		terminal bool
		server   bool
	}{
		{PacketRequest, false, false},
		{PacketClientStream, false, false},
		{PacketClientRequestCompletion, false, false},
		{PacketClientError, true, false},
		{PacketResponse, true, true},
		{PacketServerError, true, true},
		{PacketServerStream, false, true},
	}

	for _, tc := range cases {
		if got := tc.typ.IsTerminal(); got != tc.terminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", tc.typ, got, tc.terminal)
		}
		if got := tc.typ.IsServerPacket(); got != tc.server {
			t.Errorf("%s.IsServerPacket() = %v, want %v", tc.typ, got, tc.server)
		}
		if !tc.typ.Valid() {
			t.Errorf("%s should be valid", tc.typ)
		}
	}
}

func TestUnknownPacketType(t *testing.T) {
	typ := PacketType(6) // deprecated CANCEL, no longer sent
	if typ.Valid() {
		t.Fatal("expect type 6 to be invalid")
	}
	if typ.String() != "PacketType(6)" {
		t.Fatalf("unexpected name %q", typ.String())
	}
}

func TestPacketString(t *testing.T) {
	p := &Packet{
		Type:      PacketClientError,
		ChannelID: 555,
		CallID:    1,
		Status:    codes.Canceled,
	}
	s := p.String()
	if !strings.HasPrefix(s, "CLIENT_ERROR{channel=555") {
		t.Fatalf("unexpected packet string %q", s)
	}
	if !strings.Contains(s, "status=Canceled") {
		t.Fatalf("status missing from %q", s)
	}
}
