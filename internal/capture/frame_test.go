package capture

import (
	"net"
	"testing"

	"github.com/dreadl0ck/gopacket"
	"github.com/dreadl0ck/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTCPPacket(t *testing.T, srcIP, dstIP string, srcPort, dstPort uint16, payload []byte) gopacket.Packet {
	t.Helper()

	eth := &layers.Ethernet{EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(srcIP).To4(),
		DstIP:    net.ParseIP(dstIP).To4(),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     1,
		Window:  1024,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)))

	return gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func TestNormalizeExtractsTCPFrame(t *testing.T) {
	pkt := buildTCPPacket(t, "10.0.0.1", "10.0.0.2", 5555, 16020, []byte("payload"))

	f, ok := Normalize(pkt)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", f.SrcAddr)
	assert.Equal(t, uint16(5555), f.SrcPort)
	assert.Equal(t, "10.0.0.2", f.DstAddr)
	assert.Equal(t, uint16(16020), f.DstPort)
	assert.Equal(t, []byte("payload"), f.Payload)
}

func TestNormalizeRejectsEmptyPayload(t *testing.T) {
	pkt := buildTCPPacket(t, "10.0.0.1", "10.0.0.2", 5555, 16020, nil)
	_, ok := Normalize(pkt)
	assert.False(t, ok)
}

func TestFrameHasPortAndToServer(t *testing.T) {
	ports := map[int]struct{}{16020: {}, 60020: {}}

	f := Frame{SrcAddr: "10.0.0.1", SrcPort: 5555, DstAddr: "10.0.0.2", DstPort: 16020}
	assert.True(t, f.HasPort(ports))
	assert.True(t, f.ToServer(ports))

	reverse := Frame{SrcAddr: "10.0.0.2", SrcPort: 16020, DstAddr: "10.0.0.1", DstPort: 5555}
	assert.True(t, reverse.HasPort(ports))
	assert.False(t, reverse.ToServer(ports))

	unrelated := Frame{SrcAddr: "10.0.0.1", SrcPort: 111, DstAddr: "10.0.0.2", DstPort: 222}
	assert.False(t, unrelated.HasPort(ports))
}
