// Package pcapsource recovers a raw PD0 byte stream from a packet capture
// of an instrument streaming ensembles over UDP.
package pcapsource

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Stats counts what ExtractUDP saw in a capture.
type Stats struct {
	Packets int `json:"packets"`
	UDP     int `json:"udp"`
	Matched int `json:"matched"`
	Bytes   int `json:"bytes"`
}

// ExtractUDP reads a pcap stream and concatenates, in capture order, the
// payloads of UDP packets whose source or destination port is port. A port
// of 0 matches every UDP packet.
func ExtractUDP(r io.Reader, port int) ([]byte, Stats, error) {
	var stats Stats
	if port < 0 || port > 65535 {
		return nil, stats, fmt.Errorf("invalid UDP port %d", port)
	}

	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read pcap header: %w", err)
	}

	packetSource := gopacket.NewPacketSource(reader, reader.LinkType())
	var out []byte
	for {
		packet, err := packetSource.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("failed to read packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok {
			continue
		}
		stats.UDP++
		if port != 0 && int(udp.SrcPort) != port && int(udp.DstPort) != port {
			continue
		}
		if len(udp.Payload) == 0 {
			continue
		}
		stats.Matched++
		stats.Bytes += len(udp.Payload)
		out = append(out, udp.Payload...)
	}
	return out, stats, nil
}

// endpoint is one side of the synthetic UDP flow written by WriteUDP.
type endpoint struct {
	MAC  net.HardwareAddr
	IP   net.IP
	Port int
}

var (
	defaultSrc = endpoint{
		MAC:  net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		IP:   net.IPv4(192, 168, 0, 10),
		Port: 1037,
	}
	defaultDst = endpoint{
		MAC:  net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		IP:   net.IPv4(192, 168, 0, 1),
		Port: 1037,
	}
)

const snaplen = 65536

// WriteUDP writes an Ethernet pcap holding one UDP datagram per payload,
// sent to dstPort and spaced interval apart from start.
func WriteUDP(w io.Writer, dstPort int, payloads [][]byte, start time.Time, interval time.Duration) error {
	dst := defaultDst
	dst.Port = dstPort

	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snaplen, layers.LinkTypeEthernet); err != nil {
		return fmt.Errorf("failed to write pcap header: %w", err)
	}

	for i, p := range payloads {
		frame, err := udpFrame(defaultSrc, dst, p)
		if err != nil {
			return fmt.Errorf("packet %d: %w", i, err)
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * interval),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		if err := pw.WritePacket(ci, frame); err != nil {
			return fmt.Errorf("failed to write packet %d: %w", i, err)
		}
	}
	return nil
}

func udpFrame(src, dst endpoint, payload []byte) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       src.MAC,
		DstMAC:       dst.MAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    src.IP.To4(),
		DstIP:    dst.IP.To4(),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(src.Port),
		DstPort: layers.UDPPort(dst.Port),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
