package udpio

import "net"

// BindMulticast joins group:port on iface (nil selects the system
// default multicast-capable interface), for makeUdpMulticastReceiver.
// This is the one case spec.md's unicast net.ListenUDP bind (used
// throughout the rest of this package) doesn't cover, since joining a
// multicast group requires net.ListenMulticastUDP instead.
func BindMulticast(iface *net.Interface, group net.IP, port int) (*net.UDPConn, error) {
	return net.ListenMulticastUDP("udp", iface, &net.UDPAddr{IP: group, Port: port})
}
