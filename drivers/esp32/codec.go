package esp32

import (
	"encoding/binary"
	"errors"
	"net"
)

// Wire format: little-endian, strings carried as u16 length + bytes. Every
// encoder has a mirror decoder.

var (
	ErrShortBuffer   = errors.New("esp32: buffer too short")
	ErrFieldTooLarge = errors.New("esp32: field exceeds 65535 bytes")
)

// ---------------- primitives ----------------

func putU16(b []byte, v int) []byte { return binary.LittleEndian.AppendUint16(b, uint16(v)) }

func takeU16(data *[]byte) (uint16, error) {
	if len(*data) < 2 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint16(*data)
	*data = (*data)[2:]
	return v, nil
}

func takeBytes(data *[]byte, n int) ([]byte, error) {
	if len(*data) < n {
		return nil, ErrShortBuffer
	}
	v := (*data)[:n:n]
	*data = (*data)[n:]
	return v, nil
}

func putString(b []byte, s string) []byte {
	b = putU16(b, len(s))
	return append(b, s...)
}

func takeString(data *[]byte) (string, error) {
	n, err := takeU16(data)
	if err != nil {
		return "", err
	}
	v, err := takeBytes(data, int(n))
	return string(v), err
}

func checkLen(ss ...string) error {
	for _, s := range ss {
		if len(s) > 0xFFFF {
			return ErrFieldTooLarge
		}
	}
	return nil
}

// ---------------- WiFi credentials ----------------

// WiFiCredentials: [u16 ssidLen][u16 passwordLen][ssid][password].
type WiFiCredentials struct {
	NetworkName string
	Password    string
}

func EncodeWiFiCredentials(c WiFiCredentials) ([]byte, error) {
	if err := checkLen(c.NetworkName, c.Password); err != nil {
		return nil, err
	}
	b := make([]byte, 0, 4+len(c.NetworkName)+len(c.Password))
	b = putU16(b, len(c.NetworkName))
	b = putU16(b, len(c.Password))
	b = append(b, c.NetworkName...)
	return append(b, c.Password...), nil
}

func DecodeWiFiCredentials(data []byte) (WiFiCredentials, error) {
	nl, err := takeU16(&data)
	if err != nil {
		return WiFiCredentials{}, err
	}
	pl, err := takeU16(&data)
	if err != nil {
		return WiFiCredentials{}, err
	}
	name, err := takeBytes(&data, int(nl))
	if err != nil {
		return WiFiCredentials{}, err
	}
	pw, err := takeBytes(&data, int(pl))
	if err != nil {
		return WiFiCredentials{}, err
	}
	return WiFiCredentials{NetworkName: string(name), Password: string(pw)}, nil
}

// ---------------- antenna ----------------

// SetAntennaRequest: [antenna u8][persist u8].
type SetAntennaRequest struct {
	Antenna Antenna
	Persist bool
}

func EncodeSetAntennaRequest(r SetAntennaRequest) []byte {
	return []byte{byte(r.Antenna), boolByte(r.Persist)}
}

func DecodeSetAntennaRequest(data []byte) (SetAntennaRequest, error) {
	if len(data) < 2 {
		return SetAntennaRequest{}, ErrShortBuffer
	}
	return SetAntennaRequest{Antenna: Antenna(data[0]), Persist: data[1] != 0}, nil
}

// ---------------- bluetooth ----------------

// BTStackConfig: [u16 len][config].
type BTStackConfig struct {
	Config string
}

func EncodeBTStackConfig(c BTStackConfig) ([]byte, error) {
	if err := checkLen(c.Config); err != nil {
		return nil, err
	}
	return putString(make([]byte, 0, 2+len(c.Config)), c.Config), nil
}

func DecodeBTStackConfig(data []byte) (BTStackConfig, error) {
	s, err := takeString(&data)
	return BTStackConfig{Config: s}, err
}

// ---------------- access points ----------------

// AccessPoint record: [u16 ssidLen][authMode u8][channel u8][protocols u8]
// [rssi i8][ssid][bssid 6].
type AccessPoint struct {
	SSID      string
	BSSID     [6]byte
	AuthMode  AuthMode
	Channel   uint8
	Protocols uint8
	RSSI      int8
}

const apHeaderSize = 6

// EncodedSize is the record's length on the wire.
func (ap AccessPoint) EncodedSize() int { return apHeaderSize + len(ap.SSID) + len(ap.BSSID) }

func AppendAccessPoint(b []byte, ap AccessPoint) []byte {
	b = putU16(b, len(ap.SSID))
	b = append(b, byte(ap.AuthMode), ap.Channel, ap.Protocols, byte(ap.RSSI))
	b = append(b, ap.SSID...)
	return append(b, ap.BSSID[:]...)
}

// DecodeAccessPoint reads one record and advances data past it.
func DecodeAccessPoint(data *[]byte) (AccessPoint, error) {
	var ap AccessPoint
	n, err := takeU16(data)
	if err != nil {
		return ap, err
	}
	hdr, err := takeBytes(data, 4)
	if err != nil {
		return ap, err
	}
	ap.AuthMode, ap.Channel, ap.Protocols, ap.RSSI = AuthMode(hdr[0]), hdr[1], hdr[2], int8(hdr[3])
	ssid, err := takeBytes(data, int(n))
	if err != nil {
		return ap, err
	}
	ap.SSID = string(ssid)
	bssid, err := takeBytes(data, len(ap.BSSID))
	if err != nil {
		return ap, err
	}
	copy(ap.BSSID[:], bssid)
	return ap, nil
}

// EncodeAccessPointList: [u16 count][record]*.
func EncodeAccessPointList(aps []AccessPoint) ([]byte, error) {
	if len(aps) > 0xFFFF {
		return nil, ErrFieldTooLarge
	}
	size := 2
	for _, ap := range aps {
		if err := checkLen(ap.SSID); err != nil {
			return nil, err
		}
		size += ap.EncodedSize()
	}
	b := putU16(make([]byte, 0, size), len(aps))
	for _, ap := range aps {
		b = AppendAccessPoint(b, ap)
	}
	return b, nil
}

// DecodeAccessPointList returns records in wire order.
func DecodeAccessPointList(data []byte) ([]AccessPoint, error) {
	count, err := takeU16(&data)
	if err != nil {
		return nil, err
	}
	aps := make([]AccessPoint, 0, count)
	for i := 0; i < int(count); i++ {
		ap, err := DecodeAccessPoint(&data)
		if err != nil {
			return nil, err
		}
		aps = append(aps, ap)
	}
	return aps, nil
}

// FormatBSSID renders six lowercase colon-separated hex pairs.
func FormatBSSID(b [6]byte) string { return net.HardwareAddr(b[:]).String() }

// ---------------- connect result ----------------

// ConnectResult: [ip 4][mask 4][gateway 4], fixed offsets 0/4/8.
type ConnectResult struct {
	IPAddress  net.IP
	SubnetMask net.IP
	Gateway    net.IP
}

const connectResultSize = 12

func EncodeConnectResult(r ConnectResult) []byte {
	b := make([]byte, connectResultSize)
	copy(b[0:4], r.IPAddress.To4())
	copy(b[4:8], r.SubnetMask.To4())
	copy(b[8:12], r.Gateway.To4())
	return b
}

func DecodeConnectResult(data []byte) (ConnectResult, error) {
	if len(data) < connectResultSize {
		return ConnectResult{}, ErrShortBuffer
	}
	ip := func(off int) net.IP { return net.IPv4(data[off], data[off+1], data[off+2], data[off+3]).To4() }
	return ConnectResult{IPAddress: ip(0), SubnetMask: ip(4), Gateway: ip(8)}, nil
}

// ---------------- system configuration ----------------

// SystemConfiguration: [antenna u8][autoStart u8][autoReconnect u8]
// [getTimeAtStartup u8][mac 6][softApMac 6][ntpServer str][deviceName str]
// [defaultAccessPoint str].
type SystemConfiguration struct {
	Antenna                   Antenna
	AutomaticallyStartNetwork bool
	AutomaticallyReconnect    bool
	GetTimeAtStartup          bool
	BoardMacAddress           [6]byte
	SoftApMacAddress          [6]byte
	NtpServer                 string
	DeviceName                string
	DefaultAccessPoint        string
}

func EncodeSystemConfiguration(c SystemConfiguration) ([]byte, error) {
	if err := checkLen(c.NtpServer, c.DeviceName, c.DefaultAccessPoint); err != nil {
		return nil, err
	}
	b := make([]byte, 0, 16+6+len(c.NtpServer)+len(c.DeviceName)+len(c.DefaultAccessPoint))
	b = append(b, byte(c.Antenna), boolByte(c.AutomaticallyStartNetwork),
		boolByte(c.AutomaticallyReconnect), boolByte(c.GetTimeAtStartup))
	b = append(b, c.BoardMacAddress[:]...)
	b = append(b, c.SoftApMacAddress[:]...)
	b = putString(b, c.NtpServer)
	b = putString(b, c.DeviceName)
	return putString(b, c.DefaultAccessPoint), nil
}

func DecodeSystemConfiguration(data []byte) (SystemConfiguration, error) {
	var c SystemConfiguration
	flags, err := takeBytes(&data, 4)
	if err != nil {
		return c, err
	}
	c.Antenna = Antenna(flags[0])
	c.AutomaticallyStartNetwork = flags[1] == 1
	c.AutomaticallyReconnect = flags[2] == 1
	c.GetTimeAtStartup = flags[3] == 1

	mac, err := takeBytes(&data, 12)
	if err != nil {
		return c, err
	}
	copy(c.BoardMacAddress[:], mac[:6])
	copy(c.SoftApMacAddress[:], mac[6:])

	if c.NtpServer, err = takeString(&data); err != nil {
		return c, err
	}
	if c.DeviceName, err = takeString(&data); err != nil {
		return c, err
	}
	c.DefaultAccessPoint, err = takeString(&data)
	return c, err
}

// ---------------- battery ----------------

// Battery reading: [millivolts u32].
func EncodeBatteryLevel(mv uint32) []byte { return binary.LittleEndian.AppendUint32(nil, mv) }

func DecodeBatteryLevel(data []byte) (uint32, error) {
	if len(data) < 4 {
		return 0, ErrShortBuffer
	}
	return binary.LittleEndian.Uint32(data), nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
