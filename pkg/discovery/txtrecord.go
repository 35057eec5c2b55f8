package discovery

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodePeerTXT creates TXT records for a device.
func EncodePeerTXT(info *PeerInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	txt[TXTKeyDeviceID] = info.DeviceID
	txt[TXTKeyRole] = info.Role

	if info.DeviceName != "" {
		txt[TXTKeyDeviceName] = info.DeviceName
	}
	if info.NATSURL != "" {
		txt[TXTKeyNATSURL] = info.NATSURL
	}

	return txt
}

// DecodePeerTXT parses TXT records of a device.
func DecodePeerTXT(txt TXTRecordMap) (*PeerInfo, error) {
	info := &PeerInfo{}

	var ok bool
	info.DeviceID, ok = txt[TXTKeyDeviceID]
	if !ok || info.DeviceID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyDeviceID)
	}

	info.Role, ok = txt[TXTKeyRole]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyRole)
	}
	if info.Role != RolePrimary && info.Role != RoleCompanion {
		return nil, fmt.Errorf("%w: role %q", ErrInvalidTXTRecord, info.Role)
	}

	info.DeviceName = txt[TXTKeyDeviceName]
	info.NATSURL = txt[TXTKeyNATSURL]

	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to a slice of "key=value"
// strings, sorted by key.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	slices.Sort(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if found {
			txt[k] = v
		} else if k != "" {
			// Key without value (boolean flag)
			txt[k] = ""
		}
	}
	return txt
}

// ValidateTXTSize checks that the encoded records fit a single TXT record.
func ValidateTXTSize(strs []string) error {
	size := 0
	for _, s := range strs {
		size += len(s) + 1
	}
	if size > MaxTXTRecordSize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidTXTRecord, size)
	}
	return nil
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}

// URL returns the NATS URL to reach the service: the advertised one, or one
// built from the first address and the port.
func (s *PeerService) URL() (string, error) {
	if s.NATSURL != "" {
		return s.NATSURL, nil
	}
	if len(s.Addresses) == 0 {
		return "", fmt.Errorf("%w: no address for %s", ErrNotFound, s.InstanceName)
	}
	port := s.Port
	if port == 0 {
		port = DefaultPort
	}
	return "nats://" + net.JoinHostPort(s.Addresses[0], strconv.Itoa(int(port))), nil
}
