package discovery

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/mash-protocol/tagsched/pkg/version"
)

// Service identification.
const (
	ServiceType = "_tagsched._tcp"
	Domain      = "local."
	DefaultPort = 8090
)

// TXT record keys.
const (
	TXTKeyTags    = "tags"
	TXTKeyVersion = "version"
	TXTKeyName    = "name"
)

// Discovery errors.
var (
	ErrMissingRequired = errors.New("missing required TXT field")
	ErrInvalidTXT      = errors.New("invalid TXT record")
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// ServiceInfo describes an advertised scheduler.
type ServiceInfo struct {
	// InstanceName is the mDNS instance name. Empty selects "tagsched-<port>".
	InstanceName string

	// Port is the HTTP status port.
	Port uint16

	// Tags is the number of tags in the catalog.
	Tags int

	// Version is the software version.
	Version string
}

// EncodeTXT creates the TXT records for info.
func EncodeTXT(info *ServiceInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyTags:    strconv.Itoa(info.Tags),
		TXTKeyVersion: info.Version,
	}
	if info.InstanceName != "" {
		txt[TXTKeyName] = info.InstanceName
	}
	return txt
}

// DecodeTXT parses TXT records produced by EncodeTXT.
func DecodeTXT(txt TXTRecordMap) (*ServiceInfo, error) {
	info := &ServiceInfo{InstanceName: txt[TXTKeyName]}

	tags, ok := txt[TXTKeyTags]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyTags)
	}
	n, err := strconv.Atoi(tags)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXT, TXTKeyTags, tags)
	}
	info.Tags = n

	info.Version, ok = txt[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	if _, err := version.Parse(info.Version); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTXT, err)
	}
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings, sorted.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	slices.Sort(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
// A bare key maps to the empty string.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}
