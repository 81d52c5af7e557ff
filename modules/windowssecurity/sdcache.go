package windowssecurity

import (
	gsync "github.com/SaveTheRbtz/generic-sync-map-go"
	"github.com/pkg/errors"
)

var securityDescriptorCache gsync.MapOf[string, *SecurityDescriptor]

// CacheOrParseSecurityDescriptor parses a raw security descriptor blob and
// caches it, so objects protected by identical descriptors share one parse.
func CacheOrParseSecurityDescriptor(rawsd []byte) (*SecurityDescriptor, error) {
	if len(rawsd) == 0 {
		return nil, errors.Wrap(ErrMalformedSecurityDescriptor, "empty security descriptor")
	}

	if cached, found := securityDescriptorCache.Load(string(rawsd)); found {
		return cached, nil
	}

	sd, err := ParseSecurityDescriptor(rawsd)
	if err != nil {
		return nil, err
	}

	cached, _ := securityDescriptorCache.LoadOrStore(string(rawsd), &sd)
	return cached, nil
}
