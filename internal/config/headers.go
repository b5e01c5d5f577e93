package config

import (
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringPrefix marks a header value that lives in the OS keyring:
//
//	headers:
//	  token: keyring:shedcmd/api-token
const KeyringPrefix = "keyring:"

var keyringGet = keyring.Get

// ResolveHeaders returns a copy of headers with every keyring reference
// replaced by the stored secret. Plain values are copied unchanged.
func ResolveHeaders(headers map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		if !strings.HasPrefix(value, KeyringPrefix) {
			out[name] = value
			continue
		}
		service, user, ok := strings.Cut(strings.TrimPrefix(value, KeyringPrefix), "/")
		if !ok || service == "" || user == "" {
			return nil, fmt.Errorf("header %q: keyring reference must look like keyring:<service>/<user>", name)
		}
		secret, err := keyringGet(service, user)
		if err != nil {
			return nil, fmt.Errorf("header %q: reading keyring %s/%s: %w", name, service, user, err)
		}
		out[name] = secret
	}
	return out, nil
}
