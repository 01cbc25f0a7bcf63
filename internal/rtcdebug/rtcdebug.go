// Package rtcdebug provides a mechanism to configure debug and compatibility
// parameters via the RTWIREDEBUG environment variable.
//
// The value of RTWIREDEBUG is a comma-separated list of key=value pairs.
// The one key read inside this module is logdebug, which internal/rtclog
// checks to turn on debug-level logging:
//
//	RTWIREDEBUG=logdebug=1
package rtcdebug

import (
	"fmt"
	"os"
	"strings"
)

const debugEnvKey = "RTWIREDEBUG"

var params map[string]string

func init() {
	var err error
	params, err = parseDebug(os.Getenv(debugEnvKey))
	if err != nil {
		panic(err)
	}
}

// Value returns the value of the debug parameter with the given key.
// It returns an empty string if the key is not set.
func Value(key string) string {
	return params[key]
}

// Enabled reports whether the debug parameter with the given key is set to
// a truthy value ("1" or "true").
func Enabled(key string) bool {
	v := params[key]
	return v == "1" || v == "true"
}

func parseDebug(envValue string) (map[string]string, error) {
	if envValue == "" {
		return nil, nil
	}

	out := make(map[string]string)
	for part := range strings.SplitSeq(envValue, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%s: invalid format: %q", debugEnvKey, part)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}
