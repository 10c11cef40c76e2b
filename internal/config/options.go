package config

import (
	"fmt"
	"strings"
)

// DumpOption is one entry of the [mysqldump] option group. An empty Value
// is written as a bare key.
type DumpOption struct {
	Key   string
	Value string
}

type MalformedOptionError struct {
	Option string
}

func (e *MalformedOptionError) Error() string {
	return fmt.Sprintf("cannot parse option %q (want key or key=value)", e.Option)
}

// ParseDumpOptions parses "key1=val,key2,key3=val" into options, in order.
func ParseDumpOptions(raw string) ([]DumpOption, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var out []DumpOption
	for _, item := range strings.Split(raw, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}

		parts := strings.Split(item, "=")
		var opt DumpOption
		switch len(parts) {
		case 1:
			opt.Key = strings.TrimSpace(parts[0])
		case 2:
			opt.Key = strings.TrimSpace(parts[0])
			opt.Value = strings.TrimSpace(parts[1])
		default:
			return nil, &MalformedOptionError{Option: item}
		}
		if opt.Key == "" {
			return nil, &MalformedOptionError{Option: item}
		}
		out = append(out, opt)
	}
	return out, nil
}
