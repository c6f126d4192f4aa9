// ABOUTME: JSON encoding for Config that writes durations as "15s" style strings
// ABOUTME: Integer nanoseconds are still accepted when reading older files
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// duration reads either a Go duration string or integer nanoseconds.
type duration time.Duration

func (d duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*d = duration(parsed)
	case float64:
		*d = duration(time.Duration(v))
	case nil:
	default:
		return fmt.Errorf("invalid duration %s", data)
	}
	return nil
}

// plainConfig has Config's fields without its JSON methods.
type plainConfig Config

type configJSON struct {
	*plainConfig
	Timeout  duration `json:"timeout"`
	CacheTTL duration `json:"cache_ttl"`
}

// MarshalJSON writes durations in their string form.
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(configJSON{
		plainConfig: (*plainConfig)(&c),
		Timeout:     duration(c.Timeout),
		CacheTTL:    duration(c.CacheTTL),
	})
}

func (c *Config) UnmarshalJSON(data []byte) error {
	aux := configJSON{
		plainConfig: (*plainConfig)(c),
		Timeout:     duration(c.Timeout),
		CacheTTL:    duration(c.CacheTTL),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.Timeout = time.Duration(aux.Timeout)
	c.CacheTTL = time.Duration(aux.CacheTTL)
	return nil
}
