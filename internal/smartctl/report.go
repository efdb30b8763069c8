// Package smartctl parses the JSON output of smartmontools' smartctl.
package smartctl

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Report is the subset of `smartctl -j -i -A` output we care about.
type Report struct {
	ModelName string
	Serial    string
	TempMilli int32 // millidegrees Celsius
}

type rawReport struct {
	ModelName    string `json:"model_name"`
	SerialNumber string `json:"serial_number"`
	Temperature  struct {
		Current *int `json:"current"`
	} `json:"temperature"`
	ATASmartAttributes struct {
		Table []rawAttribute `json:"table"`
	} `json:"ata_smart_attributes"`
}

type rawAttribute struct {
	ID  int `json:"id"`
	Raw struct {
		Value  int64  `json:"value"`
		String string `json:"string"`
	} `json:"raw"`
}

// ParseReport extracts the drive temperature in millidegrees Celsius
// from smartctl JSON. The top-level temperature object is preferred;
// attributes 194 and 190 are the fallback.
func ParseReport(data []byte) (*Report, error) {
	var raw rawReport
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing smartctl JSON: %w", err)
	}

	rep := &Report{ModelName: raw.ModelName, Serial: raw.SerialNumber}

	if raw.Temperature.Current != nil {
		rep.TempMilli = int32(*raw.Temperature.Current) * 1000
		return rep, nil
	}

	// Prefer 194 (Temperature_Celsius) over 190 (Airflow_Temperature_Cel).
	var airflow *rawAttribute
	for _, attr := range raw.ATASmartAttributes.Table {
		switch attr.ID {
		case 194:
			rep.TempMilli = attributeTemp(attr) * 1000
			return rep, nil
		case 190:
			a := attr
			airflow = &a
		}
	}
	if airflow != nil {
		rep.TempMilli = attributeTemp(*airflow) * 1000
		return rep, nil
	}

	return nil, fmt.Errorf("no temperature in smartctl output")
}

// attributeTemp extracts the current temperature from a SMART attribute.
// The raw string leads with the temperature on strings like
// "40 (Min/Max 25/55)"; the numeric raw packs min/max into the upper
// bytes on some vendors, so the low byte is the fallback.
func attributeTemp(attr rawAttribute) int32 {
	if v := extractLeadingInt(attr.Raw.String); v > 0 {
		return int32(v)
	}
	return int32(attr.Raw.Value & 0xff)
}

// extractLeadingInt extracts the leading integer from a string like
// "40 (Min/Max 25/55)". Returns 0 when the string has no leading digits.
func extractLeadingInt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9') {
		end++
	}
	if end == 0 {
		return 0
	}

	val, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return val
}

// ParseScan extracts device paths from `smartctl -j --scan`.
func ParseScan(data []byte) ([]string, error) {
	var raw struct {
		Devices []struct {
			Name string `json:"name"`
		} `json:"devices"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing smartctl scan JSON: %w", err)
	}
	devices := make([]string, 0, len(raw.Devices))
	for _, d := range raw.Devices {
		devices = append(devices, d.Name)
	}
	return devices, nil
}
