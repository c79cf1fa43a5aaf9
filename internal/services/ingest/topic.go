package ingest

import (
	"errors"
	"strings"
)

// ErrInvalidTopic marks a topic the resolver cannot extract a device id from.
var ErrInvalidTopic = errors.New("ingest: invalid topic")

// ResolveDeviceID extracts the device id from a sensor topic of the form
// <prefix>/<deviceID>/sensors. The anchor is the trailing segment of the
// configured prefix (e.g. "devices" for "plantflow/devices"); the id is the
// segment immediately after the first occurrence of the anchor.
func ResolveDeviceID(topic, prefix string) (string, error) {
	anchor := prefix
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		anchor = prefix[i+1:]
	}
	if anchor == "" {
		return "", ErrInvalidTopic
	}

	parts := strings.Split(topic, "/")
	for i, p := range parts {
		if p != anchor {
			continue
		}
		if i+1 >= len(parts) || parts[i+1] == "" {
			return "", ErrInvalidTopic
		}
		return parts[i+1], nil
	}
	return "", ErrInvalidTopic
}
