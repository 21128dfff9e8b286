package provider

import (
	"fmt"
	"strings"
)

// recordIDSep separates the fields of a composite record ID.
const recordIDSep = "|"

// CompositeRecordID builds an ID for backends that have no record IDs of their own.
// The current value is part of the ID so an update knows which RR it replaces.
func CompositeRecordID(fqdn string, recordType RecordType, value string) string {
	return strings.Join([]string{normalizeName(fqdn), string(recordType), value}, recordIDSep)
}

// ParseCompositeRecordID splits an ID built by CompositeRecordID.
func ParseCompositeRecordID(id string) (fqdn string, recordType RecordType, value string, err error) {
	parts := strings.SplitN(id, recordIDSep, 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("malformed record ID %q", id)
	}
	return parts[0], RecordType(parts[1]), parts[2], nil
}
