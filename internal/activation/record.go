// Package activation builds activation records and submits them to the
// remote endpoint.
package activation

import (
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/warranty-activator/internal/logic"
)

// TimestampLayout is ISO-8601 with an explicit numeric UTC offset.
const TimestampLayout = "2006-01-02T15:04:05-07:00"

// serialUnknown is the placeholder some platforms report instead of a serial.
const serialUnknown = "unknown"

// Multipart field names.
const (
	FieldBrand         = "brand"
	FieldModel         = "model"
	FieldSerialNumber  = "serialNumber"
	FieldDeviceID      = "deviceId"
	FieldActivatedAt   = "activatedAt"
	FieldActiveMinutes = "activeMinutes"
)

// DeviceInfo is the live device identity used to build a record.
type DeviceInfo struct {
	Brand    string
	Model    string
	Serial   string
	DeviceID string
}

// Record is the activation payload. Every value is sent as a string.
type Record struct {
	Brand         string
	Model         string
	SerialNumber  string
	DeviceID      string
	ActivatedAt   string
	ActiveMinutes string
}

// NewRecord builds a record from device info, the total active time at the
// crossing, and the submission time rendered in loc.
func NewRecord(info DeviceInfo, totalMs int64, now time.Time, loc *time.Location) Record {
	if loc == nil {
		loc = time.UTC
	}
	return Record{
		Brand:         info.Brand,
		Model:         info.Model,
		SerialNumber:  SerialOrDeviceID(info.Serial, info.DeviceID),
		DeviceID:      info.DeviceID,
		ActivatedAt:   now.In(loc).Format(TimestampLayout),
		ActiveMinutes: strconv.FormatInt(logic.ActiveMinutes(totalMs), 10),
	}
}

// SerialOrDeviceID prefers the hardware serial unless it is blank or the
// "unknown" placeholder.
func SerialOrDeviceID(serial, deviceID string) string {
	s := strings.TrimSpace(serial)
	if s == "" || strings.EqualFold(s, serialUnknown) {
		return deviceID
	}
	return s
}

// Fields returns the record as ordered multipart fields.
func (r Record) Fields() [][2]string {
	return [][2]string{
		{FieldBrand, r.Brand},
		{FieldModel, r.Model},
		{FieldSerialNumber, r.SerialNumber},
		{FieldDeviceID, r.DeviceID},
		{FieldActivatedAt, r.ActivatedAt},
		{FieldActiveMinutes, r.ActiveMinutes},
	}
}
