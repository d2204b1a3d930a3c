package model

import "encoding/json"

// ─── Service detail payloads ────────────────────────────────
//
// Each service type carries a small, loosely-shaped detail payload.
// ServiceDetails is the tagged union over the known shapes; anything
// unrecognized is preserved verbatim in Raw so historical payloads
// survive a round trip.

// SizeTier is a coarse ordinal bucket used as a routing-distance proxy.
type SizeTier string

const (
	SizeSmall  SizeTier = "small"
	SizeMedium SizeTier = "medium"
	SizeLarge  SizeTier = "large"
)

// SnowPlowingDetails describes a snow plowing job.
type SnowPlowingDetails struct {
	AreaSize SizeTier `json:"area_size"` // driveway vs. lot scale
	Surface  string   `json:"surface,omitempty"`
}

// HaulingDetails describes a hauling job.
type HaulingDetails struct {
	LoadSize SizeTier `json:"load_size"`
	ItemNote string   `json:"item_note,omitempty"`
}

// TowingDetails describes a towing job.
type TowingDetails struct {
	VehicleClass string `json:"vehicle_class,omitempty"`
}

// CourierDetails describes a courier job.
type CourierDetails struct {
	PackageCount int `json:"package_count,omitempty"`
}

// ServiceDetails is the union of per-service payloads. Exactly one of the
// typed fields is set for a recognized service type; Raw holds the original
// payload for unknown service types (forward compatibility).
type ServiceDetails struct {
	SnowPlowing *SnowPlowingDetails `json:"snow_plowing,omitempty"`
	Hauling     *HaulingDetails     `json:"hauling,omitempty"`
	Towing      *TowingDetails      `json:"towing,omitempty"`
	Courier     *CourierDetails     `json:"courier,omitempty"`
	Raw         json.RawMessage     `json:"raw,omitempty"`
}

// DecodeDetails interprets a raw detail payload according to the service
// type. Unknown service types (or nil payloads) land in Raw unchanged.
func DecodeDetails(st ServiceType, raw json.RawMessage) (ServiceDetails, error) {
	var d ServiceDetails
	if len(raw) == 0 {
		return d, nil
	}

	switch st {
	case ServiceSnowPlowing:
		d.SnowPlowing = &SnowPlowingDetails{}
		if err := json.Unmarshal(raw, d.SnowPlowing); err != nil {
			return ServiceDetails{}, err
		}
	case ServiceHauling:
		d.Hauling = &HaulingDetails{}
		if err := json.Unmarshal(raw, d.Hauling); err != nil {
			return ServiceDetails{}, err
		}
	case ServiceTowing:
		d.Towing = &TowingDetails{}
		if err := json.Unmarshal(raw, d.Towing); err != nil {
			return ServiceDetails{}, err
		}
	case ServiceCourier:
		d.Courier = &CourierDetails{}
		if err := json.Unmarshal(raw, d.Courier); err != nil {
			return ServiceDetails{}, err
		}
	default:
		d.Raw = raw
	}

	return d, nil
}
