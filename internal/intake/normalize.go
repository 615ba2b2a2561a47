package intake

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// CoreFields is the fixed set of submission attributes promoted to dedicated
// queryable columns. Each is nullable and sourced from the payload by exact
// key; no validation or coercion is performed beyond presence.
type CoreFields struct {
	AcceptType           *string `mapstructure:"acceptType" json:"accept_type"`
	AssetType            *string `mapstructure:"assetType" json:"asset_type"`
	Manufacturer         *string `mapstructure:"manufacturer" json:"manufacturer"`
	MACAddress           *string `mapstructure:"macAddress" json:"mac_address"`
	IPAddress            *string `mapstructure:"ipAddress" json:"ip_address"`
	Location             *string `mapstructure:"location" json:"location"`
	Custodian            *string `mapstructure:"custodian" json:"custodian"`
	OS                   *string `mapstructure:"os" json:"os"`
	Antivirus            *string `mapstructure:"antivirus" json:"antivirus"`
	WindowsLicenseStatus *string `mapstructure:"windowsLicenseStatus" json:"windows_license_status"`
}

// CheckEntry holds the proof photos recorded for one compliance check.
//
// Photo is the reference from whichever photo field was processed last
// (last-write-wins, the shape review clients already consume); Photos keeps
// every reference so a colliding capture source is not silently dropped.
type CheckEntry struct {
	Photo  *string  `json:"photo"`
	Photos []string `json:"photos,omitempty"`
}

// SecurityChecks maps a check base name to its recorded proof.
type SecurityChecks map[string]CheckEntry

// Record is the unit of persistence for one asset submission.
type Record struct {
	ID int64 `json:"id,omitempty"`

	CoreFields

	// Data preserves the complete post-substitution payload verbatim, for
	// fields not promoted to columns.
	Data           Payload        `json:"data"`
	SecurityChecks SecurityChecks `json:"security_checks"`
	SubmittedAt    time.Time      `json:"submitted_at"`
}

// normalize derives the persistable record from the (media-substituted)
// payload: core columns by exact key lookup, the keyed security check
// structure, and the server-assigned submission timestamp.
func (p *Pipeline) normalize(payload Payload) (Record, error) {
	var core CoreFields
	if err := decodeCoreFields(payload, &core); err != nil {
		return Record{}, fmt.Errorf("failed to derive core fields: %w", err)
	}

	checks := make(SecurityChecks)
	for _, key := range payload.PhotoKeys() {
		base, _, _ := PhotoKey(key)
		value := payload[key]

		entry := checks[base]
		if value.IsNull() {
			entry.Photo = nil
		} else {
			photo := value.String()
			entry.Photo = &photo
			entry.Photos = append(entry.Photos, photo)
		}
		checks[base] = entry
	}

	return Record{
		CoreFields:     core,
		Data:           payload,
		SecurityChecks: checks,
		SubmittedAt:    p.now().UTC(),
	}, nil
}

// decodeCoreFields extracts the core columns from the untyped payload.
// Missing keys and non-string values map to nil.
func decodeCoreFields(payload Payload, core *CoreFields) error {
	plain := make(map[string]any, len(payload))
	for k, v := range payload {
		if v.Kind == KindText || v.Kind == KindImage {
			plain[k] = v.Text
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: core,
	})
	if err != nil {
		return err
	}
	return dec.Decode(plain)
}
