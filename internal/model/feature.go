package model

// PortClass buckets a destination port into the IANA ranges.
type PortClass int

const (
	PortClassAbsent     PortClass = iota // no port on the flow
	PortClassWellKnown                   // 1-1023
	PortClassRegistered                  // 1024-49151
	PortClassDynamic                     // 49152-65535
)

// ClassifyPort maps a port number to its PortClass. Port 0 is treated as
// absent, matching the Flow encoding.
func ClassifyPort(port uint16) PortClass {
	switch {
	case port == 0:
		return PortClassAbsent
	case port <= 1023:
		return PortClassWellKnown
	case port <= 49151:
		return PortClassRegistered
	default:
		return PortClassDynamic
	}
}

// FeatureNames lists the feature vector components in the order produced by
// FeatureVector.Values. The anomaly scorer consumes this layout.
var FeatureNames = []string{
	"log_bytes",
	"log_packets",
	"log_bytes_per_second",
	"log_packets_per_second",
	"log_src_gap_seconds",
	"protocol_code",
	"dst_port_class",
}

// FeatureVector holds the derived numeric attributes of a single flow.
// Byte/packet counts, rates and the inter-arrival gap are log1p-transformed
// so the anomaly scorer sees comparable magnitudes; the categorical codes
// are small integers left as-is.
type FeatureVector struct {
	LogBytes            float64 `json:"log_bytes"`
	LogPackets          float64 `json:"log_packets"`
	LogBytesPerSecond   float64 `json:"log_bytes_per_second"`
	LogPacketsPerSecond float64 `json:"log_packets_per_second"`
	LogSrcGapSeconds    float64 `json:"log_src_gap_seconds"` // 0 = no prior flow from this source
	ProtocolCode        float64 `json:"protocol_code"`
	DstPortClass        float64 `json:"dst_port_class"`
}

// Values returns the vector as a slice aligned with FeatureNames.
func (v FeatureVector) Values() []float64 {
	return []float64{
		v.LogBytes,
		v.LogPackets,
		v.LogBytesPerSecond,
		v.LogPacketsPerSecond,
		v.LogSrcGapSeconds,
		v.ProtocolCode,
		v.DstPortClass,
	}
}
