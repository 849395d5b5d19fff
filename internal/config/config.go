package config

import (
	"fmt"
	"net/netip"
	"os"

	"gopkg.in/yaml.v3"
)

// AnomalyConfig holds the anomaly scorer parameters.
type AnomalyConfig struct {
	// Contamination is the expected outlier fraction in (0, 0.5].
	Contamination float64 `yaml:"contamination"`
	// Seed drives all randomized sampling inside the model, so repeated
	// runs over the same table are reproducible.
	Seed int64 `yaml:"seed"`
	// MinFlows is the smallest table the scorer will accept.
	MinFlows int `yaml:"min_flows"`
	// NumTrees and SampleSize shape the isolation forest.
	NumTrees   int `yaml:"num_trees"`
	SampleSize int `yaml:"sample_size"`
}

// BeaconConfig holds the beaconing detector thresholds.
type BeaconConfig struct {
	// MinRepeats is the minimum conversation count for a (src, dst) pair
	// to be considered at all.
	MinRepeats int `yaml:"min_repeats"`
	// CVThreshold is the coefficient-of-variation cutoff in (0, 1]; gap
	// timing below it counts as beacon-regular.
	CVThreshold float64 `yaml:"cv_threshold"`
}

// C2Config holds the command-and-control detector thresholds.
type C2Config struct {
	// MinConversations is the per-destination conversation count above
	// which a small-flow external destination becomes a C2 candidate.
	MinConversations int `yaml:"min_conversations"`
	// MaxAvgBytes is the average conversation size below which traffic
	// looks like control-channel chatter rather than payload transfer.
	MaxAvgBytes float64 `yaml:"max_avg_bytes"`
}

// PortScanConfig holds the port scan detector thresholds.
type PortScanConfig struct {
	PortThreshold int `yaml:"port_threshold"`
	AddrThreshold int `yaml:"addr_threshold"`
	WindowSeconds int `yaml:"window_seconds"`
}

// ExfilConfig holds the exfiltration detector thresholds.
type ExfilConfig struct {
	// Percentile of the scenario's outbound-byte distribution, in (0, 100),
	// above which an external transfer is flagged.
	Percentile float64 `yaml:"percentile"`
}

// DNSConfig holds the DNS tunneling detector thresholds.
type DNSConfig struct {
	Port uint16 `yaml:"port"`
	// MaxAvgBytes flags sources whose mean DNS flow size exceeds it.
	MaxAvgBytes float64 `yaml:"max_avg_bytes"`
	// MaxQueries flags sources issuing more DNS flows than this.
	MaxQueries int `yaml:"max_queries"`
	// LowDiversityQueries is the query count at which a single-resolver
	// source with above-baseline volume is flagged.
	LowDiversityQueries int `yaml:"low_diversity_queries"`
}

// ClusterConfig holds the density clustering parameters.
type ClusterConfig struct {
	// Eps is the neighborhood radius in standardized feature space.
	Eps float64 `yaml:"eps"`
	// MinPoints is the neighborhood size at which a flow becomes a cluster
	// core; smaller neighborhoods turn into noise.
	MinPoints int `yaml:"min_points"`
}

// AnalysisConfig gathers everything the analysis pipeline needs. Thresholds
// are passed explicitly into each component; nothing reads ambient state.
type AnalysisConfig struct {
	Anomaly  AnomalyConfig  `yaml:"anomaly"`
	Beacon   BeaconConfig   `yaml:"beacon"`
	C2       C2Config       `yaml:"c2"`
	PortScan PortScanConfig `yaml:"portscan"`
	Exfil    ExfilConfig    `yaml:"exfil"`
	DNS      DNSConfig      `yaml:"dns"`
	Cluster  ClusterConfig  `yaml:"cluster"`
	// InternalRanges lists the CIDR prefixes considered internal; anything
	// else is an external destination. Required by the exfiltration and C2
	// detectors, never inferred.
	InternalRanges []string `yaml:"internal_ranges"`
	// NumWorkers bounds concurrent scenario analyses in batch runs.
	NumWorkers int `yaml:"num_workers"`
}

// ClickHouseConfig holds the connection settings for ClickHouse writers and
// queriers.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// JSONWriterConfig holds the settings for the JSON report writer.
type JSONWriterConfig struct {
	RootPath string `yaml:"root_path"`
}

// WriterDef defines a single result writer from the config file.
type WriterDef struct {
	Type       string           `yaml:"type"` // "clickhouse" or "json"
	Enabled    bool             `yaml:"enabled"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	JSON       JSONWriterConfig `yaml:"json"`
}

// NATSConfig holds the finding publisher settings.
type NATSConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"`
	Subject     string `yaml:"subject"`
	MinSeverity string `yaml:"min_severity"`
}

// SMTPConfig holds the email notifier settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"` // comma-separated recipients
}

// AlerterConfig holds the alert dispatch settings.
type AlerterConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MinSeverity string `yaml:"min_severity"`
}

// APIConfig holds the query API settings.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// MetricsConfig holds the optional prometheus endpoint settings for batch
// commands.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Writers  []WriterDef    `yaml:"writers"`
	NATS     NATSConfig     `yaml:"nats"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Alerter  AlerterConfig  `yaml:"alerter"`
	API      APIConfig      `yaml:"api"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DefaultAnalysis returns the analysis defaults. The detector thresholds are
// engineering defaults meant to be overridden per corpus, not reverse-
// engineered constants.
func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		Anomaly: AnomalyConfig{
			Contamination: 0.1,
			Seed:          42,
			MinFlows:      10,
			NumTrees:      100,
			SampleSize:    256,
		},
		Beacon: BeaconConfig{
			MinRepeats:  5,
			CVThreshold: 0.3,
		},
		C2: C2Config{
			MinConversations: 10,
			MaxAvgBytes:      500,
		},
		PortScan: PortScanConfig{
			PortThreshold: 15,
			AddrThreshold: 15,
			WindowSeconds: 60,
		},
		Exfil: ExfilConfig{
			Percentile: 95,
		},
		DNS: DNSConfig{
			Port:                53,
			MaxAvgBytes:         100,
			MaxQueries:          1000,
			LowDiversityQueries: 50,
		},
		Cluster: ClusterConfig{
			Eps:       0.5,
			MinPoints: 5,
		},
		InternalRanges: []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		NumWorkers:     4,
	}
}

// LoadConfig reads the configuration from a YAML file, applies defaults for
// unset analysis fields, validates it, and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{Analysis: DefaultAnalysis()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := cfg.Analysis.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}

	return cfg, nil
}

// Validate checks every threshold against its valid domain.
func (c *AnalysisConfig) Validate() error {
	if c.Anomaly.Contamination <= 0 || c.Anomaly.Contamination > 0.5 {
		return fmt.Errorf("anomaly contamination %v outside (0, 0.5]", c.Anomaly.Contamination)
	}
	if c.Anomaly.MinFlows < 2 {
		return fmt.Errorf("anomaly min_flows %d must be at least 2", c.Anomaly.MinFlows)
	}
	if c.Anomaly.NumTrees <= 0 || c.Anomaly.SampleSize <= 1 {
		return fmt.Errorf("anomaly forest shape invalid: %d trees, sample size %d", c.Anomaly.NumTrees, c.Anomaly.SampleSize)
	}
	if c.Beacon.MinRepeats < 2 {
		return fmt.Errorf("beacon min_repeats %d must be at least 2", c.Beacon.MinRepeats)
	}
	if c.Beacon.CVThreshold <= 0 || c.Beacon.CVThreshold > 1 {
		return fmt.Errorf("beacon cv_threshold %v outside (0, 1]", c.Beacon.CVThreshold)
	}
	if c.C2.MinConversations < 1 || c.C2.MaxAvgBytes <= 0 {
		return fmt.Errorf("c2 thresholds invalid: min_conversations %d, max_avg_bytes %v", c.C2.MinConversations, c.C2.MaxAvgBytes)
	}
	if c.PortScan.PortThreshold < 1 || c.PortScan.AddrThreshold < 1 || c.PortScan.WindowSeconds < 1 {
		return fmt.Errorf("portscan thresholds invalid: ports %d, addrs %d, window %ds",
			c.PortScan.PortThreshold, c.PortScan.AddrThreshold, c.PortScan.WindowSeconds)
	}
	if c.Exfil.Percentile <= 0 || c.Exfil.Percentile >= 100 {
		return fmt.Errorf("exfil percentile %v outside (0, 100)", c.Exfil.Percentile)
	}
	if c.DNS.Port == 0 || c.DNS.MaxAvgBytes <= 0 || c.DNS.MaxQueries < 1 || c.DNS.LowDiversityQueries < 1 {
		return fmt.Errorf("dns thresholds invalid: port %d, max_avg_bytes %v, max_queries %d, low_diversity_queries %d",
			c.DNS.Port, c.DNS.MaxAvgBytes, c.DNS.MaxQueries, c.DNS.LowDiversityQueries)
	}
	if c.Cluster.Eps <= 0 || c.Cluster.MinPoints < 2 {
		return fmt.Errorf("cluster parameters invalid: eps %v, min_points %d", c.Cluster.Eps, c.Cluster.MinPoints)
	}
	if _, err := c.InternalPrefixes(); err != nil {
		return err
	}
	return nil
}

// InternalPrefixes parses the configured internal ranges.
func (c *AnalysisConfig) InternalPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.InternalRanges))
	for _, r := range c.InternalRanges {
		p, err := netip.ParsePrefix(r)
		if err != nil {
			return nil, fmt.Errorf("invalid internal range %q: %w", r, err)
		}
		prefixes = append(prefixes, p)
	}
	return prefixes, nil
}
