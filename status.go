// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package agent

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"net/http"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// Metric names exported by the managed daemon that describe its configuration
// state. These follow the FAUCET controller's Prometheus exposition.
const (
	metricHashInfo  = "faucet_config_hash_info"
	metricHashFunc  = "faucet_config_hash_func"
	metricLoadError = "faucet_config_load_error"
	metricApplied   = "faucet_config_applied"
)

// DefaultStatusTimeout bounds a single status fetch from the daemon
const DefaultStatusTimeout = 10 * time.Second

// Status is a snapshot of the managed daemon's configuration state, scraped
// from its Prometheus endpoint.
type Status struct {
	// HashInfo carries the daemon's view of its config files and their hashes
	// (labels "config_files" and "hashes", comma-separated)
	HashInfo map[string]string

	// HashFunc names the hash algorithm the daemon used (label values of the
	// hash-func metric, e.g. "sha256")
	HashFunc []string

	// LoadError is true when the daemon failed to load its configuration
	LoadError bool

	// Applied is the fraction of datapaths running the current configuration
	Applied float64
}

// StatusClient scrapes the managed daemon's Prometheus endpoint.
//
// Only the configuration-state metrics are extracted; everything else in the
// exposition is ignored. Missing metrics fall back to permissive defaults
// (applied=1.0, empty hash info) matching daemons that do not export them.
type StatusClient struct {
	// URL of the daemon's Prometheus endpoint, e.g. "http://localhost:9302"
	URL string

	client *http.Client
	logger Logger
}

// NewStatusClient creates a StatusClient for the given Prometheus endpoint URL
func NewStatusClient(url string, opts ...func(*StatusClient)) (*StatusClient, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("status endpoint URL cannot be empty")
	}

	sc := &StatusClient{
		URL:    url,
		client: &http.Client{Timeout: DefaultStatusTimeout},
		logger: &NoOpLogger{},
	}

	for _, opt := range opts {
		opt(sc)
	}

	return sc, nil
}

// StatusTimeout sets the timeout for a single status fetch (default: 10s)
func StatusTimeout(timeout time.Duration) func(*StatusClient) {
	return func(sc *StatusClient) {
		sc.client = &http.Client{Timeout: timeout}
	}
}

// StatusLogger configures a custom logger for the status client
func StatusLogger(logger Logger) func(*StatusClient) {
	return func(sc *StatusClient) {
		if logger != nil {
			sc.logger = logger
		}
	}
}

// Fetch scrapes the daemon's Prometheus endpoint and returns its
// configuration status.
func (sc *StatusClient) Fetch(ctx context.Context) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sc.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daemon status from %s: %w", sc.URL, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error %d fetching daemon status from %s", resp.StatusCode, sc.URL)
	}

	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse daemon status: %w", err)
	}

	status := &Status{
		HashInfo: map[string]string{},
		// Default for daemons that do not export the applied metric
		Applied: 1.0,
	}

	if mf, ok := families[metricHashInfo]; ok {
		status.HashInfo = firstLabels(mf)
	}
	if mf, ok := families[metricHashFunc]; ok {
		for _, label := range firstLabels(mf) {
			status.HashFunc = append(status.HashFunc, label)
		}
	}
	if mf, ok := families[metricLoadError]; ok {
		status.LoadError = firstValue(mf) != 0
	}
	if mf, ok := families[metricApplied]; ok {
		status.Applied = firstValue(mf)
	}

	sc.logger.Debug(ctx, "daemon status fetched",
		"url", sc.URL,
		"load_error", status.LoadError,
		"applied", status.Applied)

	return status, nil
}

// firstLabels returns the label set of the first sample of a metric family
func firstLabels(mf *dto.MetricFamily) map[string]string {
	labels := map[string]string{}
	if len(mf.GetMetric()) == 0 {
		return labels
	}
	for _, pair := range mf.GetMetric()[0].GetLabel() {
		labels[pair.GetName()] = pair.GetValue()
	}
	return labels
}

// firstValue returns the value of the first sample of a metric family,
// regardless of metric type
func firstValue(mf *dto.MetricFamily) float64 {
	if len(mf.GetMetric()) == 0 {
		return 0
	}
	m := mf.GetMetric()[0]
	switch {
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetUntyped() != nil:
		return m.GetUntyped().GetValue()
	default:
		return 0
	}
}

// Confirms reports whether the status shows the daemon running exactly the
// given content.
//
// rejected is true when the daemon reported a load error; reason carries the
// diagnostic in that case. A false return with rejected=false means the
// daemon simply has not caught up yet (keep polling).
func (s *Status) Confirms(content []byte, minApplied float64) (ok bool, rejected bool, reason string) {
	if s.LoadError {
		return false, true, "daemon reported a configuration load error"
	}
	if !s.hashMatches(content) {
		return false, false, ""
	}
	if s.Applied < minApplied {
		return false, false, ""
	}
	return true, false, ""
}

// ConfigFile returns the single configuration file path the daemon reports,
// or "" when the daemon reports none (or more than one).
func (s *Status) ConfigFile() string {
	files := strings.Split(s.HashInfo["config_files"], ",")
	if len(files) != 1 {
		return ""
	}
	return files[0]
}

// hashMatches reports whether the daemon's config hash equals the hash of
// content, computed with the hash function the daemon announced.
func (s *Status) hashMatches(content []byte) bool {
	files := strings.Split(s.HashInfo["config_files"], ",")
	hashes := strings.Split(s.HashInfo["hashes"], ",")
	if len(files) != 1 || len(hashes) != 1 || files[0] == "" {
		return false
	}
	want := hashes[0]

	if len(s.HashFunc) != 1 {
		return false
	}
	hasher := newHasher(s.HashFunc[0])
	if hasher == nil {
		return false
	}

	hasher.Write(content) //nolint:errcheck // hash.Hash.Write never fails
	return hex.EncodeToString(hasher.Sum(nil)) == want
}

// newHasher maps a daemon-announced hash function name to an implementation.
// Returns nil for unknown algorithms.
func newHasher(name string) hash.Hash {
	switch strings.ToLower(name) {
	case "sha256":
		return sha256.New()
	case "sha1":
		return sha1.New()
	case "md5":
		return md5.New()
	default:
		return nil
	}
}
