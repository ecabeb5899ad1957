package scanner

import (
	"context"
	"sync"

	"Corsgo/internal/httpclient"
	"Corsgo/internal/logger"
)

// Manager orchestrates the execution of multiple scanners.
// It manages a collection of registered scanners and runs them against a set of targets.
type Manager struct {
	scanners   []Scanner
	httpClient *httpclient.Client
	logger     *logger.Logger
	options    ScannerOptions
}

// NewManager creates a new scanner manager.
func NewManager(client *httpclient.Client, log *logger.Logger, opts ScannerOptions) *Manager {
	return &Manager{
		httpClient: client,
		logger:     log,
		options:    opts,
		scanners:   make([]Scanner, 0),
	}
}

// RegisterScanner adds a scanner to the manager.
func (m *Manager) RegisterScanner(s Scanner) {
	m.scanners = append(m.scanners, s)
	m.logger.Debug("ScannerManager: Registered scanner: %s", s.Name())
}

// RunScans executes all registered scanners against the targets using a fixed pool of workers.
// Findings come back in target order, and in registration order within a target.
func (m *Manager) RunScans(ctx context.Context, targets []Target) []Finding {
	if len(m.scanners) == 0 || len(targets) == 0 {
		return nil
	}

	m.logger.Info("ScannerManager: Starting vulnerability scanning on %d targets...", len(targets))

	type job struct {
		index  int
		target Target
	}

	perTarget := make([][]Finding, len(targets))
	jobs := make(chan job, len(targets))
	var wg sync.WaitGroup

	numWorkers := m.options.Concurrency
	if numWorkers > len(targets) {
		numWorkers = len(targets)
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	m.logger.Debug("ScannerManager: Initializing %d worker(s).", numWorkers)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				var found []Finding
				for _, s := range m.scanners {
					if ctx.Err() != nil {
						break
					}
					findings, err := s.Scan(ctx, j.target, m.httpClient, m.logger, m.options)
					if err != nil {
						m.logger.Error("Scanner %s failed for %s: %v", s.Name(), j.target.URL, err)
					}
					found = append(found, findings...)
				}
				// Each worker owns distinct indexes, no lock needed.
				perTarget[j.index] = found
			}
		}()
	}

	for i, t := range targets {
		jobs <- job{index: i, target: t}
	}
	close(jobs)
	wg.Wait()

	var allFindings []Finding
	for _, f := range perTarget {
		allFindings = append(allFindings, f...)
	}

	m.logger.Info("ScannerManager: All scanning workers finished. Found %d total potential vulnerabilities.", len(allFindings))
	return allFindings
}

// GetRegisteredScanners returns a slice of registered scanners.
func (m *Manager) GetRegisteredScanners() []Scanner {
	return m.scanners
}

// ScannerNames lists the registered scanner names in registration order.
func (m *Manager) ScannerNames() []string {
	names := make([]string, 0, len(m.scanners))
	for _, s := range m.scanners {
		names = append(names, s.Name())
	}
	return names
}
