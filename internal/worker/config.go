// Package worker runs batches of routing jobs against the configured providers.
package worker

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/breatheroute/routekit/internal/convert"
	"github.com/breatheroute/routekit/internal/routing"
)

// Operation names a routing operation a job runs.
type Operation string

const (
	OperationDirections Operation = "directions"
	OperationIsochrones Operation = "isochrones"
	OperationMatrix     Operation = "matrix"
)

// Job is one routing request of a batch. Positions are [lon, lat] pairs.
type Job struct {
	// ID identifies the job in the output. Defaults to job-<index>.
	ID        string      `yaml:"id"`
	Provider  string      `yaml:"provider"`
	Operation Operation   `yaml:"operation"`
	Profile   string      `yaml:"profile"`
	Locations [][]float64 `yaml:"locations"`

	// Priority orders dispatch; lower runs first.
	Priority int `yaml:"priority"`

	Alternatives int                  `yaml:"alternatives"`
	Intervals    []int                `yaml:"intervals"`
	IntervalType routing.IntervalType `yaml:"interval_type"`
	Sources      []int                `yaml:"sources"`
	Destinations []int                `yaml:"destinations"`
	Extra        convert.Params       `yaml:"extra"`
	DryRun       bool                 `yaml:"dry_run"`
}

// JobFile is a batch definition.
type JobFile struct {
	// Concurrency is the number of jobs in flight.
	// Default: 4
	Concurrency int `yaml:"concurrency"`

	// Timeout bounds each job.
	// Default: 30 seconds
	Timeout time.Duration `yaml:"timeout"`

	Jobs []Job `yaml:"jobs"`
}

// Defaults for a JobFile.
const (
	DefaultConcurrency = 4
	DefaultTimeout     = 30 * time.Second
)

// LoadJobFile reads and validates a YAML job file.
func LoadJobFile(path string) (JobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return JobFile{}, fmt.Errorf("read job file: %w", err)
	}
	return ParseJobFile(data)
}

// ParseJobFile decodes a YAML job file, fills defaults and validates every job.
func ParseJobFile(data []byte) (JobFile, error) {
	var f JobFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return JobFile{}, fmt.Errorf("parse job file: %w", err)
	}

	if f.Concurrency <= 0 {
		f.Concurrency = DefaultConcurrency
	}
	if f.Timeout <= 0 {
		f.Timeout = DefaultTimeout
	}
	for i := range f.Jobs {
		if f.Jobs[i].ID == "" {
			f.Jobs[i].ID = fmt.Sprintf("job-%d", i)
		}
		if f.Jobs[i].Operation == OperationIsochrones && f.Jobs[i].IntervalType == "" {
			f.Jobs[i].IntervalType = routing.IntervalTime
		}
	}

	if err := f.Validate(); err != nil {
		return JobFile{}, err
	}
	return f, nil
}

// Validate checks the structure of every job. Coordinate ranges and operation specific
// rules are left to the routing Service, which reports them per job.
func (f JobFile) Validate() error {
	if len(f.Jobs) == 0 {
		return errors.New("job file has no jobs")
	}

	var errs []error
	seen := make(map[string]bool, len(f.Jobs))
	for _, j := range f.Jobs {
		if seen[j.ID] {
			errs = append(errs, fmt.Errorf("job %s: duplicate id", j.ID))
		}
		seen[j.ID] = true

		if j.Provider == "" {
			errs = append(errs, fmt.Errorf("job %s: provider is required", j.ID))
		}
		switch j.Operation {
		case OperationDirections, OperationIsochrones, OperationMatrix:
		default:
			errs = append(errs, fmt.Errorf("job %s: unknown operation %q", j.ID, j.Operation))
		}
		for i, p := range j.Locations {
			if len(p) < 2 {
				errs = append(errs, fmt.Errorf("job %s: locations[%d] must be [lon, lat]", j.ID, i))
			}
		}
	}
	return errors.Join(errs...)
}

// Ordered returns the jobs sorted by priority, keeping file order within a priority.
func (f JobFile) Ordered() []Job {
	jobs := slices.Clone(f.Jobs)
	slices.SortStableFunc(jobs, func(a, b Job) int {
		return a.Priority - b.Priority
	})
	return jobs
}

func (j Job) coordinates() []routing.Coordinate {
	coords, _ := routing.CoordinatesFromPoints(j.Locations)
	return coords
}
