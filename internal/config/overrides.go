package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Overrides is the operator-maintained correction table for transcripts
// whose recorded sitting date is known to be wrong or unparsable.
type Overrides struct {
	// DateOverrides maps the date string as it appears in a document to the
	// corrected date in YYYY-MM-DD form.
	DateOverrides map[string]string `yaml:"date_overrides"`
}

// LoadOverrides reads and validates the YAML override file at path.
func LoadOverrides(path string) (*Overrides, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	o, err := LoadOverridesFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return o, nil
}

// LoadOverridesFromReader decodes an override table from r. An empty
// document yields an empty table.
func LoadOverridesFromReader(r io.Reader) (*Overrides, error) {
	o := &Overrides{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(o); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if o.DateOverrides == nil {
		o.DateOverrides = map[string]string{}
	}
	return o, nil
}

// Validate checks every corrected value is an ISO date. It returns a joined
// error listing all bad entries.
func (o *Overrides) Validate() error {
	keys := make([]string, 0, len(o.DateOverrides))
	for k := range o.DateOverrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		v := o.DateOverrides[k]
		if k == "" {
			errs = append(errs, fmt.Errorf("date_overrides: empty key"))
			continue
		}
		if _, err := time.Parse("2006-01-02", v); err != nil {
			errs = append(errs, fmt.Errorf("date_overrides[%q]: %q is not YYYY-MM-DD", k, v))
		}
	}
	return errors.Join(errs...)
}
