package config

import "fmt"

// Flag is a flag.Value that loads the configuration file it is set to
// into Config, replacing the values set so far.
// Flags registered with Config's fields must be parsed after this flag
// in order to override the file's values.
type Flag struct {
	File   string
	Config *Configuration
	// IsSet reports whether the file was loaded explicitly.
	IsSet bool
}

func (f *Flag) Set(path string) error {
	cfg, err := FromFile(path)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}

	f.File = path
	*f.Config = cfg
	f.IsSet = true

	return nil
}

func (f *Flag) String() string {
	if f == nil {
		return ""
	}
	return f.File
}
