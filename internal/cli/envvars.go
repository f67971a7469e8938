// Package cli parses command line flags that may also be provided as environment variables.
package cli

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ParseFlagsWithEnvVars parses the process arguments into the flag set.
// Each flag can be set using an environment variable named after the flag,
// upper-cased and prefixed with envVarPrefix, e.g. VAD_CHUNK_TIME.
// Arguments take precedence over environment variables.
// The process exits when a flag or environment variable is invalid.
func ParseFlagsWithEnvVars(flags *flag.FlagSet, envVarPrefix string) {
	err := parseFlags(flags, envVarPrefix, os.Args[1:], os.Environ())
	if err != nil {
		flags.Usage()
		slog.Error("invalid arguments", "err", err)
		os.Exit(1)
	}
}

func parseFlags(flags *flag.FlagSet, envVarPrefix string, args, environ []string) error {
	addLoggingFlags(flags)

	env := make(map[string]string, len(environ))
	for _, entry := range environ {
		if k, v, ok := strings.Cut(entry, "="); ok && strings.HasPrefix(k, envVarPrefix) {
			env[k] = v
		}
	}

	var err error

	flags.VisitAll(func(f *flag.Flag) {
		name := envVarName(envVarPrefix, f.Name)
		f.Usage = fmt.Sprintf("%s (%s)", f.Usage, name)
		value, ok := env[name]
		delete(env, name)
		if !ok || value == "" || err != nil {
			return
		}
		if e := f.Value.Set(value); e != nil {
			err = fmt.Errorf("invalid value %q provided for environment variable %s: %w", value, name, e)
			return
		}
		f.DefValue = value
	})
	if err != nil {
		return err
	}

	for name := range env {
		return fmt.Errorf("unsupported environment variable provided: %s", name)
	}

	return flags.Parse(args)
}

func envVarName(prefix, flagName string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}
