package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/frostyard/nbc-bootctl/pkg"
	"github.com/spf13/viper"
)

// outputJSON writes the given data as JSON to stdout.
func outputJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// outputJSONError outputs an error in JSON format.
func outputJSONError(message string, err error) error {
	errOutput := map[string]interface{}{
		"error":   true,
		"message": message,
		"details": err.Error(),
	}
	_ = outputJSON(errOutput)
	return fmt.Errorf("%s: %w", message, err)
}

// newReporter builds the Reporter selected by the --json persistent flag.
func newReporter() pkg.Reporter {
	if viper.GetBool("json") {
		return pkg.NewJSONReporter(os.Stdout)
	}
	return pkg.NewTextReporter(os.Stdout)
}

// withBootManager acquires the process lock scoped to --prefix, builds a
// BootManager rooted at that prefix, and hands it and the selected
// Reporter to fn. The lock is released once fn returns, regardless of
// outcome.
func withBootManager(ctx context.Context, fn func(ctx context.Context, m *pkg.BootManager, progress pkg.Reporter) error) error {
	prefix := viper.GetString("prefix")
	progress := newReporter()

	lock, err := pkg.AcquireToolLock(prefix)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	m := pkg.New()
	m.SetImageMode(viper.GetBool("image-mode"))
	if err := m.SetPrefix(ctx, prefix); err != nil {
		return err
	}

	return fn(ctx, m, progress)
}

// recordTimestamp returns the current time formatted for ToolState's
// LastOperatedAt and the reboot-required marker's Timestamp fields.
func recordTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
