package cli

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

// WriteOutput writes v as indented JSON.
func WriteOutput(out io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if _, err := out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
