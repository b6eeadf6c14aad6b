package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ReadInput loads an input file for a one-off run; "-" reads stdin and uses
// nameHint (or "stdin") as the source name.
func ReadInput(path, nameHint string) (string, []byte, error) {
	if path == "-" {
		blob, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", nil, err
		}
		name := nameHint
		if name == "" {
			name = "stdin"
		}
		return name, blob, nil
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read input: %w", err)
	}
	name := nameHint
	if name == "" {
		name = filepath.Base(path)
	}
	return name, blob, nil
}
