package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/amoclient/internal/client/archive"
	"github.com/dmitrijs2005/amoclient/internal/client/models"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// promptHash asks for the API hash on the terminal without echo.
func promptHash(w io.Writer, login string) (string, error) {
	if _, err := fmt.Fprintf(w, "API hash for %s: ", login); err != nil {
		return "", err
	}
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	defer clear(b)
	return strings.TrimSpace(string(b)), nil
}

// readRecords decodes JSON lines from path, or from in when path is "-".
func readRecords(path string, in io.Reader) ([]models.Record, error) {
	if path == "" || path == "-" {
		return archive.Decode(in)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return archive.Decode(f)
}

// writeRecords prints records as JSON lines.
func writeRecords(w io.Writer, rows []models.Record) error {
	b, err := archive.Encode(rows)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// parseWhere turns key=value pairs into list filters. Repeated keys become
// slices, which the transport sends as key[] parameters.
func parseWhere(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid filter %q, want key=value", p)
		}
		switch prev := out[k].(type) {
		case nil:
			out[k] = v
		case string:
			out[k] = []string{prev, v}
		case []string:
			out[k] = append(prev, v)
		}
	}
	return out, nil
}
