// Package extsigner runs the external PDF signing tool.
package extsigner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmcleod/signhand/signing"
)

const maxLoggedOutput = 800

var (
	// ErrCommandFailed is returned when the signing tool exits unsuccessfully
	// or produces no output document.
	ErrCommandFailed = errors.New("external signer command failed")
	// ErrTimeout is returned when the signing tool exceeds its deadline.
	ErrTimeout = errors.New("external signer timed out")
)

// Placeholders substituted in Command arguments.
const (
	PlaceholderCertificate  = "{certificate}"
	PlaceholderPasswordFile = "{password_file}"
	PlaceholderInput        = "{input}"
	PlaceholderOutput       = "{output}"
	PlaceholderIssuer       = "{issuer}"
	PlaceholderPage         = "{page}"
	PlaceholderX            = "{x}"
	PlaceholderY            = "{y}"
	PlaceholderSize         = "{size}"
)

// Command signs documents by running an executable. The certificate,
// password, input document and optional issuer certificate are written to
// private temporary files whose paths are substituted into Args. The tool
// must write the signed document to the {output} path.
type Command struct {
	Path    string
	Args    []string
	Timeout time.Duration
	TempDir string
	Logger  *slog.Logger
}

var _ signing.ExternalSigner = (*Command)(nil)

func (c *Command) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default().With("component", "extsigner")
}

// Sign implements signing.ExternalSigner.
func (c *Command) Sign(ctx context.Context, in signing.SignerInput) ([]byte, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("%w: no command configured", ErrCommandFailed)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	dir, err := os.MkdirTemp(c.TempDir, "signhand-sign-")
	if err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	files := map[string]string{
		PlaceholderCertificate:  filepath.Join(dir, "certificate.p12"),
		PlaceholderPasswordFile: filepath.Join(dir, "password"),
		PlaceholderInput:        filepath.Join(dir, "input.pdf"),
		PlaceholderOutput:       filepath.Join(dir, "output.pdf"),
		PlaceholderIssuer:       "",
	}
	writes := map[string][]byte{
		files[PlaceholderCertificate]:  in.Certificate,
		files[PlaceholderPasswordFile]: []byte(in.Password),
		files[PlaceholderInput]:        in.Document,
	}
	if len(in.IssuerCertificate) > 0 {
		files[PlaceholderIssuer] = filepath.Join(dir, "issuer.der")
		writes[files[PlaceholderIssuer]] = in.IssuerCertificate
	}
	for path, data := range writes {
		if err := os.WriteFile(path, data, 0600); err != nil {
			return nil, fmt.Errorf("writing %s: %w", filepath.Base(path), err)
		}
	}

	values := map[string]string{
		PlaceholderPage: strconv.Itoa(in.Page),
		PlaceholderX:    formatFloat(in.X),
		PlaceholderY:    formatFloat(in.Y),
		PlaceholderSize: formatFloat(in.QRSize),
	}
	for k, v := range files {
		values[k] = v
	}
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = expand(a, values)
	}

	start := time.Now()
	// #nosec G204 - the executable and argument template come from operator configuration
	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, time.Since(start).Round(time.Millisecond))
		}
		c.logger().Warn("external signer failed", "command", c.Path, "error", err, "output", truncate(string(output)))
		return nil, fmt.Errorf("%w: %v: %s", ErrCommandFailed, err, truncate(string(output)))
	}

	signed, err := os.ReadFile(files[PlaceholderOutput])
	if err != nil || len(signed) == 0 {
		return nil, fmt.Errorf("%w: no output document written", ErrCommandFailed)
	}
	c.logger().Debug("external signer finished", "command", c.Path, "duration", time.Since(start), "bytes", len(signed))
	return signed, nil
}

func expand(arg string, values map[string]string) string {
	if !strings.Contains(arg, "{") {
		return arg
	}
	for k, v := range values {
		arg = strings.ReplaceAll(arg, k, v)
	}
	return arg
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLoggedOutput {
		return s
	}
	return s[:maxLoggedOutput] + "...(truncated)"
}
