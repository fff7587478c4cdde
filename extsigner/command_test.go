package extsigner

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/signhand/signing"
)

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestCommandSign(t *testing.T) {
	sh := requireShell(t)
	c := &Command{
		Path: sh,
		Args: []string{"-c",
			`test "$(cat "$3")" = "s3cret" || exit 3; cat "$1" > "$2"; printf '|p%s@%s,%s' "$4" "$5" "$6" >> "$2"`,
			"sign", "{input}", "{output}", "{password_file}", "{page}", "{x}", "{y}",
		},
		TempDir: t.TempDir(),
	}
	out, err := c.Sign(t.Context(), signing.SignerInput{
		Certificate: []byte("p12"),
		Password:    "s3cret",
		Document:    []byte("%PDF"),
		Page:        2,
		X:           10.5,
		Y:           20,
	})
	require.NoError(t, err)
	assert.Equal(t, "%PDF|p2@10.5,20", string(out))
}

func TestCommandFailure(t *testing.T) {
	sh := requireShell(t)
	c := &Command{Path: sh, Args: []string{"-c", "echo bad password >&2; exit 1"}, TempDir: t.TempDir()}
	_, err := c.Sign(t.Context(), signing.SignerInput{Document: []byte("x")})
	require.ErrorIs(t, err, ErrCommandFailed)
	assert.Contains(t, err.Error(), "bad password")

	// Exiting cleanly without writing the output is also a failure.
	c = &Command{Path: sh, Args: []string{"-c", "true"}, TempDir: t.TempDir()}
	_, err = c.Sign(t.Context(), signing.SignerInput{Document: []byte("x")})
	require.ErrorIs(t, err, ErrCommandFailed)

	_, err = (&Command{}).Sign(t.Context(), signing.SignerInput{})
	require.ErrorIs(t, err, ErrCommandFailed)
}

func TestCommandTimeout(t *testing.T) {
	sh := requireShell(t)
	c := &Command{Path: sh, Args: []string{"-c", "sleep 5"}, Timeout: 100 * time.Millisecond, TempDir: t.TempDir()}
	start := time.Now()
	_, err := c.Sign(t.Context(), signing.SignerInput{Document: []byte("x")})
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExpand(t *testing.T) {
	values := map[string]string{PlaceholderPage: "3", PlaceholderInput: "/tmp/in.pdf"}
	assert.Equal(t, "--page=3", expand("--page={page}", values))
	assert.Equal(t, "/tmp/in.pdf", expand("{input}", values))
	assert.Equal(t, "plain", expand("plain", values))
	assert.Equal(t, "", expand("{issuer}", map[string]string{PlaceholderIssuer: ""}))
}
