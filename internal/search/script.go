package search

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"time"

	"github.com/TobiSchelling/goldpulse/internal/logging"
)

// waitDelay bounds how long Search waits for output pipes after the script
// was killed.
const waitDelay = time.Second

// ScriptGateway runs an external search command:
//
//	<path> search <query> <count> <depth>
//
// and decodes its stdout as a Response. Arguments are passed positionally,
// never through a shell.
type ScriptGateway struct {
	path    string
	timeout time.Duration
}

// NewScriptGateway creates a gateway for the given executable.
func NewScriptGateway(path string, timeout time.Duration) *ScriptGateway {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ScriptGateway{path: path, timeout: timeout}
}

func (g *ScriptGateway) Search(ctx context.Context, query string, count int, depth Depth) Response {
	count, depth = normalize(count, depth)
	log := logging.For("search").WithField("provider", "script")

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.path, "search", query, strconv.Itoa(count), string(depth))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)

	if err := cmd.Run(); err != nil {
		log.WithError(err).WithField("stderr", truncate(stderr.String(), 200)).Warnf("search failed for %q", query)
		return Response{}
	}

	resp, ok := decodeResponse(stdout.String())
	if !ok {
		log.Warnf("no JSON in output for %q", query)
		return Response{}
	}
	log.Debugf("%d results for %q", len(resp.Results), query)
	return resp
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
