package spider

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// fallbackJar is a minimal empty jar archive served when no remote candidate
// is reachable. 22 bytes: an end-of-central-directory record and nothing else.
var fallbackJar = []byte{
	0x50, 0x4B, 0x05, 0x06, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

var fallbackJarMD5 = func() string {
	sum := md5.Sum(fallbackJar)
	return hex.EncodeToString(sum[:])
}()

// ProxyHandler streams the first fetchable remote candidate through the
// gateway's own origin. When every candidate fails it serves the embedded
// fallback jar, so the endpoint itself never fails.
func (r *Resolver) ProxyHandler(c *gin.Context) {
	ctx := c.Request.Context()
	for _, candidate := range r.allCandidates() {
		jarURL, _ := splitCandidate(candidate)
		body, errFetch := r.fetchRaw(ctx, jarURL)
		if errFetch != nil {
			log.WithError(errFetch).WithField("candidate", jarURL).Debug("spider proxy: candidate unavailable")
			continue
		}
		c.Data(http.StatusOK, "application/java-archive", body)
		return
	}
	c.Data(http.StatusOK, "application/java-archive", fallbackJar)
}

// fetchRaw downloads a candidate body without the public-host restriction:
// the proxy runs server-side, so private candidates are reachable here even
// though their URLs are never handed to the client.
func (r *Resolver) fetchRaw(ctx context.Context, jarURL string) ([]byte, error) {
	ctxFetch, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	req, errReq := http.NewRequestWithContext(ctxFetch, http.MethodGet, jarURL, nil)
	if errReq != nil {
		return nil, errReq
	}
	resp, errDo := r.client.Do(req)
	if errDo != nil {
		return nil, errDo
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spider proxy: status %d", resp.StatusCode)
	}
	body, errRead := io.ReadAll(io.LimitReader(resp.Body, maxJarBytes))
	if errRead != nil {
		return nil, errRead
	}
	if len(body) == 0 || !bytes.HasPrefix(body, jarMagic) {
		return nil, fmt.Errorf("spider proxy: body is not a jar")
	}
	return body, nil
}
