package wait

import (
	"errors"
	"net"
	"net/http"
	"time"
)

const pollInterval = 200 * time.Millisecond

// HTTP200 polls url until it answers 200 or the timeout elapses.
func HTTP200(url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(pollInterval)
	}
	return errors.New("timeout waiting for HTTP 200: " + url)
}

// TCP polls addr until a connection succeeds or the timeout elapses.
func TCP(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		c, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			_ = c.Close()
			return nil
		}
		time.Sleep(pollInterval)
	}
	return errors.New("timeout waiting for TCP: " + addr)
}
