// Package probes issues authenticated requests through the provider gateway.
package probes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Jigsaw-Code/outline-sdk/x/configurl"
	"github.com/rs/zerolog"

	"github.com/user/proxydeck/internal/model"
	"github.com/user/proxydeck/internal/util"
)

const maxPayloadBytes = 64 * 1024

// ProbeError is a single failed probe. Error returns the human-readable reason.
type ProbeError struct {
	Reason string
	Err    error
}

func (e *ProbeError) Error() string {
	return e.Reason
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// ProxyProbe sends one GET to the diagnostic URL per call, tunneled through
// the gateway with the given credentials. It never retries.
type ProxyProbe struct {
	gatewayHost   string
	gatewayPort   int
	scheme        string
	diagnosticURL string
	timeout       time.Duration
	log           zerolog.Logger
}

// NewProxyProbe creates a probe for the configured provider.
func NewProxyProbe(cfg util.ProviderConfig) *ProxyProbe {
	return &ProxyProbe{
		gatewayHost:   cfg.GatewayHost,
		gatewayPort:   cfg.GatewayPort,
		scheme:        cfg.Scheme,
		diagnosticURL: cfg.DiagnosticURL,
		timeout:       cfg.Timeout,
		log:           util.WithComponent("probe"),
	}
}

func (p *ProxyProbe) gatewayAddr() string {
	return net.JoinHostPort(p.gatewayHost, strconv.Itoa(p.gatewayPort))
}

// Probe returns the identity the diagnostic endpoint observed through the proxy.
func (p *ProxyProbe) Probe(ctx context.Context, username, password string) (*model.ProxyRecord, error) {
	client, err := p.newClient(username, password)
	if err != nil {
		return nil, &ProbeError{Reason: fmt.Sprintf("could not create proxy transport: %v", err), Err: err}
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.diagnosticURL, nil)
	if err != nil {
		return nil, &ProbeError{Reason: fmt.Sprintf("invalid diagnostic url: %v", err), Err: err}
	}
	req.Header.Set("User-Agent", "proxydeck/1.0")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		p.log.Debug().Str("user", username).Err(err).Msg("probe failed")
		return nil, &ProbeError{Reason: fmt.Sprintf("proxy request failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProbeError{Reason: fmt.Sprintf("provider returned status %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, &ProbeError{Reason: fmt.Sprintf("failed to read diagnostic response: %v", err), Err: err}
	}

	record, err := ParsePayload(body)
	if err != nil {
		return nil, &ProbeError{Reason: fmt.Sprintf("invalid diagnostic response: %v", err), Err: err}
	}

	p.log.Debug().
		Str("user", username).
		Dur("elapsed", time.Since(start)).
		Msg("probe succeeded")

	return record, nil
}

func (p *ProxyProbe) newClient(username, password string) (*http.Client, error) {
	var transport *http.Transport

	switch p.scheme {
	case "socks5":
		config := fmt.Sprintf("socks5://%s@%s", url.UserPassword(username, password).String(), p.gatewayAddr())
		dialer, err := configurl.NewDefaultConfigToDialer().NewStreamDialer(config)
		if err != nil {
			return nil, err
		}
		transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				if !strings.HasPrefix(network, "tcp") {
					return nil, fmt.Errorf("protocol not supported: %v", network)
				}
				return dialer.DialStream(ctx, addr)
			},
		}
	case "http", "":
		proxyURL := &url.URL{
			Scheme: "http",
			User:   url.UserPassword(username, password),
			Host:   p.gatewayAddr(),
		}
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	default:
		return nil, fmt.Errorf("unsupported scheme %q", p.scheme)
	}

	// Each probe gets its own tunnel so the provider can rotate the exit.
	transport.DisableKeepAlives = true

	return &http.Client{
		Transport: transport,
		Timeout:   p.timeout,
	}, nil
}

// diagnosticPayload is the provider's echo of the requester's identity.
type diagnosticPayload struct {
	IP    *string `json:"ip"`
	Proxy *struct {
		IP *string `json:"ip"`
	} `json:"proxy"`
	City *struct {
		Name      *string    `json:"name"`
		Code      *string    `json:"code"`
		TimeZone  *string    `json:"time_zone"`
		Latitude  *flexFloat `json:"latitude"`
		Longitude *flexFloat `json:"longitude"`
	} `json:"city"`
	ISP *struct {
		ISP *string `json:"isp"`
	} `json:"isp"`
	Region *struct {
		Name *string `json:"name"`
	} `json:"region"`
	Zip *flexString `json:"zip"`
}

// ParsePayload maps a diagnostic response into a record. Absent fields stay nil.
func ParsePayload(body []byte) (*model.ProxyRecord, error) {
	var payload diagnosticPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	record := &model.ProxyRecord{IP: payload.IP}
	if record.IP == nil && payload.Proxy != nil {
		record.IP = payload.Proxy.IP
	}
	if c := payload.City; c != nil {
		record.CityName = c.Name
		record.RegionCode = c.Code
		record.TimeZone = c.TimeZone
		record.Latitude = c.Latitude.ptr()
		record.Longitude = c.Longitude.ptr()
	}
	if payload.ISP != nil {
		record.ISP = payload.ISP.ISP
	}
	if payload.Region != nil {
		record.RegionName = payload.Region.Name
	}
	if payload.Zip != nil {
		z := string(*payload.Zip)
		record.Zip = &z
	}

	return record, nil
}

// flexFloat accepts 36.1 and "36.1". An empty string counts as absent.
type flexFloat struct {
	value float64
	ok    bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %s", data)
	}
	f.value, f.ok = v, true
	return nil
}

func (f *flexFloat) ptr() *float64 {
	if f == nil || !f.ok {
		return nil
	}
	v := f.value
	return &v
}

// flexString accepts "89501" and 89501.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("invalid zip %s", data)
	}
	*s = flexString(num.String())
	return nil
}
