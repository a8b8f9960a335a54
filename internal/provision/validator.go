package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/user/proxydeck/internal/model"
)

// MissingCredentialsMessage is reported when the username or password is empty.
const MissingCredentialsMessage = "missing credentials"

const notAvailable = "N/A"

// Prober performs one authenticated request through the provider gateway.
type Prober interface {
	Probe(ctx context.Context, username, password string) (*model.ProxyRecord, error)
}

// Validator checks that an account is reachable using the bare username.
type Validator struct {
	prober Prober
	now    func() time.Time
}

// NewValidator creates a validator backed by prober.
func NewValidator(prober Prober) *Validator {
	return &Validator{prober: prober, now: time.Now}
}

// TestConnection probes once with the raw credentials. It never returns an error;
// failures are carried in the status message.
func (v *Validator) TestConnection(ctx context.Context, creds model.Credentials) model.ConnectionStatus {
	if !creds.Complete() {
		return model.ConnectionStatus{
			State:     model.ConnectionFailed,
			Message:   MissingCredentialsMessage,
			CheckedAt: v.now(),
		}
	}

	record, err := v.prober.Probe(ctx, creds.Username, creds.Password)
	if err != nil {
		return model.ConnectionStatus{
			State:     model.ConnectionFailed,
			Message:   err.Error(),
			CheckedAt: v.now(),
		}
	}

	return model.ConnectionStatus{
		State:     model.ConnectionOK,
		Message:   ConnectionMessage(record),
		Record:    record,
		CheckedAt: v.now(),
	}
}

// ConnectionMessage renders the one-line summary shown after a good test.
func ConnectionMessage(r *model.ProxyRecord) string {
	if r == nil {
		r = &model.ProxyRecord{}
	}
	return fmt.Sprintf("Connection is good | IP: %s | City: %s | State: %s | Zip: %s",
		orNA(r.IP), orNA(r.CityName), orNA(r.RegionName), orNA(r.Zip))
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return notAvailable
	}
	return *s
}
