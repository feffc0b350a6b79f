package doctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hackgods/appointment-lifecycle/internal/calendar"
)

var ErrDoctorNotFound = errors.New("doctor not found")

// Doctor is the profile snapshot the booking engine denormalizes into each
// appointment.
type Doctor struct {
	ID             string
	Name           string
	Avatar         string
	Specialization string
	OnlineFee      float64
	ClinicFee      float64
	AutoAccept     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Fee returns the current consultation price for a channel.
func (d Doctor) Fee(ch calendar.Channel) (float64, error) {
	switch ch {
	case calendar.ChannelOnline:
		return d.OnlineFee, nil
	case calendar.ChannelClinic:
		return d.ClinicFee, nil
	}
	return 0, fmt.Errorf("%w: %q", calendar.ErrInvalidChannel, ch)
}

// Provider is the read-only view of doctor profiles used by the core.
type Provider interface {
	GetDoctor(ctx context.Context, id string) (*Doctor, error)
}
