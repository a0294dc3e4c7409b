package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("clinic", reg)

	m.BookingConflicts.Inc()
	m.AppointmentsBooked.WithLabelValues("api").Add(2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.BookingConflicts))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.AppointmentsBooked.WithLabelValues("api")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "clinic_booking_conflicts_total")
}

func TestNewTwiceOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New("clinic", prometheus.NewRegistry())
		New("clinic", prometheus.NewRegistry())
	})
}
