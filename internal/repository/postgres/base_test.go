package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhereBuilder(t *testing.T) {
	var w where
	assert.Equal(t, "", w.String())

	w.add("staff_id = $%d", "s1")
	w.add("appointment_date BETWEEN $%d AND $%d", "2024-03-01", "2024-03-31")

	assert.Equal(t, " WHERE staff_id = $1 AND appointment_date BETWEEN $2 AND $3", w.String())
	assert.Equal(t, []interface{}{"s1", "2024-03-01", "2024-03-31"}, w.args)

	query, args := w.page("SELECT 1"+w.String(), 20, 40)
	assert.Equal(t, "SELECT 1 WHERE staff_id = $1 AND appointment_date BETWEEN $2 AND $3 LIMIT $4 OFFSET $5", query)
	assert.Equal(t, []interface{}{"s1", "2024-03-01", "2024-03-31", 20, 40}, args)
	assert.Len(t, w.args, 3)
}
