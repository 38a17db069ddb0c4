package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWhere(t *testing.T) {
	where, args := buildWhere(Filter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildWhere(Filter{Status: "overdue"})
	assert.Equal(t, " WHERE payee_payment_status = $1", where)
	assert.Equal(t, []any{"overdue"}, args)

	where, args = buildWhere(Filter{Status: "pending", Search: "an"})
	assert.Equal(t, ` WHERE payee_payment_status = $1 AND payee_first_name ILIKE $2 ESCAPE '\'`, where)
	assert.Equal(t, []any{"pending", "%an%"}, args)
}

func TestBuildWhereSearchIsLiteral(t *testing.T) {
	_, args := buildWhere(Filter{Search: `50%_off\`})
	assert.Equal(t, []any{`%50\%\_off\\%`}, args)
}

func TestBuildSetOrdersColumns(t *testing.T) {
	set, args, err := buildSet(map[string]any{
		FieldTotalDue:     110.0,
		FieldCity:         "Oslo",
		FieldEvidenceFile: "",
	})
	require.NoError(t, err)
	assert.Equal(t, "evidence_file = $1, payee_city = $2, total_due = $3", set)
	assert.Equal(t, []any{nil, "Oslo", 110.0}, args)
}

func TestBuildSetRejectsUnknownColumns(t *testing.T) {
	_, _, err := buildSet(map[string]any{"id": "x"})
	require.Error(t, err)
	_, _, err = buildSet(map[string]any{"payee_first_name; DROP TABLE payments": "x"})
	require.Error(t, err)
}

func TestBuildSetEmpty(t *testing.T) {
	set, args, err := buildSet(nil)
	require.NoError(t, err)
	assert.Empty(t, set)
	assert.Empty(t, args)
}

func TestRowValuesMatchColumns(t *testing.T) {
	p := Payment{ID: "x", FirstName: "Ada", Status: StatusPending, DueDate: time.Now(), EvidenceFile: "uploads/a.pdf"}
	values := rowValues(p)
	require.Len(t, values, len(columns))
	assert.Equal(t, "x", values[0])
	assert.Equal(t, "pending", values[3])
	assert.Equal(t, "uploads/a.pdf", values[len(values)-1])

	assert.Nil(t, rowValues(Payment{})[len(columns)-1])
}

func TestInvalidIDsAreNotFound(t *testing.T) {
	repo := &repository{}
	_, err := repo.FindOne(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, ErrNotFound)

	matched, err := repo.UpdateOne(context.Background(), "not-a-uuid", map[string]any{FieldCity: "x"})
	require.NoError(t, err)
	assert.Zero(t, matched)

	deleted, err := repo.DeleteOne(context.Background(), "nope")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
