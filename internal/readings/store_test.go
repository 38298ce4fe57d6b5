package readings

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIdentity = "14155550100"

func readingColumns() []string {
	return []string{"id", "identity", "observed_at", "markers", "raw_text", "cleaned_text"}
}

func TestAppendInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`insert into biomarker_readings`).
		WithArgs(sqlmock.AnyArg(), testIdentity, sqlmock.AnyArg(),
			[]byte(`{"LDLC":4.2}`), "raw", "clean").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewStore(nil, db)
	reading, err := store.Append(context.Background(), "whatsapp:+14155550100",
		map[string]float64{"LDLC": 4.2}, "raw", "clean")
	require.NoError(t, err)
	assert.Equal(t, testIdentity, reading.Identity)
	assert.NotEmpty(t, reading.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryAscendingForMarker(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(readingColumns())
	for i := 0; i < 3; i++ {
		rows.AddRow("id-"+string(rune('a'+i)), testIdentity, base.AddDate(0, 0, i),
			[]byte(`{"LDL":4.2}`), "", "")
	}
	mock.ExpectQuery(`order by observed_at asc\s+limit \$3`).
		WithArgs(testIdentity, "LDL", 3).
		WillReturnRows(rows)

	store := NewStore(nil, db)
	got, err := store.History(context.Background(), testIdentity, "LDL", 3, Ascending)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].ObservedAt.Before(got[i-1].ObservedAt),
			"history must be non-decreasing in observed_at")
	}
	for _, r := range got {
		assert.Contains(t, r.Markers, "LDL")
	}
}

func TestHistoryDescendingDirection(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`order by observed_at desc\s+limit \$3`).
		WithArgs(testIdentity, "HDL", 5).
		WillReturnRows(sqlmock.NewRows(readingColumns()))

	store := NewStore(nil, db)
	_, err = store.History(context.Background(), testIdentity, "HDL", 5, Descending)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecent(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`where identity = \$1\s+order by observed_at desc`).
		WithArgs(testIdentity, 5).
		WillReturnRows(sqlmock.NewRows(readingColumns()).
			AddRow("id-1", testIdentity, time.Now(), []byte(`{"GLUCOSE":5.4}`), "r", "c"))

	store := NewStore(nil, db)
	got, err := store.Recent(context.Background(), testIdentity, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 5.4, got[0].Markers["GLUCOSE"])
}

func TestCanonicalMarker(t *testing.T) {
	assert.Equal(t, "LDLC", CanonicalMarker("LDL-C"))
	assert.Equal(t, "LDLC", CanonicalMarker("ldl c"))
	assert.Equal(t, "HBA1C", CanonicalMarker("HbA1c"))
	assert.Equal(t, "VITAMIND", CanonicalMarker("vitamin d"))
	assert.Equal(t, "HDL", CanonicalMarker("HDL"))
}

func TestDetectRequestedMarker(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"show my LDL trend", "LDL"},
		{"how is my ldl doing?", "LDL"},
		{"chart my HbA1c please", "HBA1C"},
		{"what about vitamin d?", "VITAMIND"},
		{"how was my sleep?", ""},
		{"", ""},
		// Outside the closed vocabulary: never matched by design.
		{"plot my apolipoprotein B", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectRequestedMarker(tc.text), "text %q", tc.text)
	}
}
